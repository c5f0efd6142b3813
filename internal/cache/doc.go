// Package cache stores computed audit results so re-running an unchanged
// workbook with unchanged boundaries skips extraction and consolidation.
//
// Entries are keyed by the workbook digest, the sheet read from it, the
// boundaries and every option that shapes the result. Figures are stored as
// structured keys, never as labels. MemoryCache is used when no Redis address
// is configured.
package cache
