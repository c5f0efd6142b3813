// Package history records completed audit runs.
//
// Two stores are provided. MemoryStore keeps the most recent runs for the
// lifetime of the process. SQLStore persists runs in PostgreSQL through sqlx,
// using either the lib/pq driver ("postgres") or the pgx stdlib driver ("pgx").
package history
