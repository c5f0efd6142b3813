// Package operations runs an attendance audit as a sequence of steps with
// per-step timeouts, retries and live progress.
//
// Core Components:
//
// Manager: executes the registered steps in dependency order and keeps the
// state of runs in flight.
//
// Step: one unit of the audit (load, scan, boundaries, extract, consolidate,
// export). Steps share an *Audit through the OperationState context.
//
// Registry: holds steps and orders them topologically.
//
// StatusBroadcaster: the single source of progress snapshots pushed to the
// WebSocket hub as "operation:snapshot" events.
//
// RunBatch: audits several workbooks concurrently with a bounded errgroup.
//
// Example usage:
//
//	manager := operations.NewAuditManager(hub, operations.NewConfig(), operations.AuditDeps{
//		Resolver: files.LatestResolver{Dir: paths.DownloadsDir, Pattern: files.DefaultInputPattern},
//	})
//	resp, err := manager.Execute(ctx, operations.OperationRequest{Audit: &operations.Audit{}})
package operations
