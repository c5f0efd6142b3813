package operations

import "context"

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// Exporter writes the outputs of a finished audit.
type Exporter interface {
	Name() string
	Export(ctx context.Context, audit *Audit) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc struct {
	Label string
	Fn    func(ctx context.Context, audit *Audit) error
}

// Name returns the exporter label.
func (f ExporterFunc) Name() string { return f.Label }

// Export calls Fn.
func (f ExporterFunc) Export(ctx context.Context, audit *Audit) error { return f.Fn(ctx, audit) }
