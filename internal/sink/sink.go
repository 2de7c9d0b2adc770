// Package sink defines the interface and implementations for point
// destinations.
package sink

import (
	"context"

	"github.com/GabrielNunesIT/logflux/internal/model"
)

// Sink is a destination for measurement points. The core hands each
// message's points over as one batch and never retries: a write failure
// is a per-message error, logged and dropped.
type Sink interface {
	// Start initializes the sink (connections, database setup, buffers).
	// Called once before Write is called.
	Start(ctx context.Context) error

	// Write stores a batch of points. Must be safe to call concurrently.
	Write(ctx context.Context, points []*model.Point) error

	// Stop gracefully shuts down the sink, flushing buffered data.
	Stop(ctx context.Context) error

	// Name returns a unique identifier for this sink.
	Name() string
}
