// Package genreg tracks which cache generation is current. At most one
// generation is current at a time; everything else is garbage awaiting
// eviction by Activate.
//
// Use Local (default) for single-process deployments, or Redis so that
// replicas agree on the current generation and it survives restarts.
package genreg

import "context"

// Registry records the current generation name.
type Registry interface {
	// Current returns the current generation; "" when none has been
	// activated yet.
	Current(ctx context.Context) (string, error)
	// SetCurrent promotes the named generation. The previous holder is
	// implicitly demoted.
	SetCurrent(ctx context.Context, name string) error
	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}
