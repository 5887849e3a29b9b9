// Package scanengine implements the per-scan-type Scanner Implementations
// (C3): one scanner per scan type, each composing C2's detection
// primitives with source-specific I/O behind the uniform contract
// Scanner.Run(ctx, ScanRequest) -> (stream of ScanEvent, error).
package scanengine

import (
	"context"
	"sync"

	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// Scanner is the contract every concrete scan-type implementation honors.
// Run must: honor ctx cancellation within a bounded latency, emit
// Progress at least every 10s during active work, never panic out
// (recoverable errors become Diagnostic+Done{partial:true}), and be
// stateless across invocations — all state lives in ctx, req and snap.
type Scanner interface {
	ScanType() config.ScanType
	// RetrySafe reports whether the orchestrator may retry this scanner
	// after a transient infrastructure failure.
	RetrySafe() bool
	Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error)
}

// Registry maps scan types to their constructed Scanner implementation,
// a closed enum of implementations built at startup rather than a
// dynamic dispatch-by-string-key.
type Registry struct {
	mu       sync.RWMutex
	scanners map[config.ScanType]Scanner
}

func NewRegistry() *Registry {
	return &Registry{scanners: make(map[config.ScanType]Scanner)}
}

func (r *Registry) Register(s Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners[s.ScanType()] = s
}

// Get returns the scanner for a scan type. The bool is false for an
// unrecognized scan type, which the orchestrator turns into a synchronous
// RejectedUnknownScanType rather than a failure deep in the pipeline.
func (r *Registry) Get(t config.ScanType) (Scanner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scanners[t]
	return s, ok
}

// emitChan is a small helper every scanner uses to push events while
// honoring cancellation on the send itself — the suspension point spec
// §5 requires cancellation to be observed between finding emissions.
func emitChan(ctx context.Context, ch chan<- domain.ScanEvent, ev domain.ScanEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- ev:
		return true
	}
}
