// Package metrics defines a minimal metrics facade for ingestion runs.
//
// The core pipeline emits counters and histograms through package-level
// functions; binaries decide at startup which backend (if any) receives
// them via SetBackend. The default backend discards everything, so
// library code can instrument unconditionally.
package metrics

import "sync"

// Labels are metric dimensions, e.g. {"sheet": "orders", "status": "ok"}.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	// IncCounter adds delta to a named counter.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution.
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush forces submission of any buffered observations.
	Flush() error

	// Close flushes and releases backend resources.
	Close() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Passing nil restores the
// discarding default.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// IncCounter adds delta to a counter on the current backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records a sample on the current backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the current backend.
func Flush() error { return current().Flush() }

// Close closes the current backend and restores the discarding default.
func Close() error {
	mu.Lock()
	b := backend
	backend = nopBackend{}
	mu.Unlock()
	return b.Close()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
func (nopBackend) Close() error                             { return nil }
