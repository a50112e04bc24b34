// Package metrics is a tiny seam between the pipeline and whatever metrics
// system a deployment uses. The pipeline only ever calls this package; a
// concrete backend (Datadog, or nothing) is installed once at startup.
package metrics

import "sync/atomic"

// Labels tag a metric sample (e.g. {"source": "users"}).
type Labels map[string]string

// Backend is the minimal surface a metrics sink must implement.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	Flush() error
}

// nop is the default backend: counters vanish, Flush succeeds.
type nop struct{}

func (nop) IncCounter(string, float64, Labels) {}
func (nop) Flush() error                       { return nil }

var backend atomic.Value

func init() {
	backend.Store(Backend(nop{}))
}

// SetBackend installs the process-wide backend. Call once at startup,
// before the pipeline runs.
func SetBackend(b Backend) {
	if b == nil {
		b = nop{}
	}
	backend.Store(b)
}

// IncCounter adds delta to a counter. Safe from any goroutine.
func IncCounter(name string, delta float64, labels Labels) {
	backend.Load().(Backend).IncCounter(name, delta, labels)
}

// Flush forces buffered metrics out. Deferred from main.
func Flush() error {
	return backend.Load().(Backend).Flush()
}
