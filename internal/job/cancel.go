// Package job holds the shared state of a translation job: the
// cancellation flag, the progress event stream and the job registry used
// by the HTTP surface.
package job

import "sync/atomic"

// CancelFlag is the single piece of state shared across a job's workers.
// It is set once by the controlling context and only read everywhere
// else; pass it by reference into every worker invocation.
type CancelFlag struct {
	set atomic.Bool
}

// Set requests cancellation. Idempotent.
func (f *CancelFlag) Set() {
	f.set.Store(true)
}

// IsSet reports whether cancellation was requested.
func (f *CancelFlag) IsSet() bool {
	return f.set.Load()
}
