package mirror

import (
	gosync "sync"
	"time"
)

// Report accumulates the outcome of one run. It is an Observer, safe for
// concurrent use, and is returned by Walker.Run even when the run fails.
type Report struct {
	mu gosync.Mutex

	Started  time.Time
	Finished time.Time

	Folders      int
	Fetched      int
	Skipped      int
	Unsupported  int
	Collisions   int
	DepthLimited int
	BytesWritten int64
	Warnings     []Warning
}

func (r *Report) OnWarning(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch w.Kind {
	case WarnUnsupportedType:
		r.Unsupported++
	case WarnNameCollision:
		r.Collisions++
	case WarnDepthLimit:
		r.DepthLimited++
	}

	r.Warnings = append(r.Warnings, w)
}

func (r *Report) OnAction(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch a.Decision {
	case Traverse:
		r.Folders++
	case Fetch:
		r.Fetched++
		r.BytesWritten += a.Bytes
	case Skip:
		if a.Kind != KindUnsupported {
			r.Skipped++
		}
	}
}

// Duration is the wall time of the run, or zero while it is in progress.
func (r *Report) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Finished.IsZero() {
		return 0
	}

	return r.Finished.Sub(r.Started)
}

// WarningsOf returns the warnings of the given kind in arrival order.
func (r *Report) WarningsOf(kind WarningKind) []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Warning

	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}

	return out
}
