package mirror

import (
	"context"
	"fmt"
	"log/slog"
)

// WarningKind classifies a recoverable condition. Warnings never abort a run.
type WarningKind int

const (
	// WarnUnsupportedType: the item has no export and no downloadable content.
	WarnUnsupportedType WarningKind = iota + 1
	// WarnNameCollision: the sanitized name was taken and the item got a
	// disambiguated name.
	WarnNameCollision
	// WarnDepthLimit: a folder lies below the configured depth and was skipped.
	WarnDepthLimit
)

func (k WarningKind) String() string {
	switch k {
	case WarnUnsupportedType:
		return "unsupported type"
	case WarnNameCollision:
		return "name collision"
	case WarnDepthLimit:
		return "depth limit"
	default:
		return fmt.Sprintf("warning(%d)", int(k))
	}
}

// Warning describes one recoverable condition.
type Warning struct {
	Kind     WarningKind
	ItemID   string
	Name     string // remote display name
	MimeType string
	Path     string // local path the item maps (or would map) to
	Detail   string
}

// Action records the decision taken for one item.
type Action struct {
	Decision Decision
	Kind     Kind
	ItemID   string
	Name     string
	Path     string
	Bytes    int64 // bytes written; zero unless a fetch completed
	DryRun   bool
}

// Observer receives walker events. Implementations must be safe for
// concurrent use: file actions are reported from worker goroutines.
type Observer interface {
	OnWarning(w Warning)
	OnAction(a Action)
}

// LogObserver reports events through a structured logger. Warnings log at
// warn level, fetches at info and everything else at debug.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) OnWarning(w Warning) {
	o.logger().Warn(w.Kind.String(),
		slog.String("item_id", w.ItemID),
		slog.String("name", w.Name),
		slog.String("mime_type", w.MimeType),
		slog.String("path", w.Path),
		slog.String("detail", w.Detail),
	)
}

func (o LogObserver) OnAction(a Action) {
	level := slog.LevelDebug
	if a.Decision == Fetch {
		level = slog.LevelInfo
	}

	o.logger().Log(context.Background(), level, a.Decision.String(),
		slog.String("kind", a.Kind.String()),
		slog.String("item_id", a.ItemID),
		slog.String("path", a.Path),
		slog.Int64("bytes", a.Bytes),
		slog.Bool("dry_run", a.DryRun),
	)
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}

	return o.Logger
}

// MultiObserver fans every event out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnWarning(w Warning) {
	for _, o := range m {
		if o != nil {
			o.OnWarning(w)
		}
	}
}

func (m MultiObserver) OnAction(a Action) {
	for _, o := range m {
		if o != nil {
			o.OnAction(a)
		}
	}
}
