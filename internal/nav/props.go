package nav

import (
	"context"
	"log/slog"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/component"
)

// Location is the pass-through navigation location (path and query parameters).
type Location struct {
	Pathname string
	Query    map[string]string
}

// Branch returns the selected branch, if any.
func (l Location) Branch() string {
	return l.Query["branch"]
}

// Context is forwarded unchanged to the subviews. Branches belong to the displayed
// component: they are cleared on a key change and re-resolved through
// Options.Branches when one is set.
type Context struct {
	Branches []string
	Location Location
}

// Props is everything a subview may render from.
type Props struct {
	Component    component.Component
	Branches     []string
	Location     Location
	IsPending    bool
	IsInProgress bool
	IsFailed     bool
	Current      *ce.Task
	QualityGate  string
	Phase        Phase
	Err          error
	Width        int
}

// Subview renders part of the nav. Subviews hold no data of their own.
type Subview interface {
	View(p Props) string
}

// SubviewFunc adapts a function to Subview.
type SubviewFunc func(p Props) string

func (f SubviewFunc) View(p Props) string { return f(p) }

// HistoryRecorder records visited components.
type HistoryRecorder interface {
	Add(c component.Component)
}

// BranchLister resolves the branches of a component.
type BranchLister interface {
	Branches(ctx context.Context, componentKey string) ([]string, error)
}

// BranchListerFunc adapts a function to BranchLister.
type BranchListerFunc func(ctx context.Context, componentKey string) ([]string, error)

func (f BranchListerFunc) Branches(ctx context.Context, componentKey string) ([]string, error) {
	return f(ctx, componentKey)
}

// ErrorReporter receives query failures that were applied to the view.
type ErrorReporter interface {
	Report(componentKey string, err error)
}

// LogReporter reports failures to a slog logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(componentKey string, err error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("loading component status", "component", componentKey, "error", err)
}
