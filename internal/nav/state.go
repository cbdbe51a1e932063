package nav

import "github.com/otavio/vigia/internal/ce"

// Phase is where the model is in its query lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ViewState is what the nav shows about background work.
type ViewState struct {
	IsPending    bool
	IsInProgress bool
	IsFailed     bool
	Current      *ce.Task
	QualityGate  string
}

// DeriveState computes the view state from a single snapshot and nothing else.
func DeriveState(q *ce.Queue) ViewState {
	if q == nil {
		return ViewState{}
	}
	s := ViewState{
		IsPending:    q.HasStatus(ce.StatusPending),
		IsInProgress: q.HasStatus(ce.StatusInProgress),
		Current:      q.Current,
		QualityGate:  q.QualityGate,
	}
	if q.Current != nil && q.Current.Status == ce.StatusFailed {
		s.IsFailed = true
	}
	return s
}
