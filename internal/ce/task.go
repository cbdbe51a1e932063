// Package ce describes background analysis tasks ("compute engine" tasks) and the
// service contract used to query them.
package ce

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusCanceled   Status = "CANCELED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSuccess, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Finished reports whether s is terminal.
func (s Status) Finished() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// TaskTypeReport is the type of a regular analysis report task.
const TaskTypeReport = "REPORT"

// Task is one unit of background work for a component.
type Task struct {
	ID              string     `json:"id"`
	ComponentKey    string     `json:"componentKey"`
	Type            string     `json:"type"`
	Status          Status     `json:"status"`
	Branch          *string    `json:"branch,omitempty"`
	SubmitterLogin  *string    `json:"submitterLogin,omitempty"`
	WorkerID        *string    `json:"workerId,omitempty"`
	SubmittedAt     time.Time  `json:"submittedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	ExecutedAt      *time.Time `json:"executedAt,omitempty"`
	ExecutionTimeMs *int64     `json:"executionTimeMs,omitempty"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
}

// Queue is the task snapshot of a single component: the work still queued or running,
// plus the last finished task and the quality gate status ("OK", "ERROR") if known.
type Queue struct {
	Queue       []Task `json:"queue"`
	Current     *Task  `json:"current,omitempty"`
	QualityGate string `json:"qualityGate,omitempty"`
}

// HasStatus reports whether any queued task has the given status.
func (q *Queue) HasStatus(s Status) bool {
	if q == nil {
		return false
	}
	for _, t := range q.Queue {
		if t.Status == s {
			return true
		}
	}
	return false
}
