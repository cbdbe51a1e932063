package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/measure"
)

type finished struct {
	taskID string
	status ce.Status
	msg    *string
}

type fakeStore struct {
	mu         sync.Mutex
	pending    []*ce.Task
	claimErr   error
	finished   []finished
	touches    int
	reported   []measure.Measure
	gate       measure.Gate
	refreshErr error
}

func (s *fakeStore) Claim(_ context.Context, workerID string) (*ce.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	if len(s.pending) == 0 {
		return nil, nil
	}
	t := s.pending[0]
	s.pending = s.pending[1:]
	t.Status = ce.StatusInProgress
	t.WorkerID = &workerID
	return t, nil
}

func (s *fakeStore) Finish(_ context.Context, taskID, _ string, status ce.Status, msg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, finished{taskID, status, msg})
	return nil
}

func (s *fakeStore) Touch(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches++
	return nil
}

func (s *fakeStore) RefreshMeasures(_ context.Context, gate measure.Gate, reported []measure.Measure) (*measure.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	s.gate = gate
	s.reported = append(s.reported, reported...)
	return &measure.Result{Changed: len(reported), Gates: map[string]measure.GateStatus{}}, nil
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newRunner(store Store, command string) *Runner {
	return &Runner{
		ID:         "worker-1",
		Store:      store,
		AnalyzeCmd: command,
		Interval:   10 * time.Millisecond,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestTaskEnv(t *testing.T) {
	branch := "feature/x"
	env := TaskEnv(&ce.Task{ID: "t1", ComponentKey: "proj", Type: ce.TaskTypeReport, Branch: &branch})

	want := []string{
		"VIGIA_TASK_ID=t1",
		"VIGIA_COMPONENT_KEY=proj",
		"VIGIA_TASK_TYPE=REPORT",
		"VIGIA_BRANCH=feature/x",
	}
	if strings.Join(env, "\n") != strings.Join(want, "\n") {
		t.Errorf("TaskEnv() = %v, want %v", env, want)
	}

	env = TaskEnv(&ce.Task{ID: "t2", ComponentKey: "proj"})
	for _, e := range env {
		if strings.HasPrefix(e, "VIGIA_BRANCH=") {
			t.Errorf("unexpected branch entry %q", e)
		}
	}
}

func TestRunOnce_NothingToClaim(t *testing.T) {
	store := &fakeStore{}
	ran, err := newRunner(store, "").RunOnce(context.Background())
	if err != nil || ran {
		t.Errorf("RunOnce() = %v, %v; want false, nil", ran, err)
	}
}

func TestRunOnce_ClaimError(t *testing.T) {
	store := &fakeStore{claimErr: errors.New("db down")}
	_, err := newRunner(store, "").RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("RunOnce() error = %v", err)
	}
}

func TestRunOnce_EmptyCommandSucceeds(t *testing.T) {
	store := &fakeStore{pending: []*ce.Task{{ID: "t1", ComponentKey: "proj"}}}

	ran, err := newRunner(store, "").RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("RunOnce() = %v, %v", ran, err)
	}
	if len(store.finished) != 1 || store.finished[0].status != ce.StatusSuccess || store.finished[0].msg != nil {
		t.Errorf("finished = %+v", store.finished)
	}
}

func TestRunOnce_CommandSeesTask(t *testing.T) {
	requireSh(t)
	store := &fakeStore{pending: []*ce.Task{{ID: "t1", ComponentKey: "proj"}}}

	_, err := newRunner(store, `test "$VIGIA_COMPONENT_KEY" = proj && test "$VIGIA_TASK_ID" = t1`).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if store.finished[0].status != ce.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", store.finished[0].status)
	}
}

func TestRunOnce_CommandFailure(t *testing.T) {
	requireSh(t)
	store := &fakeStore{pending: []*ce.Task{{ID: "t1", ComponentKey: "proj"}}}

	_, err := newRunner(store, "echo 'quality gate failed' >&2; exit 3").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	f := store.finished[0]
	if f.status != ce.StatusFailed {
		t.Fatalf("status = %s, want FAILED", f.status)
	}
	if f.msg == nil || *f.msg != "quality gate failed" {
		t.Errorf("message = %v", f.msg)
	}
}

func TestRunOnce_SilentFailureUsesExitError(t *testing.T) {
	requireSh(t)
	store := &fakeStore{pending: []*ce.Task{{ID: "t1", ComponentKey: "proj"}}}

	if _, err := newRunner(store, "exit 2").RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if msg := store.finished[0].msg; msg == nil || !strings.Contains(*msg, "exit status 2") {
		t.Errorf("message = %v", msg)
	}
}

func TestFailureMessageTruncated(t *testing.T) {
	out := strings.Repeat("x", maxErrorMessage+100) + "tail"
	msg := failureMessage(Output{Stderr: out}, errors.New("exit status 1"))
	if !strings.HasSuffix(msg, "tail") || !strings.HasPrefix(msg, "…") {
		t.Errorf("unexpected truncation: %q...", msg[:10])
	}
	if len(msg) != maxErrorMessage {
		t.Errorf("len = %d, want %d", len(msg), maxErrorMessage)
	}
}

func TestFailureMessageShortKeptWhole(t *testing.T) {
	out := strings.Repeat("y", maxErrorMessage)
	if msg := failureMessage(Output{Stderr: out}, errors.New("exit status 1")); msg != out {
		t.Errorf("message of exactly %d bytes should not be truncated", maxErrorMessage)
	}
}

func TestFailureMessagePrefersStderr(t *testing.T) {
	msg := failureMessage(Output{Stdout: "partial report", Stderr: "boom"}, errors.New("exit status 1"))
	if msg != "boom" {
		t.Errorf("failureMessage() = %q, want boom", msg)
	}
	msg = failureMessage(Output{Stdout: "only stdout\n"}, errors.New("exit status 1"))
	if msg != "only stdout" {
		t.Errorf("failureMessage() = %q, want stdout", msg)
	}
}

func TestRunOnce_AppliesReportedMeasures(t *testing.T) {
	requireSh(t)
	store := &fakeStore{pending: []*ce.Task{{ID: "t1", ComponentKey: "proj"}}}
	cmd := `echo "scanning" >&2; echo '{"measures":[{"metric":"bugs","value":3},{"component":"proj:a.go","metric":"ncloc","value":40}]}'`

	if _, err := newRunner(store, cmd).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if store.finished[0].status != ce.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", store.finished[0].status)
	}
	want := []measure.Measure{
		{ComponentKey: "proj", Metric: measure.MetricBugs, Value: 3},
		{ComponentKey: "proj:a.go", Metric: measure.MetricNcloc, Value: 40},
	}
	if len(store.reported) != 2 || store.reported[0] != want[0] || store.reported[1] != want[1] {
		t.Errorf("reported = %+v, want %+v", store.reported, want)
	}
	if len(store.gate.Conditions) != len(measure.DefaultGate.Conditions) {
		t.Errorf("gate = %+v, want the default gate", store.gate)
	}
}

func TestRunOnce_InvalidReportFailsTask(t *testing.T) {
	requireSh(t)
	store := &fakeStore{pending: []*ce.Task{{ID: "t1", ComponentKey: "proj"}}}

	if _, err := newRunner(store, `echo 'done!'`).RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	f := store.finished[0]
	if f.status != ce.StatusFailed || f.msg == nil || !strings.Contains(*f.msg, "measure report") {
		t.Errorf("finished = %+v", f)
	}
	if len(store.reported) != 0 {
		t.Error("no measures should be applied")
	}
}

func TestRunOnce_RefreshErrorFailsTask(t *testing.T) {
	requireSh(t)
	store := &fakeStore{
		pending:    []*ce.Task{{ID: "t1", ComponentKey: "proj"}},
		refreshErr: errors.New("lock timeout"),
	}

	if _, err := newRunner(store, `echo '{"measures":[{"metric":"bugs","value":1}]}'`).RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	f := store.finished[0]
	if f.status != ce.StatusFailed || f.msg == nil || *f.msg != "lock timeout" {
		t.Errorf("finished = %+v", f)
	}
}

func TestRun_DrainsQueueAndStops(t *testing.T) {
	store := &fakeStore{pending: []*ce.Task{{ID: "a"}, {ID: "b"}}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- newRunner(store, "").Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.finished)
		store.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for tasks to finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.touches == 0 {
		t.Error("expected heartbeats")
	}
}

func TestCommand(t *testing.T) {
	got := strings.Join(Command("/usr/bin/vigia", "worker-2"), " ")
	if got != "/usr/bin/vigia worker run --id worker-2" {
		t.Errorf("Command() = %q", got)
	}
}

func TestNextID(t *testing.T) {
	if got := NextID(nil); got != "worker-1" {
		t.Errorf("NextID(nil) = %q", got)
	}
	existing := []*db.Worker{{ID: "worker-1"}, {ID: "worker-3"}}
	if got := NextID(existing); got != "worker-2" {
		t.Errorf("NextID() = %q, want worker-2", got)
	}
}
