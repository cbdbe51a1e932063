package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/component"
	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/metrics"
)

// Backend is what the handlers need from storage.
type Backend interface {
	TasksForComponent(ctx context.Context, componentKey string) (*ce.Queue, error)
	ShowComponent(ctx context.Context, key string) (*component.Component, error)
	Submit(ctx context.Context, componentKey, branch string) (*ce.Task, error)
	Cancel(ctx context.Context, taskID string) error
}

type componentParams struct {
	Component string `validate:"required,max=400"`
}

type submitParams struct {
	Component string `validate:"required,max=400"`
	Branch    string `validate:"omitempty,max=255"`
}

type cancelParams struct {
	ID string `validate:"required,uuid"`
}

// Handler serves the compute engine and component endpoints.
type Handler struct {
	backend   Backend
	validator *validator.Validate
	logger    *slog.Logger
}

func NewHandler(backend Backend, logger *slog.Logger) *Handler {
	return &Handler{
		backend:   backend,
		validator: validator.New(),
		logger:    logger,
	}
}

// ComponentTasks handles GET /api/ce/component?component=KEY.
func (h *Handler) ComponentTasks(w http.ResponseWriter, r *http.Request) {
	p := componentParams{Component: r.URL.Query().Get("component")}
	if err := h.validator.Struct(p); err != nil {
		writeError(w, http.StatusBadRequest, "The 'component' parameter is missing or invalid")
		return
	}

	metrics.StatusQueries.Inc()
	q, err := h.backend.TasksForComponent(r.Context(), p.Component)
	if err != nil {
		metrics.StatusQueryErrors.Inc()
		h.fail(w, "loading component tasks", err, "component", p.Component)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ShowComponent handles GET /api/components/show?component=KEY.
func (h *Handler) ShowComponent(w http.ResponseWriter, r *http.Request) {
	p := componentParams{Component: r.URL.Query().Get("component")}
	if err := h.validator.Struct(p); err != nil {
		writeError(w, http.StatusBadRequest, "The 'component' parameter is missing or invalid")
		return
	}

	c, err := h.backend.ShowComponent(r.Context(), p.Component)
	if err != nil {
		h.fail(w, "showing component", err, "component", p.Component)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"component": c})
}

// Submit handles POST /api/ce/submit?component=KEY[&branch=NAME].
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p := submitParams{
		Component: r.URL.Query().Get("component"),
		Branch:    r.URL.Query().Get("branch"),
	}
	if err := h.validator.Struct(p); err != nil {
		writeError(w, http.StatusBadRequest, "The 'component' or 'branch' parameter is invalid")
		return
	}

	task, err := h.backend.Submit(r.Context(), p.Component, p.Branch)
	if err != nil {
		h.fail(w, "submitting task", err, "component", p.Component)
		return
	}
	metrics.TasksSubmitted.Inc()
	h.logger.Info("task submitted", "task_id", task.ID, "component", p.Component, "branch", p.Branch)
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

// Cancel handles POST /api/ce/cancel?id=TASK.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	p := cancelParams{ID: r.URL.Query().Get("id")}
	if err := h.validator.Struct(p); err != nil {
		writeError(w, http.StatusBadRequest, "The 'id' parameter must be a task id")
		return
	}

	if err := h.backend.Cancel(r.Context(), p.ID); err != nil {
		h.fail(w, "canceling task", err, "task_id", p.ID)
		return
	}
	metrics.TasksCanceled.Inc()
	h.logger.Info("task canceled", "task_id", p.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error, attrs ...any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(action, append(attrs, "error", err)...)
		writeError(w, status, "internal server error")
		return
	}
	h.logger.Warn(action, append(attrs, "error", err)...)
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrComponentNotFound), errors.Is(err, db.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrTaskNotCancelable):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msgs ...string) {
	body := ce.ErrorBody{Errors: make([]ce.ErrorMsg, 0, len(msgs))}
	for _, m := range msgs {
		body.Errors = append(body.Errors, ce.ErrorMsg{Msg: m})
	}
	writeJSON(w, status, body)
}
