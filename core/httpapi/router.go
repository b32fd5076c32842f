// Package httpapi exposes the dispatcher and the profile store over HTTP:
// an event endpoint for non-chat clients plus admin views of profiles and
// in-flight sessions.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/financebot/core/dialogue"
	"github.com/m3rciful/financebot/core/dispatch"
	"github.com/m3rciful/financebot/core/domain"
	"github.com/m3rciful/financebot/core/store"
)

// EventSink runs an event to completion and returns the reply.
type EventSink interface {
	Dispatch(ctx context.Context, ev dispatch.Event) (string, error)
}

// Profiles reads stored profiles.
type Profiles interface {
	GetProfile(ctx context.Context, userID int64) (domain.Profile, error)
	Ping(ctx context.Context) error
}

// Sessions inspects and aborts in-flight dialogues.
type Sessions interface {
	Spec() *dialogue.Spec
	Snapshot(userID int64) (dialogue.Session, bool)
	Abort(userID int64) bool
}

// Deps are the collaborators the router serves.
type Deps struct {
	Events     EventSink
	Profiles   Profiles
	Sessions   Sessions
	AdminToken string
}

type handler struct {
	deps Deps
}

// NewRouter wires the HTTP routes.
func NewRouter(deps Deps) http.Handler {
	h := &handler{deps: deps}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Get("/ready", h.handleReady)
	r.Route("/api", func(api chi.Router) {
		api.Use(bearerAuth(deps.AdminToken))
		api.Post("/events", h.handleEvent)
		api.Get("/profiles/{userID}", h.handleGetProfile)
		api.Get("/sessions/{userID}", h.handleGetSession)
		api.Delete("/sessions/{userID}", h.handleAbortSession)
	})
	return r
}

func (h *handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.deps.Profiles != nil {
		if err := h.deps.Profiles.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type eventRequest struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Text   string `json:"text"`
}

type eventResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

func (h *handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID <= 0 || strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "user_id and text are required")
		return
	}

	ev := dispatch.ParseEvent(domain.Identity{ID: req.UserID, Name: req.Name}, req.Text)
	reply, err := h.deps.Events.Dispatch(r.Context(), ev)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, eventResponse{Reply: reply})
	case errors.Is(err, dispatch.ErrQueueFull):
		respondError(w, http.StatusTooManyRequests, "too many pending events for this user")
	case errors.Is(err, dispatch.ErrPoolClosed):
		respondError(w, http.StatusServiceUnavailable, "shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		respondJSON(w, http.StatusGatewayTimeout, eventResponse{Reply: reply, Error: "timeout"})
	default:
		respondJSON(w, http.StatusInternalServerError, eventResponse{Reply: reply, Error: "handler failed"})
	}
}

type answerDTO struct {
	Step  string `json:"step"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

func answersDTO(answers domain.Answers) []answerDTO {
	out := make([]answerDTO, 0, len(answers))
	for _, a := range answers {
		var v any = a.Value.Text
		if a.Value.Kind == domain.KindNumber {
			v = a.Value.Number
		}
		out = append(out, answerDTO{Step: a.Step, Kind: string(a.Value.Kind), Value: v})
	}
	return out
}

type profileDTO struct {
	UserID           int64       `json:"user_id"`
	Name             string      `json:"name"`
	RegisteredAt     time.Time   `json:"registered_at"`
	AnswersUpdatedAt *time.Time  `json:"answers_updated_at,omitempty"`
	Answers          []answerDTO `json:"answers"`
}

func (h *handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	p, err := h.deps.Profiles.GetProfile(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	dto := profileDTO{
		UserID:       p.Identity.ID,
		Name:         p.Identity.Name,
		RegisteredAt: p.RegisteredAt,
		Answers:      answersDTO(p.Answers),
	}
	if !p.AnswersUpdatedAt.IsZero() {
		ts := p.AnswersUpdatedAt
		dto.AnswersUpdatedAt = &ts
	}
	respondJSON(w, http.StatusOK, dto)
}

type sessionDTO struct {
	UserID    int64       `json:"user_id"`
	Phase     string      `json:"phase"`
	StepIndex int         `json:"step_index"`
	Step      string      `json:"step"`
	Answers   []answerDTO `json:"answers"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (h *handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	s, found := h.deps.Sessions.Snapshot(userID)
	if !found {
		respondError(w, http.StatusNotFound, "no active session")
		return
	}
	dto := sessionDTO{
		UserID:    s.Identity.ID,
		Phase:     s.Phase.String(),
		StepIndex: s.StepIndex,
		Answers:   answersDTO(s.Answers),
		StartedAt: s.StartedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if spec := h.deps.Sessions.Spec(); s.StepIndex < spec.Len() {
		dto.Step = spec.Step(s.StepIndex).Name
	}
	respondJSON(w, http.StatusOK, dto)
}

func (h *handler) handleAbortSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"aborted": h.deps.Sessions.Abort(userID)})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}
