// Package http exposes node selection episodes over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/stepbnb"
	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/pkg/adapters/knapsack"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/episode"
	"github.com/aretw0/stepbnb/pkg/ports"
)

// Episodes is the episode manager the server drives.
type Episodes = episode.Manager[domain.FocusNodeInfo]

// Server serves the episode API.
type Server struct {
	Episodes *Episodes
	Streams  *StreamManager

	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	engineOpts []knapsack.Option
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer serves the gatherer's metrics on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithEngineOptions configures the engine built for every new episode.
func WithEngineOptions(opts ...knapsack.Option) Option {
	return func(s *Server) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// NewHandler creates a new HTTP handler for the episode manager.
func NewHandler(episodes *Episodes, opts ...Option) http.Handler {
	s := &Server{
		Episodes: episodes,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/episodes", func(r chi.Router) {
		r.Get("/", s.ListEpisodes)
		r.Post("/", s.CreateEpisode)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetEpisode)
			r.Delete("/", s.DeleteEpisode)
			r.Post("/step", s.StepEpisode)
			r.Get("/trace", s.GetTrace)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateRequest starts an episode on an explicit instance or a generated one.
type CreateRequest struct {
	Instance *knapsack.Instance `json:"instance,omitempty"`
	Seed     uint64             `json:"seed,omitempty"`
	Items    int                `json:"items,omitempty" validate:"omitempty,gte=1,lte=10000"`
}

// StepRequest answers the pending decision. A null node declines to select.
type StepRequest struct {
	Node *domain.NodeID `json:"node"`
}

// EpisodeResponse describes an episode after its last transition.
type EpisodeResponse struct {
	ID          string                `json:"id"`
	Done        bool                  `json:"done"`
	Status      string                `json:"status"`
	ActionSet   domain.ActionSet      `json:"action_set"`
	Observation *domain.FocusNodeInfo `json:"observation,omitempty"`
}

var requestValidator = validator.New()

// CreateEpisode handles POST /episodes.
func (s *Server) CreateEpisode(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("CreateEpisode: Invalid request body", "err", err)
		return
	}
	if err := requestValidator.Struct(body); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	inst := body.Instance
	if inst == nil {
		items := body.Items
		if items == 0 {
			items = 20
		}
		inst = knapsack.Generate(body.Seed, items)
	}
	if err := inst.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid instance: %v", err), http.StatusBadRequest)
		return
	}

	snap, err := s.Episodes.Start(r.Context(), s.factory(inst))
	if err != nil {
		s.fail(w, "CreateEpisode", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toResponse(snap))
}

func (s *Server) factory(inst *knapsack.Instance) stepbnb.Factory {
	return func(context.Context) (ports.Engine, error) {
		e, err := knapsack.NewWithInstance(inst, s.engineOpts...)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// ListEpisodes handles GET /episodes.
func (s *Server) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"episodes": s.Episodes.List()})
}

// GetEpisode handles GET /episodes/{id}.
func (s *Server) GetEpisode(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Episodes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetEpisode", err)
		return
	}
	s.writeJSON(w, http.StatusOK, toResponse(snap))
}

// StepEpisode handles POST /episodes/{id}/step.
func (s *Server) StepEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body StepRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("StepEpisode: Invalid request body", "episode", id, "err", err)
		return
	}

	snap, err := s.Episodes.Step(r.Context(), id, body.Node)
	if err != nil {
		s.fail(w, "StepEpisode", err)
		return
	}
	resp := toResponse(snap)
	if raw, err := json.Marshal(resp); err == nil {
		s.Streams.Broadcast(id, string(raw))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetTrace handles GET /episodes/{id}/trace.
func (s *Server) GetTrace(w http.ResponseWriter, r *http.Request) {
	steps, err := s.Episodes.Trace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetTrace", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]domain.Step{"steps": steps})
}

// DeleteEpisode handles DELETE /episodes/{id}. It cancels the run and frees the engine.
func (s *Server) DeleteEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Episodes.Delete(r.Context(), id); err != nil {
		s.fail(w, "DeleteEpisode", err)
		return
	}
	s.Streams.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "stepbnb-http",
		"version": strings.TrimSpace(stepbnb.Version),
	})
}

// SubscribeEvents handles GET /episodes/{id}/events (SSE). Every step of the
// episode is pushed as one event until the episode is deleted.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.Episodes.Get(r.Context(), id); err != nil {
		s.fail(w, "SubscribeEvents", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: Subscribed to episode", "episode", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "episode", id)
			return
		case msg, ok := <-ch:
			if !ok {
				fmt.Fprintf(w, "event: closed\ndata: %s\n\n", id)
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrEpisodeNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyFinished), errors.Is(err, domain.ErrSessionClosed):
		code = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "err", err, "code", code)
	}
	http.Error(w, err.Error(), code)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func toResponse(snap episode.Snapshot[domain.FocusNodeInfo]) EpisodeResponse {
	resp := EpisodeResponse{
		ID:        snap.ID,
		Done:      snap.Transition.Done,
		Status:    snap.Status.String(),
		ActionSet: snap.Transition.ActionSet,
	}
	if snap.Transition.HasObservation {
		obs := snap.Transition.Observation
		resp.Observation = &obs
	}
	return resp
}
