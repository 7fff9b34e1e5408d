// Package daemon runs the review watcher: it reloads the scenario on a
// schedule, diffs it against the last committed snapshot and serves the
// pending changes over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
)

// Event types.
const (
	EventSnapshot  = "snapshot"
	EventChanges   = "changes"
	EventCommitted = "committed"
)

// Config controls the watcher runtime behavior.
type Config struct {
	// Schedule is a cron spec with seconds, e.g. "@every 30s".
	Schedule       string
	Addr           string
	EventsBuffer   int
	Threshold      decimal.Decimal
	AllowedOrigins []string
}

// LoadFunc rebuilds the workspace from the scenario and the latest commit.
type LoadFunc func(ctx context.Context) (*review.Workspace, error)

// Summary is the compact review state carried by status and events.
type Summary struct {
	At              time.Time                           `json:"at"`
	BaselineID      string                              `json:"baseline_id,omitempty"`
	Changes         int                                 `json:"changes"`
	Fingerprint     string                              `json:"fingerprint,omitempty"`
	Blocking        int                                 `json:"blocking"`
	Warnings        int                                 `json:"warnings"`
	TotalCost       decimal.Decimal                     `json:"total_cost"`
	Attributed      decimal.Decimal                     `json:"attributed"`
	FranchiseDeltas map[model.Franchise]decimal.Decimal `json:"franchise_deltas,omitempty"`
}

// Changes is served at /v1/changes.
type Changes struct {
	Summary Summary                 `json:"summary"`
	Lines   []string                `json:"lines"`
	Metrics []review.PatchOp        `json:"metrics"`
	Impacts []review.ActivityImpact `json:"impacts"`
	Issues  []review.Issue          `json:"issues"`
}

// Event is emitted whenever the pending change set or the baseline moves.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Summary   Summary   `json:"summary"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	Schedule        string    `json:"schedule"`
	PollCount       int64     `json:"poll_count"`
	Summary         Summary   `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the watcher runtime and HTTP API.
type Service struct {
	cfg  Config
	log  zerolog.Logger
	load LoadFunc

	events *broker

	mu         sync.RWMutex
	startedAt  time.Time
	lastPollAt time.Time
	pollCount  int64
	lastError  string
	hasSummary bool
	changes    Changes
}

// New returns a watcher with the provided config.
func New(log zerolog.Logger, cfg Config, load LoadFunc) *Service {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 30s"
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return &Service{
		cfg:       cfg,
		log:       log.With().Str("component", "watcher").Logger(),
		load:      load,
		events:    newBroker(cfg.EventsBuffer),
		startedAt: time.Now(),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/changes", s.handleChanges)
		r.Get("/events", s.handleEvents)
		r.Get("/stream", s.handleStream)
	})
	return r
}

// Run serves HTTP and polls on the schedule until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	sched := cron.New(cron.WithSeconds())
	if _, err := sched.AddFunc(s.cfg.Schedule, func() { s.pollOnce(ctx) }); err != nil {
		return errors.Wrapf(err, "schedule %q", s.cfg.Schedule)
	}

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info().Str("addr", s.cfg.Addr).Str("schedule", s.cfg.Schedule).Msg("watcher started")

	// Seed so status is useful immediately.
	s.pollOnce(ctx)
	sched.Start()

	stop := func() error {
		<-sched.Stop().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		return stop()
	case err := <-errCh:
		_ = stop()
		return errors.Wrap(err, "watcher http server")
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	now := time.Now()
	ws, err := s.load(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = now
		s.pollCount++
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("poll failed")
		return
	}

	changes := s.summarize(ws, now)

	s.mu.Lock()
	prev := s.changes.Summary
	hadSummary := s.hasSummary

	s.hasSummary = true
	s.changes = changes
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""
	s.mu.Unlock()

	typ := classify(prev, changes.Summary, hadSummary)
	if typ == "" {
		return
	}
	ev := s.events.publish(Event{Type: typ, Timestamp: now, Summary: changes.Summary})
	s.log.Info().Int64("id", ev.ID).Str("event", typ).Int("changes", changes.Summary.Changes).Msg("review state moved")
}

func (s *Service) summarize(ws *review.Workspace, at time.Time) Changes {
	cs := ws.Review()
	issues := ws.Readiness()
	blocking := len(review.Blocking(issues))

	state := ws.State()
	total := decimal.Zero
	for _, u := range state.Units {
		total = total.Add(u.Total())
	}

	sum := Summary{
		At:              at,
		BaselineID:      cs.BaselineID,
		Changes:         cs.Len(),
		Blocking:        blocking,
		Warnings:        len(issues) - blocking,
		TotalCost:       total,
		Attributed:      pipeline.SumAmounts(cs.After.Franchises),
		FranchiseDeltas: cs.FranchiseDeltas,
	}
	lines := []string{}
	metrics := []review.PatchOp{}
	if !cs.IsEmpty() {
		sum.Fingerprint = cs.FingerprintHex()
		lines = cs.Lines()[1:]
		metrics = append(metrics, cs.MetricPatches()...)
	}
	return Changes{
		Summary: sum,
		Lines:   lines,
		Metrics: metrics,
		Impacts: cs.Significant(s.cfg.Threshold),
		Issues:  issues,
	}
}

// classify names the event a poll produces, or "" when nothing moved.
func classify(prev, curr Summary, hadPrev bool) string {
	switch {
	case !hadPrev:
		return EventSnapshot
	case prev.BaselineID != curr.BaselineID:
		return EventCommitted
	case prev.Fingerprint != curr.Fingerprint:
		return EventChanges
	default:
		return ""
	}
}

func (s *Service) status() Status {
	events, subs := s.events.counts()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		Schedule:        s.cfg.Schedule,
		PollCount:       s.pollCount,
		Summary:         s.changes.Summary,
		LastError:       s.lastError,
		EventCount:      events,
		SubscriberCount: subs,
	}
}

func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.status())
}

func (s *Service) handleChanges(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	changes := s.changes
	ready := s.hasSummary
	s.mu.RUnlock()

	if !ready {
		http.Error(w, "no poll has completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, changes)
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.events.recent())
}

// handleStream sends the current summary, then every new event, until the
// client goes away.
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.events.subscribe()
	defer cancel()

	ev := Event{Type: EventSnapshot, Timestamp: time.Now(), Summary: s.status().Summary}
	for {
		if err := writeSSE(w, ev); err != nil {
			s.log.Debug().Err(err).Msg("stream closed")
			return
		}
		flusher.Flush()
		select {
		case <-r.Context().Done():
			return
		case ev = <-ch:
		}
	}
}
