package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/timed-quiz/internal/metrics"
	"github.com/gokatarajesh/timed-quiz/internal/quiz"
	"github.com/gokatarajesh/timed-quiz/internal/quiz/scoring"
	"github.com/gokatarajesh/timed-quiz/internal/results"
	"github.com/gokatarajesh/timed-quiz/internal/token"
	ws "github.com/gokatarajesh/timed-quiz/pkg/http/ws"
)

// ServiceOptions configures session defaults.
type ServiceOptions struct {
	QuestionCount   int
	DurationSeconds int
	FetchTimeout    time.Duration
	// Retention keeps a submitted session reachable so late clients still see the final state.
	Retention  time.Duration
	StartTimer TimerFunc
	NewID      func() string
}

type entry struct {
	runner  *Runner
	reap    *time.Timer
	hardCap *time.Timer
}

// Service owns live sessions and the finalized results they produce.
type Service struct {
	fetcher Fetcher
	store   results.Store
	tokens  *token.Manager
	hub     *ws.Hub
	metrics *metrics.Metrics
	opts    ServiceOptions
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

// StartResult is returned when a session is created.
type StartResult struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	View      View   `json:"state"`
}

// NewService constructs the session service. hub may be nil when no WebSocket
// clients are served.
func NewService(fetcher Fetcher, store results.Store, tokens *token.Manager, hub *ws.Hub, m *metrics.Metrics, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.Retention <= 0 {
		opts.Retention = 10 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Service{
		fetcher:  fetcher,
		store:    store,
		tokens:   tokens,
		hub:      hub,
		metrics:  m,
		opts:     opts,
		logger:   logger.With().Str("component", "session_service").Logger(),
		sessions: make(map[string]*entry),
	}
}

// Start creates a session for email and begins loading its questions.
func (s *Service) Start(ctx context.Context, email string) (StartResult, error) {
	id := s.opts.NewID()

	tok, err := s.tokens.Issue(id, email)
	if err != nil {
		return StartResult{}, fmt.Errorf("issue session token: %w", err)
	}

	runner := NewRunner(id, email, RunnerConfig{
		QuestionCount:   s.opts.QuestionCount,
		DurationSeconds: s.opts.DurationSeconds,
		FetchTimeout:    s.opts.FetchTimeout,
		StartTimer:      s.opts.StartTimer,
	}, s.fetcher, s.store, s.metrics, func(ev Event) { s.notify(id, ev) }, s.logger)

	// Upper bound on lifetime in case the session is abandoned before submit.
	hardCap := time.Duration(s.opts.DurationSeconds)*time.Second + s.opts.FetchTimeout + 2*s.opts.Retention

	s.mu.Lock()
	s.sessions[id] = &entry{
		runner:  runner,
		hardCap: time.AfterFunc(hardCap, func() { s.Close(id) }),
	}
	s.mu.Unlock()

	s.metrics.SessionStarted()
	runner.Start()

	view, err := runner.View(ctx)
	if err != nil {
		return StartResult{}, err
	}

	s.logger.Info().Str("session_id", id).Msg("session started")
	return StartResult{SessionID: id, Token: tok, View: view}, nil
}

// Get returns the live runner for id.
func (s *Service) Get(id string) (*Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.runner, nil
}

// View returns the state of a live session.
func (s *Service) View(ctx context.Context, id string) (View, error) {
	r, err := s.Get(id)
	if err != nil {
		return View{}, err
	}
	return r.View(ctx)
}

// Report returns the scored result for id, or nil when no result is stored.
func (s *Service) Report(ctx context.Context, id string) (*scoring.Report, error) {
	final, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	if final == nil {
		return nil, nil
	}
	rep := scoring.BuildReport(*final)
	return &rep, nil
}

// ClearReport discards the stored result and the live session, if any.
func (s *Service) ClearReport(ctx context.Context, id string) error {
	if err := s.store.Clear(ctx, id); err != nil {
		return fmt.Errorf("clear result: %w", err)
	}
	s.Close(id)
	return nil
}

// Close stops a session and disconnects its clients. Unknown ids are ignored.
func (s *Service) Close(id string) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if e.reap != nil {
		e.reap.Stop()
	}
	if e.hardCap != nil {
		e.hardCap.Stop()
	}

	// The runner may be publishing through notify, which takes s.mu.
	e.runner.Close()
	if s.hub != nil {
		s.hub.CloseSession(id)
	}
	s.metrics.SessionClosed()
	s.logger.Debug().Str("session_id", id).Msg("session closed")
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes every live session.
func (s *Service) Shutdown() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Close(id)
	}
}

func (s *Service) notify(id string, ev Event) {
	if ev.Type == EventSubmitted {
		s.scheduleReap(id)
	}
	if s.hub == nil {
		return
	}

	var (
		msg ws.Message
		err error
	)
	switch ev.Type {
	case EventSubmitted:
		payload := SubmittedPayload{Reason: quiz.ReasonManual}
		if ev.Report != nil {
			payload.Reason = ev.Report.Reason
			payload.Report = *ev.Report
		}
		msg, err = ws.NewMessage(ws.TypeSubmitted, payload)
	default:
		msg, err = ws.NewMessage(ws.TypeState, ev.View)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("encode session event")
		return
	}
	if err := s.hub.Broadcast(id, msg); err != nil {
		s.logger.Debug().Err(err).Str("session_id", id).Msg("broadcast session event")
	}
}

func (s *Service) scheduleReap(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || e.reap != nil {
		return
	}
	e.reap = time.AfterFunc(s.opts.Retention, func() { s.Close(id) })
}
