package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/timed-quiz/internal/metrics"
	"github.com/gokatarajesh/timed-quiz/internal/question"
	"github.com/gokatarajesh/timed-quiz/internal/quiz"
	"github.com/gokatarajesh/timed-quiz/internal/quiz/scoring"
	"github.com/gokatarajesh/timed-quiz/internal/quiz/timer"
	"github.com/gokatarajesh/timed-quiz/internal/results"
)

const persistTimeout = 5 * time.Second

// Fetcher supplies question batches (implemented by question.Source).
type Fetcher interface {
	Fetch(ctx context.Context, count int) ([]question.Question, error)
}

// TimerFunc starts a countdown; timer.Start in production.
type TimerFunc func(durationSeconds int, onExpire func()) *timer.Countdown

// RunnerConfig carries per-session settings.
type RunnerConfig struct {
	QuestionCount   int
	DurationSeconds int
	FetchTimeout    time.Duration
	StartTimer      TimerFunc
}

type command struct {
	fn    func() error
	reply chan commandResult
}

type commandResult struct {
	view View
	err  error
}

// Runner owns one quiz.Session. Every mutation, including fetch completion and
// timer expiry, runs on the runner's goroutine, so the session needs no lock.
type Runner struct {
	id      string
	email   string
	cfg     RunnerConfig
	fetcher Fetcher
	store   results.Store
	metrics *metrics.Metrics
	notify  func(Event)
	logger  zerolog.Logger

	cmds      chan command
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once

	countdown atomic.Pointer[timer.Countdown]
	submitted atomic.Bool

	// Owned by the loop goroutine.
	session   *quiz.Session
	loading   bool
	loadErr   *LoadError
	report    *scoring.Report
	persisted bool
}

// NewRunner builds a runner; call Start to begin loading.
func NewRunner(id, email string, cfg RunnerConfig, fetcher Fetcher, store results.Store, m *metrics.Metrics, notify func(Event), logger zerolog.Logger) *Runner {
	if cfg.StartTimer == nil {
		cfg.StartTimer = timer.Start
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		id:      id,
		email:   email,
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		metrics: m,
		notify:  notify,
		logger:  logger.With().Str("component", "session_runner").Str("session_id", id).Logger(),
		cmds:    make(chan command),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		session: quiz.NewSession(id),
	}
}

// Start launches the loop and the first question fetch.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		go r.loop()
		r.post(func() error {
			r.beginLoad()
			return nil
		})
	})
}

// Close stops the runner and waits for its loop to exit. An in-flight fetch is
// abandoned and its result discarded.
func (r *Runner) Close() {
	r.cancel()
	r.startOnce.Do(func() { close(r.done) })
	<-r.done
}

// Done is closed when the runner has stopped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) ID() string { return r.id }

// Submitted reports whether the session has been finalized. Safe from any goroutine.
func (r *Runner) Submitted() bool {
	return r.submitted.Load()
}

// Remaining returns the whole seconds left on the countdown. Safe from any goroutine.
func (r *Runner) Remaining() int {
	if c := r.countdown.Load(); c != nil {
		return c.Remaining()
	}
	if r.cfg.DurationSeconds < 0 {
		return 0
	}
	return r.cfg.DurationSeconds
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			if c := r.countdown.Load(); c != nil {
				c.Cancel()
			}
			return
		case cmd := <-r.cmds:
			err := cmd.fn()
			if cmd.reply != nil {
				cmd.reply <- commandResult{view: r.view(), err: err}
			}
		}
	}
}

// exec runs fn on the loop and returns the resulting view.
func (r *Runner) exec(ctx context.Context, fn func() error) (View, error) {
	reply := make(chan commandResult, 1)
	select {
	case r.cmds <- command{fn: fn, reply: reply}:
	case <-r.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.view, res.err
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// post queues fn without waiting. It gives up once the runner is closed.
func (r *Runner) post(fn func() error) {
	select {
	case r.cmds <- command{fn: fn}:
	case <-r.ctx.Done():
	}
}

func (r *Runner) beginLoad() {
	if r.loading || r.session.Phase() != quiz.PhaseLoading {
		return
	}
	r.loading = true
	r.loadErr = nil
	r.publish(EventState)

	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.FetchTimeout)
		defer cancel()

		qs, err := r.fetcher.Fetch(ctx, r.cfg.QuestionCount)
		r.post(func() error {
			r.finishLoad(qs, err)
			return nil
		})
	}()
}

func (r *Runner) finishLoad(qs []question.Question, err error) {
	r.loading = false
	if r.session.Phase() != quiz.PhaseLoading {
		return
	}

	if err != nil {
		r.loadErr = &LoadError{
			Kind:      question.Kind(err),
			Message:   err.Error(),
			Retryable: true,
		}
		r.logger.Warn().Err(err).Str("kind", r.loadErr.Kind).Msg("question load failed")
		r.publish(EventState)
		return
	}

	if err := r.session.Load(qs); err != nil {
		r.logger.Error().Err(err).Msg("load session")
		return
	}
	r.startCountdown()
	r.logger.Info().Int("questions", len(qs)).Int("duration_seconds", r.cfg.DurationSeconds).Msg("session loaded")
	r.publish(EventState)
}

func (r *Runner) startCountdown() {
	c := r.cfg.StartTimer(r.cfg.DurationSeconds, func() {
		// Runs under the countdown lock; hand off so Cancel from the loop cannot deadlock.
		go r.post(func() error {
			_, err := r.submit(quiz.ReasonExpired)
			return err
		})
	})
	r.countdown.Store(c)
}

// submit finalizes the session once and persists the result. A failed Put is
// retried by the next submit call. Loading or failed sessions are not ready.
func (r *Runner) submit(reason quiz.SubmitReason) (scoring.Report, error) {
	if err := r.requireLoaded(); err != nil {
		return scoring.Report{}, err
	}
	first := !r.session.Submitted()
	final, err := r.session.Submit(reason)
	if err != nil {
		return scoring.Report{}, fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	if first {
		if c := r.countdown.Load(); c != nil {
			c.Cancel()
		}
		r.submitted.Store(true)
		rep := scoring.BuildReport(final)
		r.report = &rep
		r.metrics.SessionSubmitted(string(final.Reason), rep.Summary.Correct)
		r.logger.Info().
			Str("reason", string(final.Reason)).
			Int("correct", rep.Summary.Correct).
			Int("total", rep.Summary.Total).
			Msg("session submitted")
	}

	if !r.persisted {
		ctx, cancel := context.WithTimeout(r.ctx, persistTimeout)
		defer cancel()
		if err := r.store.Put(ctx, r.id, final); err != nil {
			r.logger.Error().Err(err).Msg("persist result")
			if first {
				r.publish(EventSubmitted)
			}
			return *r.report, fmt.Errorf("persist result: %w", err)
		}
		r.persisted = true
	}

	if first {
		r.publish(EventSubmitted)
	}
	return *r.report, nil
}

func (r *Runner) publish(t EventType) {
	if r.notify == nil {
		return
	}
	r.notify(Event{Type: t, View: r.view(), Report: r.report})
}

// requireLoaded rejects interaction while questions are loading. Submitted
// sessions pass so that mutations fall through as no-ops.
func (r *Runner) requireLoaded() error {
	if r.session.Phase() == quiz.PhaseLoading {
		return ErrNotReady
	}
	return nil
}

func (r *Runner) mutate(ctx context.Context, fn func() error) (View, error) {
	return r.exec(ctx, func() error {
		if err := r.requireLoaded(); err != nil {
			return err
		}
		if r.session.Submitted() {
			return nil
		}
		if err := fn(); err != nil {
			return err
		}
		r.publish(EventState)
		return nil
	})
}

// View returns the current state.
func (r *Runner) View(ctx context.Context) (View, error) {
	return r.exec(ctx, func() error { return nil })
}

// Retry re-runs a failed question load.
func (r *Runner) Retry(ctx context.Context) (View, error) {
	return r.exec(ctx, func() error {
		if r.session.Phase() != quiz.PhaseLoading || r.loadErr == nil {
			if r.loading {
				return nil
			}
			return ErrNotFailed
		}
		r.beginLoad()
		return nil
	})
}

// SelectAnswer records option for the current question.
func (r *Runner) SelectAnswer(ctx context.Context, option string) (View, error) {
	return r.mutate(ctx, func() error { return r.session.SelectAnswer(option) })
}

// GoToQuestion jumps to index; out-of-range indexes leave the state unchanged.
func (r *Runner) GoToQuestion(ctx context.Context, index int) (View, error) {
	return r.mutate(ctx, func() error {
		r.session.GoToQuestion(index)
		return nil
	})
}

func (r *Runner) Next(ctx context.Context) (View, error) {
	return r.mutate(ctx, func() error {
		r.session.Next()
		return nil
	})
}

func (r *Runner) Previous(ctx context.Context) (View, error) {
	return r.mutate(ctx, func() error {
		r.session.Previous()
		return nil
	})
}

// Submit finalizes the session. Calling it again returns the same report.
// It returns ErrNotReady while questions are loading or the load has failed.
func (r *Runner) Submit(ctx context.Context) (scoring.Report, error) {
	var rep scoring.Report
	_, err := r.exec(ctx, func() error {
		var err error
		rep, err = r.submit(quiz.ReasonManual)
		return err
	})
	return rep, err
}

func (r *Runner) view() View {
	s := r.session
	remaining := r.Remaining()
	v := View{
		SessionID:        r.id,
		Email:            r.email,
		Phase:            s.Phase(),
		TotalQuestions:   s.TotalQuestions(),
		AttemptedCount:   s.AttemptedCount(),
		CurrentIndex:     s.CurrentIndex(),
		IsFirst:          s.IsFirstQuestion(),
		IsLast:           s.IsLastQuestion(),
		Statuses:         s.Statuses(),
		RemainingSeconds: remaining,
		Clock:            FormatClock(remaining),
		DurationSeconds:  r.cfg.DurationSeconds,
	}
	if v.Statuses == nil {
		v.Statuses = []quiz.Status{}
	}
	v.ProgressPercent = scoring.Percentage(v.AttemptedCount, v.TotalQuestions)

	if s.Phase() == quiz.PhaseLoading && r.loadErr != nil {
		v.Phase = PhaseFailed
		errCopy := *r.loadErr
		v.Error = &errCopy
	}
	if q, ok := s.CurrentQuestion(); ok {
		v.CurrentQuestion = &QuestionView{
			ID:         q.ID,
			Text:       q.Text,
			Options:    q.Options,
			Category:   q.Category,
			Difficulty: q.Difficulty,
		}
	}
	if a := s.CurrentAnswer(); a.Answered {
		option := a.Option
		v.SelectedAnswer = &option
	}
	return v
}
