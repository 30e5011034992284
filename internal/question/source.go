package question

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/gokatarajesh/timed-quiz/internal/metrics"
	"github.com/gokatarajesh/timed-quiz/internal/question/external"
)

// Failure classes surfaced by Source.Fetch.
var (
	ErrRateLimited       = external.ErrRateLimited
	ErrNetwork           = external.ErrNetwork
	ErrEmptyResult       = external.ErrEmptyResult
	ErrMalformedResponse = external.ErrMalformedResponse
)

// Wire names for failure classes.
const (
	KindRateLimited       = "rate_limited"
	KindNetwork           = "network_error"
	KindEmptyResult       = "empty_result"
	KindMalformedResponse = "malformed_response"
)

// Kind maps a Fetch error to its wire name.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrEmptyResult):
		return KindEmptyResult
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	default:
		return KindNetwork
	}
}

// Provider is the remote question backend.
type Provider interface {
	Fetch(ctx context.Context, params external.FetchParams) ([]external.OpenTDBQuestion, error)
}

// BatchCache keeps the last good raw batch for a query (implemented by Redis-backed Cache).
type BatchCache interface {
	Load(ctx context.Context, params external.FetchParams) ([]external.OpenTDBQuestion, error)
	Store(ctx context.Context, params external.FetchParams, batch []external.OpenTDBQuestion) error
}

// ShuffleFunc has the signature of rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

type Options struct {
	Category     int
	Difficulty   string
	Type         string
	MaxRetries   int
	RetryDelay   time.Duration
	FetchTimeout time.Duration // bounds one shared provider fetch, retries included
	Shuffle      ShuffleFunc
}

// Source fetches, normalizes and shuffles question batches.
type Source struct {
	provider Provider
	cache    BatchCache
	opts     Options
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	inflight singleflight.Group
}

// NewSource builds a Source. cache and m may be nil.
func NewSource(provider Provider, cache BatchCache, opts Options, m *metrics.Metrics, logger zerolog.Logger) *Source {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Shuffle == nil {
		opts.Shuffle = rand.Shuffle
	}
	return &Source{
		provider: provider,
		cache:    cache,
		opts:     opts,
		metrics:  m,
		logger:   logger.With().Str("component", "question_source").Logger(),
	}
}

func (s *Source) params(count int) external.FetchParams {
	return external.FetchParams{
		Amount:     count,
		Category:   s.opts.Category,
		Difficulty: s.opts.Difficulty,
		Type:       s.opts.Type,
	}
}

// Fetch returns count normalized questions. Rate limiting is retried with
// exponential backoff; when retries run out a cached batch is served if one is
// large enough.
func (s *Source) Fetch(ctx context.Context, count int) ([]Question, error) {
	if count <= 0 {
		return []Question{}, nil
	}
	params := s.params(count)

	// Concurrent starts share one provider round trip; each caller shuffles its own copy.
	// The shared call outlives any single caller, so it runs detached and bounded
	// by FetchTimeout.
	ch := s.inflight.DoChan(params.Key(), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
		defer cancel()
		return s.fetchWithRetry(fctx, params)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch questions: %w: %w", ErrNetwork, ctx.Err())
	}
	if res.Shared {
		s.logger.Debug().Int("count", count).Msg("joined in-flight question fetch")
	}
	raw, _ := res.Val.([]external.OpenTDBQuestion)
	err := res.Err
	if err == nil {
		s.metrics.QuestionFetch("success")
		s.storeBatch(ctx, params, raw)
		return s.normalize(raw), nil
	}

	if errors.Is(err, ErrRateLimited) {
		if cached := s.cachedBatch(ctx, params, count); cached != nil {
			s.logger.Warn().Err(err).Int("count", count).Msg("provider rate limited, serving cached batch")
			s.metrics.QuestionFetch("cache")
			return s.normalize(cached), nil
		}
	}

	s.metrics.QuestionFetch(Kind(err))
	return nil, fmt.Errorf("fetch questions: %w", err)
}

// Warm fetches one batch without retrying and stores it in the cache.
func (s *Source) Warm(ctx context.Context, count int) error {
	if s.cache == nil {
		return nil
	}
	params := s.params(count)
	raw, err := s.provider.Fetch(ctx, params)
	if err != nil {
		return err
	}
	return s.cache.Store(ctx, params, raw)
}

func (s *Source) fetchWithRetry(ctx context.Context, params external.FetchParams) ([]external.OpenTDBQuestion, error) {
	backoff := retry.WithMaxRetries(uint64(s.opts.MaxRetries), retry.NewExponential(s.opts.RetryDelay))

	var raw []external.OpenTDBQuestion
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.QuestionFetchRetry()
			s.logger.Debug().Int("attempt", attempt).Msg("retrying rate-limited fetch")
		}
		batch, err := s.provider.Fetch(ctx, params)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				return retry.RetryableError(err)
			}
			return err
		}
		raw = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Source) storeBatch(ctx context.Context, params external.FetchParams, raw []external.OpenTDBQuestion) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(ctx, params, raw); err != nil {
		s.logger.Warn().Err(err).Msg("cache question batch")
	}
}

func (s *Source) cachedBatch(ctx context.Context, params external.FetchParams, count int) []external.OpenTDBQuestion {
	if s.cache == nil {
		return nil
	}
	batch, err := s.cache.Load(ctx, params)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load cached question batch")
		return nil
	}
	if len(batch) < count {
		return nil
	}
	batch = append([]external.OpenTDBQuestion(nil), batch...)
	s.opts.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
	return batch[:count]
}

func (s *Source) normalize(raw []external.OpenTDBQuestion) []Question {
	out := make([]Question, len(raw))
	for i, q := range raw {
		out[i] = Normalize(i+1, q, s.opts.Shuffle)
	}
	return out
}

// Normalize decodes every text field of a raw provider question and shuffles
// its options. The correct answer is decoded identically, so it stays equal to
// exactly one option.
func Normalize(id int, q external.OpenTDBQuestion, shuffle ShuffleFunc) Question {
	correct := html.UnescapeString(q.CorrectAnswer)
	options := make([]string, 0, len(q.IncorrectAnswer)+1)
	options = append(options, correct)
	for _, inc := range q.IncorrectAnswer {
		options = append(options, html.UnescapeString(inc))
	}
	shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return Question{
		ID:            id,
		Text:          html.UnescapeString(q.Question),
		Options:       options,
		CorrectAnswer: correct,
		Category:      html.UnescapeString(q.Category),
		Difficulty:    q.Difficulty,
	}
}
