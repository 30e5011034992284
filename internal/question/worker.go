package question

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Warmer is a background worker that fills the batch cache so a rate-limited
// provider can still be answered from cache.
type Warmer struct {
	source    *Source
	queue     chan int
	logger    zerolog.Logger
	timeout   time.Duration
	shutdownC chan struct{}
}

func NewWarmer(source *Source, logger zerolog.Logger, timeout time.Duration) *Warmer {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Warmer{
		source:    source,
		queue:     make(chan int, 4),
		logger:    logger.With().Str("component", "question_warmer").Logger(),
		timeout:   timeout,
		shutdownC: make(chan struct{}),
	}
}

// Enqueue requests a warm-up for count questions. It never blocks; requests
// beyond the queue capacity are dropped.
func (w *Warmer) Enqueue(count int) bool {
	select {
	case w.queue <- count:
		return true
	default:
		return false
	}
}

// Run processes warm-up requests until ctx is done or Stop is called.
func (w *Warmer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("question warmer stopping")
			return
		case <-w.shutdownC:
			w.logger.Info().Msg("question warmer stopping")
			return
		case count := <-w.queue:
			w.handle(ctx, count)
		}
	}
}

func (w *Warmer) handle(parent context.Context, count int) {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	if err := w.source.Warm(ctx, count); err != nil {
		w.logger.Warn().Err(err).Int("count", count).Msg("warm question cache failed")
		return
	}
	w.logger.Debug().Int("count", count).Msg("question cache warmed")
}

func (w *Warmer) Stop() {
	close(w.shutdownC)
}
