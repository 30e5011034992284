// Package results holds finalized sessions so the report survives the session
// runner that produced it.
package results

import (
	"context"
	"time"

	"github.com/gokatarajesh/timed-quiz/internal/quiz"
)

// DefaultTTL bounds a result to roughly one session lifetime.
const DefaultTTL = 2 * time.Hour

// Store persists at most one finalized session per session id.
type Store interface {
	// Put overwrites any previous value for id.
	Put(ctx context.Context, id string, result quiz.FinalizedSession) error
	// Get returns nil and no error when no result is stored.
	Get(ctx context.Context, id string) (*quiz.FinalizedSession, error)
	// Clear removes the result; clearing an absent id is not an error.
	Clear(ctx context.Context, id string) error
}
