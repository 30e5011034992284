package session

import (
	"errors"
	"fmt"

	"github.com/gokatarajesh/timed-quiz/internal/quiz"
	"github.com/gokatarajesh/timed-quiz/internal/quiz/scoring"
)

// PhaseFailed is reported while a session is still loading but its last fetch failed.
const PhaseFailed quiz.Phase = "failed"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotReady        = errors.New("session questions not loaded")
	ErrNotFailed       = errors.New("session load has not failed")
	ErrClosed          = errors.New("session closed")
)

// LoadError describes a failed question fetch.
type LoadError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// QuestionView is a question as shown to the user, without its answer key.
type QuestionView struct {
	ID         int      `json:"id"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// View is a read-only snapshot of a session for clients.
type View struct {
	SessionID        string        `json:"session_id"`
	Email            string        `json:"email,omitempty"`
	Phase            quiz.Phase    `json:"phase"`
	Error            *LoadError    `json:"error,omitempty"`
	TotalQuestions   int           `json:"total_questions"`
	AttemptedCount   int           `json:"attempted_count"`
	ProgressPercent  int           `json:"progress_percent"`
	CurrentIndex     int           `json:"current_index"`
	IsFirst          bool          `json:"is_first"`
	IsLast           bool          `json:"is_last"`
	CurrentQuestion  *QuestionView `json:"current_question,omitempty"`
	SelectedAnswer   *string       `json:"selected_answer"`
	Statuses         []quiz.Status `json:"statuses"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Clock            string        `json:"clock"`
	DurationSeconds  int           `json:"duration_seconds"`
}

type EventType string

const (
	EventState     EventType = "state"
	EventSubmitted EventType = "submitted"
)

// Event is published by a Runner after every state change.
type Event struct {
	Type   EventType
	View   View
	Report *scoring.Report
}

// SubmittedPayload is the body of a submitted event.
type SubmittedPayload struct {
	Reason quiz.SubmitReason `json:"reason"`
	Report scoring.Report    `json:"report"`
}

// FormatClock renders seconds as mm:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
