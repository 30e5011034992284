package quiz

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gokatarajesh/timed-quiz/internal/question"
)

// Status tracks how far a user has engaged with a question. It only moves forward:
// unvisited -> visited -> attempted.
type Status string

const (
	StatusUnvisited Status = "unvisited"
	StatusVisited   Status = "visited"
	StatusAttempted Status = "attempted"
)

// Phase is the lifecycle stage of a session.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseInProgress Phase = "in_progress"
	PhaseSubmitted  Phase = "submitted"
)

// SubmitReason records which path finalized the session.
type SubmitReason string

const (
	ReasonManual  SubmitReason = "manual"
	ReasonExpired SubmitReason = "expired"
)

// Answer is either "no answer" or one of the offered options.
// It encodes as JSON null or a string.
type Answer struct {
	Option   string
	Answered bool
}

// Chosen builds an answered record.
func Chosen(option string) Answer {
	return Answer{Option: option, Answered: true}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if !a.Answered {
		return []byte("null"), nil
	}
	return json.Marshal(a.Option)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Answer{}
		return nil
	}
	var option string
	if err := json.Unmarshal(data, &option); err != nil {
		return err
	}
	*a = Chosen(option)
	return nil
}

// FinalizedSession is the immutable snapshot captured at submission.
type FinalizedSession struct {
	SessionID   string              `json:"session_id"`
	Questions   []question.Question `json:"questions"`
	Answers     []Answer            `json:"answers"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Reason      SubmitReason        `json:"reason"`
}

// Clone returns a deep copy.
func (f FinalizedSession) Clone() FinalizedSession {
	f.Questions = question.CloneAll(f.Questions)
	answers := make([]Answer, len(f.Answers))
	copy(answers, f.Answers)
	f.Answers = answers
	return f
}
