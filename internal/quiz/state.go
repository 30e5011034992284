package quiz

import (
	"fmt"
	"time"

	"github.com/gokatarajesh/timed-quiz/internal/question"
)

// Session is the quiz state machine. It is not safe for concurrent use: a single
// owner (see session.Runner) serializes every call.
type Session struct {
	id        string
	phase     Phase
	questions []question.Question
	answers   []Answer
	statuses  []Status
	current   int
	final     *FinalizedSession
	now       func() time.Time
}

// NewSession creates an empty session in the loading phase.
func NewSession(id string) *Session {
	return NewSessionWithClock(id, time.Now)
}

// NewSessionWithClock is NewSession with an injectable clock for deterministic timestamps.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:    id,
		phase: PhaseLoading,
		now:   now,
	}
}

// Load populates the session once. An empty question list is accepted.
func (s *Session) Load(questions []question.Question) error {
	if s.phase != PhaseLoading {
		return ErrAlreadyLoaded
	}

	n := len(questions)
	s.questions = question.CloneAll(questions)
	s.answers = make([]Answer, n)
	s.statuses = make([]Status, n)
	for i := range s.statuses {
		s.statuses[i] = StatusUnvisited
	}
	if n > 0 {
		s.statuses[0] = StatusVisited
	}
	s.current = 0
	s.phase = PhaseInProgress
	return nil
}

// SelectAnswer records option for the current question, overwriting any previous choice.
func (s *Session) SelectAnswer(option string) error {
	if s.phase != PhaseInProgress || len(s.questions) == 0 {
		return nil
	}
	if !s.questions[s.current].HasOption(option) {
		return fmt.Errorf("%w: %q", ErrInvalidOption, option)
	}
	s.answers[s.current] = Chosen(option)
	s.statuses[s.current] = StatusAttempted
	return nil
}

// GoToQuestion moves to index. Out-of-range indexes are ignored.
func (s *Session) GoToQuestion(index int) {
	if s.phase != PhaseInProgress || index < 0 || index >= len(s.questions) {
		return
	}
	s.current = index
	if s.statuses[index] == StatusUnvisited {
		s.statuses[index] = StatusVisited
	}
}

// Next moves forward one question; no-op on the last question.
func (s *Session) Next() {
	if s.current < len(s.questions)-1 {
		s.GoToQuestion(s.current + 1)
	}
}

// Previous moves back one question; no-op on the first question.
func (s *Session) Previous() {
	if s.current > 0 {
		s.GoToQuestion(s.current - 1)
	}
}

// Submit freezes the session and returns its snapshot. Later calls return the
// same snapshot and change nothing, whatever the reason passed. A session still
// loading cannot be submitted.
func (s *Session) Submit(reason SubmitReason) (FinalizedSession, error) {
	if s.final != nil {
		return s.final.Clone(), nil
	}
	if s.phase == PhaseLoading {
		return FinalizedSession{}, ErrNotLoaded
	}

	s.phase = PhaseSubmitted
	s.final = &FinalizedSession{
		SessionID:   s.id,
		Questions:   question.CloneAll(s.questions),
		Answers:     append(make([]Answer, 0, len(s.answers)), s.answers...),
		SubmittedAt: s.now().UTC(),
		Reason:      reason,
	}
	return s.final.Clone(), nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the lifecycle stage.
func (s *Session) Phase() Phase { return s.phase }

// Submitted reports whether the session is frozen.
func (s *Session) Submitted() bool { return s.final != nil }

// CurrentIndex is the zero-based position of the cursor.
func (s *Session) CurrentIndex() int { return s.current }

// TotalQuestions is the number of loaded questions.
func (s *Session) TotalQuestions() int {
	return len(s.questions)
}

// AttemptedCount counts questions with a recorded answer.
func (s *Session) AttemptedCount() int {
	count := 0
	for _, st := range s.statuses {
		if st == StatusAttempted {
			count++
		}
	}
	return count
}

// IsFirstQuestion reports whether the cursor is on the first question. It is
// true for an empty session.
func (s *Session) IsFirstQuestion() bool {
	return s.current == 0
}

// IsLastQuestion reports whether the cursor is on the last question. It is
// false for an empty session.
func (s *Session) IsLastQuestion() bool {
	return len(s.questions) > 0 && s.current == len(s.questions)-1
}

// CurrentQuestion returns the question under the cursor; false when nothing is loaded.
func (s *Session) CurrentQuestion() (question.Question, bool) {
	if len(s.questions) == 0 {
		return question.Question{}, false
	}
	return s.questions[s.current].Clone(), true
}

// CurrentAnswer returns the recorded answer for the current question.
func (s *Session) CurrentAnswer() Answer {
	if len(s.answers) == 0 {
		return Answer{}
	}
	return s.answers[s.current]
}

// Statuses returns a copy of the per-question visitation statuses.
func (s *Session) Statuses() []Status {
	return append([]Status(nil), s.statuses...)
}

// Answers returns a copy of the per-question answers.
func (s *Session) Answers() []Answer {
	return append([]Answer(nil), s.answers...)
}
