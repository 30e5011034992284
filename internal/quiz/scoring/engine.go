package scoring

import (
	"fmt"
	"math"

	"github.com/gokatarajesh/timed-quiz/internal/question"
	"github.com/gokatarajesh/timed-quiz/internal/quiz"
)

// Outcome classifies a single reviewed question.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeIncorrect  Outcome = "incorrect"
	OutcomeUnanswered Outcome = "unanswered"
)

// Summary is the aggregate result of a finalized session.
type Summary struct {
	Total      int `json:"total"`
	Attempted  int `json:"attempted"`
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
	Percentage int `json:"percentage"`
}

// Score compares answers against the questions' correct answers by exact string
// equality. questions and answers must be the same length.
func Score(questions []question.Question, answers []quiz.Answer) Summary {
	if len(questions) != len(answers) {
		panic(fmt.Sprintf("scoring: %d questions but %d answers", len(questions), len(answers)))
	}

	s := Summary{Total: len(questions)}
	for i, ans := range answers {
		if !ans.Answered {
			s.Unanswered++
			continue
		}
		s.Attempted++
		if ans.Option == questions[i].CorrectAnswer {
			s.Correct++
		}
	}
	s.Incorrect = s.Attempted - s.Correct
	s.Percentage = Percentage(s.Correct, s.Total)
	return s
}

// Percentage returns part/total as a whole percentage rounded half away from
// zero, or 0 when total is 0.
func Percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// ReviewItem is one row of the post-submission review.
type ReviewItem struct {
	ID             int      `json:"id"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	SelectedAnswer *string  `json:"selected_answer"`
	CorrectAnswer  string   `json:"correct_answer"`
	Outcome        Outcome  `json:"outcome"`
}

// Report is the full result shown after submission.
type Report struct {
	SessionID string            `json:"session_id"`
	Reason    quiz.SubmitReason `json:"reason"`
	Summary   Summary           `json:"summary"`
	Items     []ReviewItem      `json:"items"`
}

// BuildReport scores a finalized session and builds its per-question review.
func BuildReport(f quiz.FinalizedSession) Report {
	r := Report{
		SessionID: f.SessionID,
		Reason:    f.Reason,
		Summary:   Score(f.Questions, f.Answers),
		Items:     make([]ReviewItem, len(f.Questions)),
	}
	for i, q := range f.Questions {
		item := ReviewItem{
			ID:            q.ID,
			Text:          q.Text,
			Options:       append([]string(nil), q.Options...),
			CorrectAnswer: q.CorrectAnswer,
			Outcome:       OutcomeUnanswered,
		}
		if ans := f.Answers[i]; ans.Answered {
			selected := ans.Option
			item.SelectedAnswer = &selected
			item.Outcome = OutcomeIncorrect
			if selected == q.CorrectAnswer {
				item.Outcome = OutcomeCorrect
			}
		}
		r.Items[i] = item
	}
	return r
}
