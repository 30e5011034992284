package question

// Difficulty constants accepted by the provider.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Type constants accepted by the provider.
const (
	TypeMultiple = "multiple"
	TypeBoolean  = "boolean"
)

// Question is a normalized, decoded question. Options are in the order they are
// shown to the user and never change after load.
type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Category      string   `json:"category,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
}

// HasOption reports whether option is one of the offered options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the options slice.
func (q Question) Clone() Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

// CloneAll copies a question list.
func CloneAll(qs []Question) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
