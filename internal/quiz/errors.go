package quiz

import "errors"

var (
	// ErrInvalidOption is returned when an answer is not one of the current question's options.
	ErrInvalidOption = errors.New("option not offered for current question")
	// ErrAlreadyLoaded is returned when Load is called on a session that has left the loading phase.
	ErrAlreadyLoaded = errors.New("session already loaded")
	// ErrNotLoaded is returned when Submit is called before questions are loaded.
	ErrNotLoaded = errors.New("session not loaded")
)
