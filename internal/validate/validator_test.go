package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type startRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func TestStructValid(t *testing.T) {
	assert.Nil(t, Struct(startRequest{Email: "someone@example.com"}))
}

func TestStructUsesJSONNames(t *testing.T) {
	fields := Struct(startRequest{Email: "not-an-email"})
	assert.Equal(t, "email must be a valid email address", fields["email"])

	fields = Struct(startRequest{})
	assert.Equal(t, "email is a required field", fields["email"])
}

func TestTranslateErrorsNonValidation(t *testing.T) {
	fields := TranslateErrors(errors.New("unexpected EOF"))
	assert.Equal(t, map[string]string{"detail": "unexpected EOF"}, fields)
}
