package services

import (
	"strings"
	"testing"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/types"
	"github.com/stretchr/testify/assert"
)

func TestValidateInputMessages(t *testing.T) {
	tests := []struct {
		input   any
		message string
	}{
		{SignUpInput{Email: "", Name: "Ada", Password: "long-enough"}, "email is required"},
		{SignUpInput{Email: "nope", Name: "Ada", Password: "long-enough"}, "invalid email address"},
		{SignUpInput{Email: "ada@example.com", Name: "A", Password: "long-enough"}, "name must be at least 2 characters"},
		{SignUpInput{Email: "ada@example.com", Name: "Ada", Password: "short"}, "password must be at least 8 characters"},
		{ChangePasswordInput{NewPassword: strings.Repeat("p", 129)}, "new_password must be at most 128 characters"},
		{types.ProjectInput{Name: "ok", Description: strings.Repeat("d", 256)}, "description must be at most 255 characters"},
	}
	for _, tt := range tests {
		err := validateInput(tt.input)
		assert.True(t, apperr.IsKind(err, apperr.Invalid), "%+v", tt.input)
		assert.Equal(t, tt.message, apperr.Message(err))
	}

	assert.NoError(t, validateInput(SignUpInput{Email: "ada@example.com", Name: "Ada", Password: "long-enough"}))
	assert.NoError(t, validateInput(types.ProjectInput{Name: "Atlas"}))
}
