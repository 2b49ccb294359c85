package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToCode(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{NewValidationError("title is required"), CodeValidation},
		{ErrInvalidToken, CodeUnauthorized},
		{ErrInvalidCredentials, CodeUnauthorized},
		{ErrNotTeamMember, CodeForbidden},
		{ErrNotAuthor, CodeForbidden},
		{ErrTaskNotFound, CodeNotFound},
		{fmt.Errorf("load: %w", ErrProjectNotFound), CodeNotFound},
		{ErrEmailTaken, CodeConflict},
		{errors.New("connection refused"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToCode(tt.err))
		})
	}
}
