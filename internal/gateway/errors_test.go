package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchayre/logsti/internal/models"
	"github.com/tchayre/logsti/internal/repository"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"validation", &models.FieldError{Field: "title", Message: "title is required"}, KindValidation},
		{"duplicate", fmt.Errorf("sector %q: %w", "TI", repository.ErrDuplicateName), KindValidation},
		{"not found", repository.ErrNotFound, KindNotFound},
		{"connection", errors.New("dial tcp: connection refused"), KindNetwork},
		{"canceled", context.Canceled, KindNetwork},
		{"other", errors.New("syntax error"), KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("op", tc.err)
			var re *RemoteError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tc.kind, re.Kind)
			assert.Equal(t, tc.kind == KindNetwork, re.Retryable())
			assert.ErrorIs(t, err, tc.err)
		})
	}

	assert.NoError(t, classify("op", nil))
	assert.Equal(t, "title is required", classify("op", &models.FieldError{Message: "title is required"}).Error())
}

func TestStatusMapping(t *testing.T) {
	for _, kind := range []Kind{KindValidation, KindAuth, KindNotFound, KindNetwork} {
		assert.Equal(t, kind, kindForStatus(StatusForKind(kind)), string(kind))
	}
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(KindUnknown))
	assert.Equal(t, KindUnknown, kindForStatus(http.StatusTeapot))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindAuth, KindOf(fmt.Errorf("wrapped: %w", NewRemoteError(KindAuth, "denied", nil))))
}
