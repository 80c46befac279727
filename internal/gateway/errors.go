package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/tchayre/logsti/internal/database"
	"github.com/tchayre/logsti/internal/models"
	"github.com/tchayre/logsti/internal/repository"
)

// Kind classifies a RemoteError.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindUnknown    Kind = "unknown"
)

// RemoteError is the single error surface of the gateway. Message is the
// backend's text where one was available.
type RemoteError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *RemoteError) Retryable() bool { return e.Kind == KindNetwork }

// NewRemoteError builds a RemoteError of kind.
func NewRemoteError(kind Kind, message string, err error) *RemoteError {
	return &RemoteError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// classify converts a repository or driver failure into a RemoteError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re
	}
	var fe *models.FieldError
	switch {
	case errors.As(err, &fe):
		return NewRemoteError(KindValidation, fe.Message, err)
	case errors.Is(err, repository.ErrDuplicateName):
		return NewRemoteError(KindValidation, err.Error(), err)
	case errors.Is(err, repository.ErrNotFound):
		return NewRemoteError(KindNotFound, fmt.Sprintf("%s: %s", op, err), err)
	case errors.Is(err, context.Canceled), database.IsConnectionError(err):
		return NewRemoteError(KindNetwork, err.Error(), err)
	}
	return NewRemoteError(KindUnknown, err.Error(), err)
}
