package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
)

// ValidationError represents a specific type of API key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SelfGetter is satisfied by *cvat.Client.
type SelfGetter interface {
	Self(ctx context.Context) (*cvat.User, error)
}

// ValidateAPIKey verifies the key by fetching the account it belongs to.
// It returns the username on success, or a ValidationError whose Type
// indicates the nature of the failure.
func ValidateAPIKey(ctx context.Context, client SelfGetter) (string, error) {
	log.Debug().Msg("Validating API key with CVAT")
	user, err := client.Self(ctx)
	if err != nil {
		return "", classifyError(err)
	}
	log.Info().Str("user", user.Username).Msg("API key validated")
	return user.Username, nil
}

// classifyError converts a client error into a ValidationError.
func classifyError(err error) *ValidationError {
	var apiErr *cvat.APIError
	if !errors.As(err, &apiErr) {
		return &ValidationError{Type: ErrTypeUnknown, Message: "API key validation failed", Err: err}
	}
	switch apiErr.Kind {
	case cvat.KindNetwork, cvat.KindTimeout:
		return &ValidationError{Type: ErrTypeNetworkError, Message: "network error reaching CVAT", Err: err}
	case cvat.KindClient:
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key rejected", Err: err}
		}
	}
	return &ValidationError{Type: ErrTypeUnknown, Message: "API key validation failed", Err: err}
}
