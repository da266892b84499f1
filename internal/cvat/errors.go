package cvat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed platform call.
type Kind int

const (
	// KindNetwork indicates the request never produced a response.
	KindNetwork Kind = iota
	// KindTimeout indicates the per-call deadline expired.
	KindTimeout
	// KindClient indicates a 4xx response.
	KindClient
	// KindServer indicates a 5xx response.
	KindServer
	// KindDecode indicates a response body that could not be parsed.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	}
	return "unknown"
}

// APIError describes a failed request to the platform.
type APIError struct {
	Kind       Kind
	StatusCode int
	Method     string
	Path       string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %s error", e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// recoverable is the per-item policy table: kinds for which a single job or
// frame lookup falls back to a zero value instead of aborting the batch.
// Client errors are decided by status in Recoverable.
var recoverable = map[Kind]bool{
	KindNetwork: true,
	KindTimeout: true,
	KindServer:  true,
	KindDecode:  true,
	KindClient:  false,
}

// Recoverable reports whether err may be replaced by a default value for a
// per-item lookup. Authentication failures and errors that are not
// *APIError (e.g. context cancellation) always propagate.
func Recoverable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Kind == KindClient {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return false
		}
		return true
	}
	return recoverable[apiErr.Kind]
}

// IsStatus reports whether err is an *APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// FailureHint names the likely cause of an asynchronous import failure.
type FailureHint string

const (
	HintNone            FailureHint = ""
	HintMappingMismatch FailureHint = "job_file_mapping references files missing from server_files"
	HintPathMismatch    FailureHint = "annotation image paths do not match the loaded frame names"
	HintLabelOrFormat   FailureHint = "annotation import rejected, likely a label mismatch or format error"
	HintValidation      FailureHint = "request parameters failed validation"
)

// ClassifyFailure maps platform-provided error text to a FailureHint.
func ClassifyFailure(message string) FailureHint {
	switch {
	case strings.Contains(message, "is not specified in input files"):
		return HintMappingMismatch
	case strings.Contains(message, "Could not match item id"):
		return HintPathMismatch
	case strings.Contains(message, "can't import annotation"):
		return HintLabelOrFormat
	case strings.Contains(message, "ValidationError"):
		return HintValidation
	}
	return HintNone
}

// RequestFailedError is returned when the platform reports that an
// asynchronous operation (data attach, annotation import) failed.
type RequestFailedError struct {
	TaskID    int
	Operation string
	Message   string
	Hint      FailureHint
}

func (e *RequestFailedError) Error() string {
	msg := fmt.Sprintf("task %d: %s failed", e.TaskID, e.Operation)
	if e.Message != "" {
		msg += ": " + truncate(e.Message, 500)
	}
	if e.Hint != HintNone {
		msg += " (" + string(e.Hint) + ")"
	}
	return msg
}
