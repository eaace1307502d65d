package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

var (
	ErrMissingToken       = errors.New("missing token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateRequest   = errors.New("duplicate request")
	ErrUpstreamTimeout    = errors.New("external api timed out")
	ErrUpstream           = errors.New("external api error")
	ErrInvalidInput       = errors.New("invalid input")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrNotFound           = errors.New("not found")
	ErrInternal           = errors.New("internal error")
)

const (
	CodeMissingToken       = "MISSING_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeDuplicateRequest   = "DUPLICATE_REQUEST"
	CodeUpstreamTimeout    = "EXTERNAL_API_TIMEOUT"
	CodeUpstream           = "EXTERNAL_API_ERROR"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeServerError        = "SERVER_ERROR"
)

// GenericMessage is the only message ever shown for unclassified failures.
const GenericMessage = "An unexpected error occurred."

type AppError struct {
	Err        error
	Code       string
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Code:       codeFor(sentinel),
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap attaches a sentinel to an underlying cause so that both errors.Is on
// the sentinel and on the cause succeed.
func Wrap(sentinel error, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return fmt.Errorf("%w: %s: %w", sentinel, msg, cause)
}

// Classification is the client-facing view of an error.
type Classification struct {
	StatusCode int
	Code       string
	Message    string
}

// Classify maps any error onto the closed error taxonomy. Messages of
// server-side failures are replaced by GenericMessage.
func Classify(err error) Classification {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c := Classification{StatusCode: appErr.StatusCode, Code: appErr.Code, Message: appErr.Message}
		if c.Code == "" {
			c.Code = codeFor(appErr.Err)
		}
		if c.StatusCode >= http.StatusInternalServerError && c.Code == CodeServerError {
			c.Message = GenericMessage
		}
		return c
	}

	switch {
	case errors.Is(err, ErrMissingToken):
		return Classification{http.StatusUnauthorized, CodeMissingToken, "Authorization token is missing"}
	case errors.Is(err, ErrTokenExpired):
		return Classification{http.StatusUnauthorized, CodeTokenExpired, "Token has expired"}
	case errors.Is(err, ErrInvalidToken):
		return Classification{http.StatusUnauthorized, CodeInvalidToken, "Invalid token"}
	case errors.Is(err, ErrInvalidCredentials):
		return Classification{http.StatusUnauthorized, CodeInvalidCredentials, "Incorrect username or password"}
	case errors.Is(err, ErrDuplicateRequest):
		return Classification{http.StatusConflict, CodeDuplicateRequest, "Duplicate request detected"}
	case errors.Is(err, ErrUpstreamTimeout):
		return Classification{http.StatusGatewayTimeout, CodeUpstreamTimeout, "The request to the external API timed out"}
	case errors.Is(err, ErrUpstream):
		return Classification{http.StatusBadGateway, CodeUpstream, "An error occurred while communicating with the external API"}
	case errors.Is(err, ErrInvalidInput):
		return Classification{http.StatusBadRequest, CodeInvalidRequest, detail(err)}
	case errors.Is(err, ErrNotFound):
		return Classification{http.StatusNotFound, CodeNotFound, detail(err)}
	default:
		return Classification{http.StatusInternalServerError, CodeServerError, GenericMessage}
	}
}

func HTTPStatusCode(err error) int {
	return Classify(err).StatusCode
}

// Envelope is the JSON body of every error response.
type Envelope struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope classifies err and stamps it with a fresh identifier.
func NewEnvelope(err error) (Envelope, int) {
	c := Classify(err)
	return Envelope{ID: uuid.NewString(), Code: c.Code, Message: c.Message}, c.StatusCode
}

func codeFor(sentinel error) string {
	switch {
	case errors.Is(sentinel, ErrMissingToken):
		return CodeMissingToken
	case errors.Is(sentinel, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(sentinel, ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(sentinel, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(sentinel, ErrDuplicateRequest):
		return CodeDuplicateRequest
	case errors.Is(sentinel, ErrUpstreamTimeout):
		return CodeUpstreamTimeout
	case errors.Is(sentinel, ErrUpstream):
		return CodeUpstream
	case errors.Is(sentinel, ErrInvalidInput):
		return CodeInvalidRequest
	case errors.Is(sentinel, ErrNotFound):
		return CodeNotFound
	default:
		return CodeServerError
	}
}

// detail returns the message of a client-side error without exposing the
// sentinel prefix.
func detail(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
