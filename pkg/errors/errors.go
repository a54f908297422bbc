package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrQuerySyntax        = errors.New("query syntax error")
	ErrExpansionLimit     = errors.New("query expansion limit exceeded")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrDatabaseNotFound   = errors.New("database not found")
	ErrDatabaseCorrupt    = errors.New("database corrupt")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnavailable        = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
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
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// QuerySyntaxError reports malformed query text. Offset is the byte offset
// of the offending character in the query string.
type QuerySyntaxError struct {
	Offset  int
	Message string
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at offset %d: %s", e.Offset, e.Message)
}

func (e *QuerySyntaxError) Unwrap() error { return ErrQuerySyntax }

// ExpansionLimitError is returned when a wildcard matches more terms than
// the configured maximum.
type ExpansionLimitError struct {
	Pattern    string
	Limit      int
	Candidates int
}

func (e *ExpansionLimitError) Error() string {
	return fmt.Sprintf("wildcard %q expands to %d terms, limit is %d", e.Pattern, e.Candidates, e.Limit)
}

func (e *ExpansionLimitError) Unwrap() error { return ErrExpansionLimit }

type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported feature: %s", e.Feature)
}

func (e *UnsupportedFeatureError) Unwrap() error { return ErrUnsupportedFeature }

type DatabaseNotFoundError struct {
	Path string
	Err  error
}

func (e *DatabaseNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("database not found at %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("database not found at %s", e.Path)
}

func (e *DatabaseNotFoundError) Is(target error) bool { return target == ErrDatabaseNotFound }

func (e *DatabaseNotFoundError) Unwrap() error { return e.Err }

// DatabaseCorruptError reports a database file that failed structural or
// checksum validation.
type DatabaseCorruptError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DatabaseCorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("database %s is corrupt: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("database %s is corrupt: %s", e.Path, e.Reason)
}

func (e *DatabaseCorruptError) Is(target error) bool { return target == ErrDatabaseCorrupt }

func (e *DatabaseCorruptError) Unwrap() error { return e.Err }

type IndexOutOfRangeError struct {
	Index int
	Size  int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0,%d)", e.Index, e.Size)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrDatabaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrQuerySyntax),
		errors.Is(err, ErrExpansionLimit),
		errors.Is(err, ErrUnsupportedFeature),
		errors.Is(err, ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
