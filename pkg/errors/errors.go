package errors

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

// Error is an error with contextual values for structured logging.
type Error struct {
	err    error
	Values map[string]interface{}
}

// New creates a new Error with a stack trace.
func New(msg string) *Error {
	return &Error{
		err:    errors.New(msg),
		Values: make(map[string]interface{}),
	}
}

// Wrap creates a new Error from cause with an additional message.
func Wrap(cause error, msg string) *Error {
	return &Error{
		err:    errors.Wrap(cause, msg),
		Values: make(map[string]interface{}),
	}
}

// With adds a key-value pair to the error. It returns the error itself for
// method chaining.
func (x *Error) With(key string, value interface{}) *Error {
	x.Values[key] = value
	return x
}

func (x *Error) Error() string { return x.err.Error() }

func (x *Error) Unwrap() error { return x.err }

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// StackTrace renders the stack trace recorded at creation.
func (x *Error) StackTrace() string {
	if st, ok := x.err.(stackTracer); ok {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}

// As delegates to the underlying errors.As for target extraction.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// ErrNotFound marks absence of an object or a derived-name resource so that
// callers can branch on existence vs. generic failure.
var ErrNotFound = errors.New("not found")

// IsNotFound tells if err is caused by ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// InitSentry enables error reporting. A blank DSN disables it silently.
func InitSentry(dsn string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		return Wrap(err, "Failed sentry.Init")
	}
	return nil
}

// EmitSentry sends err to Sentry if enabled.
func EmitSentry(err error) {
	sentry.CaptureException(err)
}

// FlushSentry waits for buffered events to be sent.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
