// Package publish defines the outcome types shared by the platform publishers
// and the gateway: the error taxonomy, per-platform results, and the publish
// attempt state machine.
package publish

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorizes publish failures.
type Kind string

const (
	// KindConfigurationMissing means a required credential is absent.
	KindConfigurationMissing Kind = "ConfigurationMissing"
	// KindNoUsableMedia means no eligible media was found for the campaign or platform.
	KindNoUsableMedia Kind = "NoUsableMedia"
	// KindProviderRejected means the provider answered with an error body.
	KindProviderRejected Kind = "ProviderRejected"
	// KindProcessingTimeout means an Instagram container never finished processing.
	KindProcessingTimeout Kind = "ProcessingTimeout"
	// KindTooManyItems means a carousel exceeded the item limit.
	KindTooManyItems Kind = "TooManyItems"
	// KindNetworkFailure means a timeout or connection error outlasted retries.
	KindNetworkFailure Kind = "NetworkFailure"
	// KindUnavailable means the platform was skipped because its circuit is open.
	KindUnavailable Kind = "Unavailable"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrConfigurationMissing = &Error{Kind: KindConfigurationMissing}
	ErrNoUsableMedia        = &Error{Kind: KindNoUsableMedia}
	ErrProviderRejected     = &Error{Kind: KindProviderRejected}
	ErrProcessingTimeout    = &Error{Kind: KindProcessingTimeout}
	ErrTooManyItems         = &Error{Kind: KindTooManyItems}
	ErrNetworkFailure       = &Error{Kind: KindNetworkFailure}
	ErrUnavailable          = &Error{Kind: KindUnavailable}
)

// Error is a classified publish failure. It serializes to JSON so results can
// be stored and returned to API callers verbatim.
type Error struct {
	Kind    Kind   `json:"kind" dynamodbav:"kind"`
	Message string `json:"message,omitempty" dynamodbav:"message,omitempty"`
	// StatusCode is the HTTP status returned by the provider, if any.
	StatusCode int `json:"statusCode,omitempty" dynamodbav:"statusCode,omitempty"`
	// Code is the provider's own error code, if any.
	Code int   `json:"code,omitempty" dynamodbav:"code,omitempty"`
	Err  error `json:"-" dynamodbav:"-"`
}

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind. A target with a message only matches itself.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Retryable reports whether the failure is transient: a network failure, or
// a cause that reports itself temporary, such as a provider that has not
// finished processing the media yet.
func (e *Error) Retryable() bool {
	if e.Kind == KindNetworkFailure {
		return true
	}
	var t interface{ Temporary() bool }
	return errors.As(e.Err, &t) && t.Temporary()
}

// IsKind reports whether err is a publish Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// AsError classifies any error. Unclassified errors become ProviderRejected,
// except context cancellation and deadlines which are NetworkFailure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindNetworkFailure, err, "request interrupted")
	}
	return Wrap(KindProviderRejected, err, "")
}
