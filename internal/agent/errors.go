package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a pipeline error for retry and reporting decisions.
type Kind string

const (
	KindTransientNetwork Kind = "transient_network"
	KindRateLimit        Kind = "rate_limit"
	KindProviderQuota    Kind = "provider_quota"
	KindProviderAuth     Kind = "provider_auth"
	KindParseError       Kind = "parse_error"
	KindValidationError  Kind = "validation_error"
	KindEmptyResult      Kind = "empty_result"
	KindStorageError     Kind = "storage_error"
	KindFatal            Kind = "fatal"
)

// Error attaches a Kind to an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error with a formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapErr classifies an existing error without losing its chain.
func WrapErr(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ClassifyStatus maps an HTTP status from a provider API into a Kind.
// Quota exhaustion arrives as a 429 but waiting will not clear it, so it
// is split out by body inspection.
func ClassifyStatus(status int, body string) Kind {
	switch {
	case status == 401 || status == 403:
		return KindProviderAuth
	case status == 429 && quotaExhausted(body):
		return KindProviderQuota
	case status == 429:
		return KindRateLimit
	case status >= 500:
		return KindTransientNetwork
	default:
		return KindFatal
	}
}

func quotaExhausted(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "insufficient_quota") ||
		strings.Contains(b, "exceeded your current quota") ||
		strings.Contains(b, "credit balance") ||
		strings.Contains(b, "resource_exhausted")
}

// Classify extracts the Kind from an error chain. Plain network failures
// count as transient; anything unrecognized is fatal.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransientNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindTransientNetwork
	}
	return KindFatal
}

// Retryable reports whether the nested provider-call retry should fire.
// Auth and quota failures surface immediately; everything else that is not
// a rate limit or network blip will not get better by waiting.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindTransientNetwork, KindRateLimit:
		return true
	default:
		return false
	}
}

// executeRetryable reports whether the stage-level retry should re-run the
// whole process call. Malformed model output and storage blips are worth
// another pass; deterministic failures are not.
func executeRetryable(err error) bool {
	switch Classify(err) {
	case KindProviderAuth, KindProviderQuota, KindValidationError, KindEmptyResult:
		return false
	default:
		return true
	}
}
