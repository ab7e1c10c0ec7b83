package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why an external call failed.
type Kind int

const (
	// KindTransient failures are retried with backoff (network errors, 429, 5xx).
	KindTransient Kind = iota
	// KindTimeout means the per-call timeout elapsed. Retried like transient failures.
	KindTimeout
	// KindMalformed means the service answered but the payload could not be used.
	KindMalformed
	// KindPermanent failures are never retried (bad credentials, invalid request).
	KindPermanent
	// KindCanceled means the caller's context ended.
	KindCanceled
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	case KindPermanent:
		return "permanent"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Failure is the typed error surfaced once an external call gives up.
type Failure struct {
	Op       string // e.g. "inference:select", "search"
	Kind     Kind
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s failure after %d attempt(s): %v", f.Op, f.Kind, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type classified struct {
	kind Kind
	err  error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: KindTransient, err: err}
}

// Malformed marks err as an unusable response payload.
func Malformed(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: KindMalformed, err: err}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: KindPermanent, err: err}
}

// ClassifyStatus wraps err according to an HTTP status code:
// 408, 429 and 5xx are transient, any other 4xx is permanent.
func ClassifyStatus(code int, err error) error {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return Transient(err)
	case code >= 400:
		return Permanent(err)
	default:
		return Transient(err)
	}
}

// KindOf reports the failure kind of err. Unclassified errors are treated as transient.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	var c *classified
	if errors.As(err, &c) {
		return c.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindTransient
}
