// Package retry wraps an adapter with caller-side retries of transient
// failures. The harness never retries on its own; callers opt in by
// registering a wrapped adapter.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/labels"
)

// BackOffFunc returns a fresh backoff policy for one Invoke.
type BackOffFunc func() backoff.BackOff

// Exponential returns a BackOffFunc allowing maxRetries retries after the
// first attempt with exponential spacing.
func Exponential(maxRetries uint64) BackOffFunc {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
	}
}

// Adapter retries transient failures of the adapter it wraps.
type Adapter struct {
	inner      backend.Adapter
	newBackOff BackOffFunc

	// OnRetry, if set, is called before every retry.
	OnRetry func(err error, attempt int)
}

// Wrap returns inner with retries. A nil newBackOff disables retrying.
func Wrap(inner backend.Adapter, newBackOff BackOffFunc) *Adapter {
	return &Adapter{inner: inner, newBackOff: newBackOff}
}

func (a *Adapter) Identity() backend.Identity {
	return a.inner.Identity()
}

func (a *Adapter) Configured() bool {
	return a.inner.Configured()
}

// Unwrap returns the wrapped adapter.
func (a *Adapter) Unwrap() backend.Adapter {
	return a.inner
}

// Invoke calls the wrapped adapter until it succeeds, fails with a
// non-transient kind, the policy gives up, or ctx is done. The last error
// is returned unchanged.
func (a *Adapter) Invoke(ctx context.Context, effective *labels.Set, prompt string) (*backend.Response, error) {
	if a.newBackOff == nil {
		return a.inner.Invoke(ctx, effective, prompt)
	}

	var resp *backend.Response
	attempt := 0
	op := func() error {
		attempt++
		r, err := a.inner.Invoke(ctx, effective, prompt)
		if err != nil {
			if backend.KindOf(err) != backend.KindTransient || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}
	notify := func(err error, _ time.Duration) {
		if a.OnRetry != nil {
			a.OnRetry(err, attempt)
		}
	}

	err := backoff.RetryNotify(op, backoff.WithContext(a.newBackOff(), ctx), notify)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return resp, nil
}
