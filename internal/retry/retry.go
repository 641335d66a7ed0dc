// Package retry holds the backoff policy shared by the upstream model calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy is exponential backoff with a cap and additive jitter:
// delay(n) = min(BaseDelay * 2^n, MaxDelay) + rand[0, Jitter).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

// Default returns the policy used for embedding and generation calls.
func Default() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   400 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Jitter:      200 * time.Millisecond,
	}
}

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Notify is called before each sleep with the error that caused it.
type Notify func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a permanent error, the context ends,
// or MaxAttempts is reached. On exhaustion the result wraps both ErrExhausted
// and the last error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify Notify) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var (
		n         int
		permanent bool
	)
	wrapped := func() error {
		n++
		err := op(ctx)
		var perr *backoff.PermanentError
		if errors.As(err, &perr) {
			permanent = true
		}
		return err
	}
	var b backoff.BackOff = p.newBackOff()
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)
	err := backoff.RetryNotify(wrapped, b, func(err error, d time.Duration) {
		if notify != nil {
			notify(n, err, d)
		}
	})
	if err == nil || permanent {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, n, err)
}

func (p Policy) newBackOff() *policyBackOff {
	return &policyBackOff{policy: p}
}

// policyBackOff adapts Policy to backoff.BackOff.
type policyBackOff struct {
	policy Policy
	n      int
}

func (b *policyBackOff) Reset() { b.n = 0 }

func (b *policyBackOff) NextBackOff() time.Duration {
	d := b.policy.BaseDelay << b.n
	if d <= 0 || d > b.policy.MaxDelay {
		d = b.policy.MaxDelay
	}
	b.n++
	if b.policy.Jitter > 0 {
		d += rand.N(b.policy.Jitter)
	}
	return d
}
