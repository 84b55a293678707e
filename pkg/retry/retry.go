// Package retry runs blocking operations with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the number of attempts and the delay between them
type Policy struct {
	Attempts  int           // total attempts, including the first one
	BaseDelay time.Duration // delay before the second attempt
	MaxDelay  time.Duration // cap on a single delay; 0 means no cap
}

// DefaultPolicy mirrors the host wait loop: 7 attempts starting at 5s
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  7,
		BaseDelay: 5 * time.Second,
		MaxDelay:  2 * time.Minute,
	}
}

// Notify is called after each failed attempt that will be retried
type Notify func(err error, next time.Duration)

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a permanent error, the attempts run
// out, or ctx is done. The last error is returned.
func Do(ctx context.Context, policy Policy, op func() error, notify Notify) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	if policy.MaxDelay > 0 {
		exp.MaxInterval = policy.MaxDelay
	} else {
		exp.MaxInterval = time.Duration(1<<63 - 1)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}
	return backoff.RetryNotify(op, b, n)
}
