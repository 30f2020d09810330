package ddbload

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Jitter names the strategy used to randomize a computed backoff delay.
type Jitter string

const (
	// JitterFull picks the delay uniformly in [0, d].
	JitterFull Jitter = "full"
	// JitterNone uses d as is.
	JitterNone Jitter = "none"
)

const (
	defaultNumOfAttempts = 5
	defaultTimeMultiple  = 2
)

// RequestBackOff configures how a failing call is retried.
type RequestBackOff struct {
	// NumOfAttempts is the total number of calls, including the first one.
	NumOfAttempts int
	// StartingDelay is the delay before the first retry.
	StartingDelay time.Duration
	// MaxDelay caps a single delay. Zero means no cap.
	MaxDelay time.Duration
	// TimeMultiple is the growth factor between two delays.
	TimeMultiple float64
	Jitter       Jitter
	// ErrorCondition decides whether an error is worth another attempt.
	// Defaults to IsThrottlingError.
	ErrorCondition func(error) bool
}

func (p RequestBackOff) withDefaults(startingDelay time.Duration) RequestBackOff {
	if p.NumOfAttempts == 0 {
		p.NumOfAttempts = defaultNumOfAttempts
	}
	if p.StartingDelay == 0 {
		p.StartingDelay = startingDelay
	}
	if p.TimeMultiple == 0 {
		p.TimeMultiple = defaultTimeMultiple
	}
	if p.Jitter == "" {
		p.Jitter = JitterFull
	}
	if p.ErrorCondition == nil {
		p.ErrorCondition = IsThrottlingError
	}
	return p
}

func (p RequestBackOff) validate() error {
	if p.NumOfAttempts < 1 {
		return errors.Wrapf(ErrInvalidOption, "number of attempts must be at least 1, got %d", p.NumOfAttempts)
	}
	if p.StartingDelay < 0 || p.MaxDelay < 0 {
		return errors.Wrap(ErrInvalidOption, "backoff delays must not be negative")
	}
	if p.TimeMultiple < 1 {
		return errors.Wrapf(ErrInvalidOption, "time multiple must be at least 1, got %v", p.TimeMultiple)
	}
	switch p.Jitter {
	case JitterFull, JitterNone:
	default:
		return errors.Wrapf(ErrInvalidOption, "unknown jitter %q", p.Jitter)
	}
	return nil
}

// jitterBackOff applies a Jitter strategy on top of a deterministic
// exponential schedule.
type jitterBackOff struct {
	*backoff.ExponentialBackOff
	jitter Jitter
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	d := b.ExponentialBackOff.NextBackOff()
	if d == backoff.Stop || b.jitter != JitterFull {
		return d
	}
	return time.Duration(rand.Float64() * float64(d))
}

func (p RequestBackOff) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.StartingDelay
	eb.Multiplier = p.TimeMultiple
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.MaxInterval = p.MaxDelay
	if eb.MaxInterval == 0 {
		eb.MaxInterval = time.Duration(math.MaxInt64)
	}
	eb.Reset()

	return &jitterBackOff{ExponentialBackOff: eb, jitter: p.Jitter}
}

// backOffExecution calls fn until it succeeds, returns an error the policy
// does not accept, or the attempts run out. The error of the last attempt is
// returned unchanged. A nil timer uses the real clock.
func backOffExecution(
	ctx context.Context,
	name string,
	policy RequestBackOff,
	log *zap.Logger,
	timer backoff.Timer,
	fn func(attempt int) error,
) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !policy.ErrorCondition(err) {
			log.Debug("error is not retryable",
				operationField(name),
				attemptField(attempt),
				errorCodeField(err),
				zap.Error(err))
			return backoff.Permanent(err)
		}
		if attempt >= policy.NumOfAttempts {
			log.Warn("retry attempts exhausted",
				operationField(name),
				attemptField(attempt),
				errorCodeField(err),
				zap.Error(err))
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		log.Info("retrying",
			operationField(name),
			attemptField(attempt),
			attemptsLeftField(policy.NumOfAttempts-attempt),
			errorCodeField(err),
			zap.Duration("delay", d))
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(policy.newBackOff(), uint64(policy.NumOfAttempts-1)),
		ctx)

	return backoff.RetryNotifyWithTimer(op, b, notify, timer)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
