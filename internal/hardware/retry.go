// internal/hardware/retry.go
package hardware

import (
	"context"
	"time"

	"pos-device-service/internal/model"
)

// RetryDecision is the answer of a RetryDecider
type RetryDecision int

const (
	// RetryDecisionAbort propagates the error
	RetryDecisionAbort RetryDecision = iota
	// RetryDecisionRetry runs the failed step again
	RetryDecisionRetry
	// RetryDecisionFallback reroutes kitchen output to the customer order printer
	RetryDecisionFallback
)

func (d RetryDecision) String() string {
	switch d {
	case RetryDecisionRetry:
		return "retry"
	case RetryDecisionFallback:
		return "fallback"
	default:
		return "abort"
	}
}

// RetryDecider decides what happens after a retriable hardware failure.
// It is called synchronously from the failing loop.
type RetryDecider interface {
	DecideRetry(ctx context.Context, herr *HardwareError) RetryDecision
}

// RetryDeciderFunc adapts a function to RetryDecider
type RetryDeciderFunc func(ctx context.Context, herr *HardwareError) RetryDecision

// DecideRetry calls f
func (f RetryDeciderFunc) DecideRetry(ctx context.Context, herr *HardwareError) RetryDecision {
	return f(ctx, herr)
}

// AbortDecider never retries
type AbortDecider struct{}

// DecideRetry always aborts
func (AbortDecider) DecideRetry(context.Context, *HardwareError) RetryDecision {
	return RetryDecisionAbort
}

// BoundedRetryDecider retries up to MaxAttempts times with a fixed delay.
// Once attempts are exhausted a kitchen printer failure falls back when
// KitchenFallback is set; everything else aborts.
type BoundedRetryDecider struct {
	MaxAttempts     int
	Delay           time.Duration
	KitchenFallback bool
}

// DecideRetry implements RetryDecider
func (d *BoundedRetryDecider) DecideRetry(ctx context.Context, herr *HardwareError) RetryDecision {
	if herr.Retriable() && herr.Attempt < d.MaxAttempts {
		if d.Delay > 0 {
			timer := time.NewTimer(d.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return RetryDecisionAbort
			case <-timer.C:
			}
		}
		return RetryDecisionRetry
	}
	if d.KitchenFallback && herr.Role == model.RolePrintKitchenOrder {
		return RetryDecisionFallback
	}
	return RetryDecisionAbort
}
