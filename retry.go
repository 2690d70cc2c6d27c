package tabletclient

import (
	"time"

	"github.com/zikwall/tabletstore-client/src/cx"
)

// RetryableFunc is one polling attempt. It reports retry=true to be invoked
// again (its status is then provisional) and retry=false to stop, in which
// case its status is the final answer. The deadline is the overall budget the
// attempt should fit its own RPC timeout into.
type RetryableFunc func(deadline time.Time) (retry bool, err error)

// RetryFunc drives fn until it stops asking for a retry or the deadline
// passes, whichever is first. On expiry the last provisional status is
// discarded in favor of a TimedOut carrying timeoutMsg. A deadline already in
// the past returns TimedOut without a single attempt.
//
// The sleep between attempts starts at one millisecond and grows by a factor
// of 5/4 each round, capped by the time remaining after subtracting how long
// the previous attempt took.
func RetryFunc(deadline time.Time, retryMsg, timeoutMsg string, logger cx.Logger, fn RetryableFunc) error {
	now := time.Now()
	if !now.Before(deadline) {
		return cx.NewTimedOut(timeoutMsg)
	}

	waitTime := time.Millisecond
	for {
		stime := now
		retry, err := fn(deadline)
		if !retry {
			return err
		}

		now = time.Now()
		if !now.Before(deadline) {
			break
		}

		if logger != nil {
			logger.Logf("%s status=%v", retryMsg, err)
		}
		remaining := deadline.Sub(now) - now.Sub(stime)
		if remaining > 0 {
			waitTime = minDuration(waitTime*5/4, remaining)
			time.Sleep(waitTime)
			now = time.Now()
		}
	}

	return cx.NewTimedOut(timeoutMsg)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
