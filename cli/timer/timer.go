package timer

import (
	"time"
)

type Timer struct {
	startTime time.Time
	now       func() time.Time
}

func (t *Timer) Start() {
	t.startTime = t.clock()
}

func (t *Timer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Elapsed returns the time since Start.
func (t *Timer) Elapsed() time.Duration {
	return t.clock().Sub(t.startTime)
}

// Estimated extrapolates the remaining time from the pace so far. It returns
// an empty string until something has been done.
func (t *Timer) Estimated(recordCount int, doneCount int) string {
	if doneCount <= 0 || t.startTime.IsZero() {
		return ""
	}
	if doneCount >= recordCount {
		return time.Duration(0).String()
	}

	perRecord := t.Elapsed() / time.Duration(doneCount)
	remainCount := recordCount - doneCount
	estimateDuration := perRecord * time.Duration(remainCount)

	return estimateDuration.Round(time.Second).String()
}
