package enrichment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// JobStatus is the answer of one background-job check.
type JobStatus int

const (
	JobRunning JobStatus = iota
	JobDone
	JobFailed
)

// ErrJobFailed is returned by WaitJob when the job reports failure.
var ErrJobFailed = eris.New("enrichment: background job failed")

// WaitJob checks a submitted job every interval, at most attempts times.
// Check errors count as "still running". It returns true once the job is
// done and false when attempts run out; callers treat that as unverified,
// not failed.
func WaitJob(ctx context.Context, clock Clock, interval time.Duration, attempts int,
	check func(ctx context.Context) (JobStatus, error)) (bool, error) {
	if clock == nil {
		clock = realClock{}
	}
	for i := 1; i <= attempts; i++ {
		select {
		case <-ctx.Done():
			return false, eris.Wrap(ctx.Err(), "enrichment: wait job canceled")
		case <-clock.After(interval):
		}

		status, err := check(ctx)
		if err != nil {
			zap.L().Debug("enrichment: job check failed", zap.Int("attempt", i), zap.Error(err))
			continue
		}
		switch status {
		case JobDone:
			return true, nil
		case JobFailed:
			return false, ErrJobFailed
		}
	}
	return false, nil
}
