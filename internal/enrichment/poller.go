// Package enrichment waits for asynchronous vendor jobs by polling for their
// side effects.
package enrichment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Default budgets for a provisioning run.
const (
	DefaultInterval               = 10 * time.Second
	DefaultMaxWait                = 5 * time.Minute
	DefaultMaxConsecutiveFailures = 5
)

// Target is the resource whose lead membership is counted.
type Target struct {
	ResourceID string
	Type       model.ResourceType
}

// LeadCounter reports how many leads currently belong to a target. limit is
// the count the caller is waiting for; implementations may stop counting
// there.
type LeadCounter interface {
	CountLeads(ctx context.Context, target Target, limit int) (int, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Config holds the polling budgets.
type Config struct {
	Interval               time.Duration
	MaxWait                time.Duration
	MaxConsecutiveFailures int
	// CheckImmediately counts once before the first sleep.
	CheckImmediately bool
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	return c
}

// Observation describes one poll tick.
type Observation struct {
	Attempt int
	Count   int
	Elapsed time.Duration
	State   model.EnrichmentState
	Err     error
}

// Result is the outcome of Poll.
type Result struct {
	State    model.EnrichmentState
	Count    int
	Attempts int
	Elapsed  time.Duration
	// LastErr is the most recent counter error, set when State is failed.
	LastErr error
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithObserver registers a callback for every tick.
func WithObserver(fn func(Observation)) Option {
	return func(p *Poller) { p.observe = fn }
}

// Poller drives the pending → partial → complete|timed-out|failed state
// machine of one enrichment job. The vendor offers no push notification and
// its status flag is unreliable, so completion is decided by counting the
// leads that actually landed on the target resource.
type Poller struct {
	counter LeadCounter
	cfg     Config
	clock   Clock
	observe func(Observation)
}

// NewPoller creates a Poller.
func NewPoller(counter LeadCounter, cfg Config, opts ...Option) *Poller {
	p := &Poller{counter: counter, cfg: cfg.withDefaults(), clock: realClock{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll observes job until at least job.Requested leads exist on its
// resource, the wall-clock ceiling passes, or too many consecutive counter
// calls fail. Timing out is not an error: the job stays valid for a later
// follow-up. job is updated in place. An error is returned only for invalid
// input or context cancellation.
func (p *Poller) Poll(ctx context.Context, job *model.EnrichmentJob) (Result, error) {
	if job == nil || job.ResourceID == "" {
		return Result{}, eris.New("enrichment: job has no resource id")
	}
	if job.State == "" {
		job.State = model.EnrichmentPending
	}
	expected := max(job.Requested, 1)
	target := Target{ResourceID: job.ResourceID, Type: job.ResourceType}

	log := zap.L().With(
		zap.String("resource_id", job.ResourceID),
		zap.String("resource_type", string(job.ResourceType)),
		zap.Int("expected", expected),
	)

	start := p.clock.Now()
	deadline := start.Add(p.cfg.MaxWait)
	res := Result{State: job.State, Count: job.LastCount}
	failures := 0
	first := true

	for {
		if !(first && p.cfg.CheckImmediately) {
			wait := min(p.cfg.Interval, deadline.Sub(p.clock.Now()))
			if wait > 0 {
				select {
				case <-ctx.Done():
					res.Elapsed = p.clock.Now().Sub(start)
					return res, eris.Wrap(ctx.Err(), "enrichment: poll canceled")
				case <-p.clock.After(wait):
				}
			}
		}
		first = false

		res.Attempts++
		count, err := p.counter.CountLeads(ctx, target, expected)
		now := p.clock.Now()
		res.Elapsed = now.Sub(start)

		switch {
		case err != nil:
			failures++
			res.LastErr = err
			log.Warn("enrichment: poll failed",
				zap.Int("attempt", res.Attempts),
				zap.Int("consecutive_failures", failures),
				zap.Error(err),
			)
			if failures >= p.cfg.MaxConsecutiveFailures {
				res.State = model.EnrichmentFailed
			}
		default:
			failures = 0
			res.Count = count
			switch {
			case count >= expected:
				res.State = model.EnrichmentComplete
			case count > 0:
				res.State = model.EnrichmentPartial
			}
		}

		if !res.State.Terminal() && !now.Before(deadline) {
			res.State = model.EnrichmentTimedOut
		}

		job.State = res.State
		job.LastCount = res.Count
		job.UpdatedAt = now

		if p.observe != nil {
			p.observe(Observation{
				Attempt: res.Attempts,
				Count:   res.Count,
				Elapsed: res.Elapsed,
				State:   res.State,
				Err:     err,
			})
		}

		if res.State.Terminal() {
			log.Info("enrichment: poll finished",
				zap.String("state", string(res.State)),
				zap.Int("count", res.Count),
				zap.Int("attempts", res.Attempts),
				zap.Duration("elapsed", res.Elapsed),
			)
			return res, nil
		}
	}
}
