// Package followup finishes provisioning runs whose lead search outlived
// the run: it re-checks pending enrichment jobs, binds the leads that have
// arrived and activates the campaign. The same logic runs inline or as a
// Temporal workflow.
package followup

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/enrichment"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Params bounds one follow-up.
type Params struct {
	Interval  time.Duration `json:"interval"`
	MaxChecks int           `json:"max_checks"`
}

func (p Params) withDefaults() Params {
	if p.Interval <= 0 {
		p.Interval = 30 * time.Second
	}
	if p.MaxChecks <= 0 {
		p.MaxChecks = 10
	}
	return p
}

// Result is the outcome of one follow-up.
type Result struct {
	JobID      string                `json:"job_id"`
	CampaignID string                `json:"campaign_id"`
	State      model.EnrichmentState `json:"state"`
	Count      int                   `json:"count"`
	Checks     int                   `json:"checks"`
	Bound      int                   `json:"bound"`
	Verified   bool                  `json:"verified"`
	Activated  bool                  `json:"activated"`
}

// steps is what a follow-up needs from its executor. The inline and the
// workflow executors implement it.
type steps interface {
	check(job model.EnrichmentJob) (model.EnrichmentJob, error)
	record(job model.EnrichmentJob) error
	sleep(d time.Duration) error
	bind(job model.EnrichmentJob) (BindOutcome, error)
	activate(campaignID string) (bool, error)
}

// followUp checks job until complete or out of checks, then binds whatever
// leads exist. A job that never completes is recorded as timed-out and
// stays eligible for the next sweep.
func followUp(s steps, job model.EnrichmentJob, p Params) (Result, error) {
	p = p.withDefaults()
	res := Result{JobID: job.ID, CampaignID: job.CampaignID}

	for i := range p.MaxChecks {
		if i > 0 {
			if err := s.sleep(p.Interval); err != nil {
				return res, err
			}
		}
		res.Checks++
		next, err := s.check(job)
		if err != nil {
			return res, err
		}
		job = next
		if job.State == model.EnrichmentComplete {
			break
		}
	}

	if job.State != model.EnrichmentComplete {
		job.State = model.EnrichmentTimedOut
		if err := s.record(job); err != nil {
			return res, err
		}
	}
	res.State = job.State
	res.Count = job.LastCount
	if job.LastCount == 0 {
		return res, nil
	}

	b, err := s.bind(job)
	if err != nil {
		return res, err
	}
	res.Bound = b.Bound
	res.Verified = b.Verified

	activated, err := s.activate(job.CampaignID)
	if err != nil {
		return res, err
	}
	res.Activated = activated
	return res, nil
}

// inline runs the steps directly against Activities.
type inline struct {
	ctx   context.Context
	acts  *Activities
	clock enrichment.Clock
}

func (s inline) check(job model.EnrichmentJob) (model.EnrichmentJob, error) {
	return s.acts.CheckJob(s.ctx, job)
}

func (s inline) record(job model.EnrichmentJob) error {
	return s.acts.RecordJob(s.ctx, job)
}

func (s inline) sleep(d time.Duration) error {
	select {
	case <-s.ctx.Done():
		return eris.Wrap(s.ctx.Err(), "followup: canceled")
	case <-s.clock.After(d):
		return nil
	}
}

func (s inline) bind(job model.EnrichmentJob) (BindOutcome, error) {
	return s.acts.BindLeads(s.ctx, job)
}

func (s inline) activate(campaignID string) (bool, error) {
	return s.acts.ActivateCampaign(s.ctx, campaignID)
}

type wallClock struct{}

func (wallClock) Now() time.Time                         { return time.Now() }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Run follows one job up in the calling goroutine. A nil clock uses wall
// time.
func Run(ctx context.Context, acts *Activities, job model.EnrichmentJob, p Params, clock enrichment.Clock) (Result, error) {
	if clock == nil {
		clock = wallClock{}
	}
	res, err := followUp(inline{ctx: ctx, acts: acts, clock: clock}, job, p)
	if err != nil {
		return res, eris.Wrapf(err, "followup: job %s", job.ID)
	}
	return res, nil
}

// Sweep follows up every pending job, at most concurrency at a time. A
// failing job is logged and does not stop the others.
func Sweep(ctx context.Context, acts *Activities, p Params, limit, concurrency int, clock enrichment.Clock) ([]Result, error) {
	jobs, err := acts.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]Result, len(jobs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := Run(gCtx, acts, job, p, clock)
			if err != nil {
				zap.L().Warn("followup: job failed",
					zap.String("job_id", job.ID),
					zap.String("campaign_id", job.CampaignID),
					zap.Error(err),
				)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}
