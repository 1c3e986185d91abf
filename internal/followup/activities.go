package followup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/enrichment"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provision"
	"github.com/sells-group/outreach-cli/internal/reconcile"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// BindOutcome reports one bind step.
type BindOutcome struct {
	Bound    int  `json:"bound"`
	Verified bool `json:"verified"`
}

// Activities are the side-effecting steps of a follow-up. Each is safe to
// retry: binding skips leads already recorded for the campaign.
type Activities struct {
	Vendor instantly.Client
	Store  store.Store
	Bind   provision.BindOptions
}

// ListPending returns jobs that still need a follow-up.
func (a *Activities) ListPending(ctx context.Context, limit int) ([]model.EnrichmentJob, error) {
	jobs, err := a.Store.PendingEnrichmentJobs(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "followup: list pending jobs")
	}
	return jobs, nil
}

// CheckJob counts the leads on the job's resource and records the observed
// state.
func (a *Activities) CheckJob(ctx context.Context, job model.EnrichmentJob) (model.EnrichmentJob, error) {
	expected := max(job.Requested, 1)
	counter := enrichment.VendorCounter{Client: a.Vendor}
	count, err := counter.CountLeads(ctx, enrichment.Target{ResourceID: job.ResourceID, Type: job.ResourceType}, expected)
	if err != nil {
		return job, eris.Wrapf(err, "followup: count leads of %s", job.ResourceID)
	}

	job.LastCount = count
	switch {
	case count >= expected:
		job.State = model.EnrichmentComplete
	case count > 0:
		job.State = model.EnrichmentPartial
	default:
		job.State = model.EnrichmentPending
	}
	if err := a.RecordJob(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// RecordJob persists the job state.
func (a *Activities) RecordJob(ctx context.Context, job model.EnrichmentJob) error {
	if err := a.Store.UpdateEnrichmentJob(ctx, &job); err != nil {
		return eris.Wrapf(err, "followup: record job %s", job.ID)
	}
	return nil
}

// BindLeads binds the job's leads that the campaign does not have yet and
// records them.
func (a *Activities) BindLeads(ctx context.Context, job model.EnrichmentJob) (BindOutcome, error) {
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("campaign_id", job.CampaignID))

	c, err := a.Store.GetCampaign(ctx, job.CampaignID)
	if err != nil {
		return BindOutcome{}, eris.Wrap(err, "followup: load campaign")
	}
	known, err := a.Store.ListLeads(ctx, job.CampaignID)
	if err != nil {
		return BindOutcome{}, eris.Wrap(err, "followup: list bound leads")
	}
	emails := make([]string, len(known))
	for i, l := range known {
		emails[i] = l.Email
	}

	var out BindOutcome
	var fresh []model.Lead
	if job.ResourceType == model.ResourceCampaign {
		leads, err := provision.FetchCampaignLeads(ctx, a.Vendor, job.CampaignID, job.Requested)
		if err != nil {
			return out, err
		}
		fresh = reconcile.Unknown(leads, emails)
		out.Verified = true
	} else {
		leads, err := provision.FetchLeads(ctx, a.Vendor, job.ResourceID, job.Requested)
		if err != nil {
			return out, err
		}
		pending := reconcile.Unknown(leads, emails)
		if len(pending) == 0 {
			log.Info("followup: no new leads to bind")
			return out, nil
		}
		b, err := provision.Bind(ctx, a.Vendor, pending, job.CampaignID, job.ResourceID, a.Bind)
		if err != nil {
			return out, err
		}
		fresh = b.Leads
		out.Verified = b.Verified
	}

	if len(fresh) == 0 {
		return out, nil
	}
	if _, err := a.Store.SaveLeads(ctx, job.CampaignID, fresh); err != nil {
		return out, eris.Wrap(err, "followup: save leads")
	}
	out.Bound = len(fresh)

	c.LeadCount = len(known) + len(fresh)
	if err := a.Store.SaveCampaign(ctx, c); err != nil {
		return out, eris.Wrap(err, "followup: update lead count")
	}
	log.Info("followup: leads bound", zap.Int("bound", out.Bound), zap.Int("total", c.LeadCount))
	return out, nil
}

// ActivateCampaign activates a campaign still in draft. It reports whether
// it changed anything.
func (a *Activities) ActivateCampaign(ctx context.Context, campaignID string) (bool, error) {
	c, err := a.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, eris.Wrap(err, "followup: load campaign")
	}
	if c.Status != model.CampaignStatusDraft {
		return false, nil
	}
	if err := a.Vendor.ActivateCampaign(ctx, campaignID); err != nil {
		return false, eris.Wrapf(err, "followup: activate %s", campaignID)
	}
	if err := a.Store.UpdateStatus(ctx, campaignID, model.CampaignStatusActive); err != nil {
		return false, eris.Wrap(err, "followup: record activation")
	}
	return true, nil
}
