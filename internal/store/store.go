// Package store persists campaigns, enrichment jobs and bound leads.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// Store defines the persistence interface for campaign provisioning.
type Store interface {
	// Campaigns
	SaveCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	// GetCampaigns lists a user's campaigns newest first. An empty userID
	// lists every campaign.
	GetCampaigns(ctx context.Context, userID string) ([]model.Campaign, error)
	UpdateStats(ctx context.Context, id string, a model.Analytics) error
	UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error
	DeleteCampaign(ctx context.Context, id string) error
	GetUserStats(ctx context.Context, userID string) (model.UserStats, error)

	// Enrichment jobs
	SaveEnrichmentJob(ctx context.Context, job *model.EnrichmentJob) error
	UpdateEnrichmentJob(ctx context.Context, job *model.EnrichmentJob) error
	// PendingEnrichmentJobs returns jobs not yet complete or failed, oldest
	// first. Only jobs whose campaign is recorded are returned: a run saves
	// its campaign last, so jobs of runs still in flight stay invisible.
	PendingEnrichmentJobs(ctx context.Context, limit int) ([]model.EnrichmentJob, error)
	// LeadListOwner returns the user owning a lead list, through the
	// campaign bound to it or the search that created it.
	LeadListOwner(ctx context.Context, listID string) (string, error)

	// Leads bound to a campaign
	SaveLeads(ctx context.Context, campaignID string, leads []model.Lead) (int64, error)
	ListLeads(ctx context.Context, campaignID string) ([]model.Lead, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// pendingStates are the enrichment states a follow-up may still advance.
var pendingStates = []string{
	string(model.EnrichmentPending),
	string(model.EnrichmentPartial),
	string(model.EnrichmentTimedOut),
}

const campaignColumns = `id, user_id, name, url, target_audience, copy_variants, lead_list_id,
	enrichment_job_id, lead_count, status, sent, opened, clicked, replied, bounced,
	open_rate, click_rate, reply_rate, created_at, updated_at`

const jobColumns = `id, campaign_id, resource_id, resource_type, requested, last_count, state, created_at, updated_at, user_id`

const leadColumns = `email, first_name, last_name, company, title, website, linkedin, city, state, country, source_list_id, campaign_id`

type scannable interface {
	Scan(dest ...any) error
}

func scanCampaign(row scannable) (*model.Campaign, error) {
	var c model.Campaign
	var variants []byte
	var status string
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.URL, &c.TargetAudience, &variants, &c.LeadListID,
		&c.EnrichmentJobID, &c.LeadCount, &status, &c.Sent, &c.Opened, &c.Clicked, &c.Replied, &c.Bounced,
		&c.OpenRate, &c.ClickRate, &c.ReplyRate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.CampaignStatus(status)
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &c.CopyVariants); err != nil {
			return nil, eris.Wrapf(err, "store: decode copy variants of %s", c.ID)
		}
	}
	return &c, nil
}

func scanJob(row scannable) (model.EnrichmentJob, error) {
	var j model.EnrichmentJob
	var rt, state string
	err := row.Scan(&j.ID, &j.CampaignID, &j.ResourceID, &rt, &j.Requested, &j.LastCount, &state, &j.CreatedAt, &j.UpdatedAt, &j.UserID)
	j.ResourceType = model.ResourceType(rt)
	j.State = model.EnrichmentState(state)
	return j, err
}

func scanLead(row scannable) (model.Lead, error) {
	var l model.Lead
	err := row.Scan(&l.Email, &l.FirstName, &l.LastName, &l.Company, &l.Title, &l.Website,
		&l.LinkedIn, &l.City, &l.State, &l.Country, &l.SourceListID, &l.CampaignID)
	return l, err
}

func campaignArgs(c *model.Campaign) ([]any, error) {
	variants, err := json.Marshal(c.CopyVariants)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal copy variants")
	}
	a := c.Analytics.WithRates()
	return []any{
		c.ID, c.UserID, c.Name, c.URL, c.TargetAudience, variants, c.LeadListID,
		c.EnrichmentJobID, c.LeadCount, string(c.Status), a.Sent, a.Opened, a.Clicked, a.Replied, a.Bounced,
		a.OpenRate, a.ClickRate, a.ReplyRate, c.CreatedAt, c.UpdatedAt,
	}, nil
}

func jobArgs(j *model.EnrichmentJob) []any {
	return []any{j.ID, j.CampaignID, j.ResourceID, string(j.ResourceType), j.Requested, j.LastCount, string(j.State), j.CreatedAt, j.UpdatedAt, j.UserID}
}

// dedupeLeads keeps the first lead per email key, stamped with campaignID.
func dedupeLeads(campaignID string, leads []model.Lead) []model.Lead {
	seen := make(map[string]bool, len(leads))
	out := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		k := l.Key()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		l.Email = k
		l.CampaignID = campaignID
		out = append(out, l)
	}
	return out
}

func leadRow(l model.Lead) []any {
	return []any{l.Email, l.FirstName, l.LastName, l.Company, l.Title, l.Website,
		l.LinkedIn, l.City, l.State, l.Country, l.SourceListID, l.CampaignID}
}
