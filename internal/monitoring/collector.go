package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// pendingScanLimit caps how many unfinished lead searches one collection
// inspects.
const pendingScanLimit = 10000

// Snapshot holds a point-in-time view of campaign health.
type Snapshot struct {
	// Campaigns by status.
	CampaignsTotal     int `json:"campaigns_total"`
	CampaignsDraft     int `json:"campaigns_draft"`
	CampaignsActive    int `json:"campaigns_active"`
	CampaignsPaused    int `json:"campaigns_paused"`
	CampaignsCompleted int `json:"campaigns_completed"`

	// Delivery across every campaign.
	Sent       int     `json:"sent"`
	Bounced    int     `json:"bounced"`
	BounceRate float64 `json:"bounce_rate"`

	// HighBounce lists active campaigns whose own bounce rate is over the
	// threshold given to Collect.
	HighBounce []CampaignBounce `json:"high_bounce,omitempty"`

	// Unfinished lead searches.
	PendingSearches  int      `json:"pending_searches"`
	TimedOutSearches int      `json:"timed_out_searches"`
	StalledSearches  []string `json:"stalled_searches,omitempty"`

	StallAfterHours int       `json:"stall_after_hours"`
	CollectedAt     time.Time `json:"collected_at"`
}

// CampaignBounce is one campaign's bounce figures.
type CampaignBounce struct {
	CampaignID string  `json:"campaign_id"`
	Name       string  `json:"name"`
	Sent       int     `json:"sent"`
	BounceRate float64 `json:"bounce_rate"`
}

// Thresholds bound what Collect flags per campaign.
type Thresholds struct {
	StallAfter time.Duration
	BounceRate float64 // percent
	MinSent    int
}

// Collector gathers health figures from the campaign store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new health collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of campaign health.
func (c *Collector) Collect(ctx context.Context, th Thresholds) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		StallAfterHours: int(th.StallAfter / time.Hour),
		CollectedAt:     now,
	}

	campaigns, err := c.store.GetCampaigns(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list campaigns")
	}

	snap.CampaignsTotal = len(campaigns)
	for _, camp := range campaigns {
		switch camp.Status {
		case model.CampaignStatusDraft:
			snap.CampaignsDraft++
		case model.CampaignStatusActive:
			snap.CampaignsActive++
		case model.CampaignStatusPaused:
			snap.CampaignsPaused++
		case model.CampaignStatusCompleted:
			snap.CampaignsCompleted++
		}
		snap.Sent += camp.Sent
		snap.Bounced += camp.Bounced

		if camp.Status != model.CampaignStatusActive || camp.Sent < th.MinSent || camp.Sent == 0 {
			continue
		}
		rate := bounceRate(camp.Bounced, camp.Sent)
		if th.BounceRate > 0 && rate > th.BounceRate {
			snap.HighBounce = append(snap.HighBounce, CampaignBounce{
				CampaignID: camp.ID,
				Name:       camp.Name,
				Sent:       camp.Sent,
				BounceRate: rate,
			})
		}
	}
	snap.BounceRate = bounceRate(snap.Bounced, snap.Sent)

	jobs, err := c.store.PendingEnrichmentJobs(ctx, pendingScanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list pending searches")
	}
	for _, j := range jobs {
		snap.PendingSearches++
		if j.State == model.EnrichmentTimedOut {
			snap.TimedOutSearches++
		}
		if th.StallAfter > 0 && now.Sub(j.CreatedAt) > th.StallAfter {
			snap.StalledSearches = append(snap.StalledSearches, j.ID)
		}
	}

	return snap, nil
}

func bounceRate(bounced, sent int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(bounced) / float64(sent) * 100
}
