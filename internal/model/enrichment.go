package model

import "time"

// EnrichmentState is the observed completion state of an enrichment job.
type EnrichmentState string

const (
	EnrichmentPending  EnrichmentState = "pending"
	EnrichmentPartial  EnrichmentState = "partial"
	EnrichmentComplete EnrichmentState = "complete"
	EnrichmentTimedOut EnrichmentState = "timed-out"
	EnrichmentFailed   EnrichmentState = "failed"
)

// Terminal reports whether no further observation can change the state.
// A timed-out job is terminal for the run that polled it; a follow-up may
// start a new observation from the persisted job.
func (s EnrichmentState) Terminal() bool {
	switch s {
	case EnrichmentComplete, EnrichmentTimedOut, EnrichmentFailed:
		return true
	default:
		return false
	}
}

// ResourceType says where enrichment results land.
type ResourceType string

const (
	ResourceList     ResourceType = "list"
	ResourceCampaign ResourceType = "campaign"
)

// EnrichmentJob identifies one asynchronous search-and-enrich operation.
// CampaignID is empty for a search started on its own.
type EnrichmentJob struct {
	ID           string          `json:"id"`
	CampaignID   string          `json:"campaign_id"`
	UserID       string          `json:"user_id,omitempty"`
	ResourceID   string          `json:"resource_id"`
	ResourceType ResourceType    `json:"resource_type"`
	Requested    int             `json:"requested"`
	LastCount    int             `json:"last_count"`
	State        EnrichmentState `json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
