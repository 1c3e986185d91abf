package instantly

import (
	"encoding/json"

	"github.com/sells-group/outreach-cli/internal/filter"
)

// Resource is the normalized result of any call that creates or finds a
// single object.
type Resource struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Lead is a lead as returned by the list and history endpoints.
type Lead struct {
	ID          string      `json:"id,omitempty"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name,omitempty"`
	LastName    string      `json:"last_name,omitempty"`
	CompanyName string      `json:"company_name,omitempty"`
	Website     string      `json:"website,omitempty"`
	Campaign    string      `json:"campaign,omitempty"`
	ListID      string      `json:"list_id,omitempty"`
	Payload     LeadPayload `json:"payload,omitempty"`
}

// LeadPayload carries the enrichment fields attached to a lead.
type LeadPayload struct {
	JobTitle string `json:"jobTitle,omitempty"`
	Location string `json:"location,omitempty"`
	LinkedIn string `json:"linkedIn,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
}

// LeadPage is one page of leads. Next is empty on the last page.
type LeadPage struct {
	Items []Lead
	Next  string
}

// ListLeadsRequest selects leads belonging to a list or a campaign.
// Exactly one of ListID and CampaignID should be set.
type ListLeadsRequest struct {
	ListID        string `json:"list_id,omitempty"`
	CampaignID    string `json:"campaign,omitempty"`
	InList        bool   `json:"in_list,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	StartingAfter string `json:"starting_after,omitempty"`
}

// NewLead is one entry of a bulk create request.
type NewLead struct {
	Email           string            `json:"email"`
	CampaignID      string            `json:"campaign_id,omitempty"`
	FirstName       string            `json:"first_name,omitempty"`
	LastName        string            `json:"last_name,omitempty"`
	Company         string            `json:"company,omitempty"`
	Title           string            `json:"title,omitempty"`
	Website         string            `json:"website,omitempty"`
	LinkedIn        string            `json:"linkedin,omitempty"`
	CustomVariables map[string]string `json:"custom_variables,omitempty"`
}

// BulkCreateRequest is the body for POST /leads/add.
type BulkCreateRequest struct {
	CampaignID        string    `json:"campaign_id,omitempty"`
	SkipIfInWorkspace bool      `json:"skip_if_in_workspace"`
	Leads             []NewLead `json:"leads"`
}

// JobHandle identifies a background job started by the vendor. JobID is
// empty when the call completed synchronously.
type JobHandle struct {
	JobID string
}

// BackgroundJob is the state of a vendor background job.
type BackgroundJob struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress,omitempty"`
}

// Done reports whether the job finished successfully.
func (j BackgroundJob) Done() bool {
	return j.Status == "completed" || j.Status == "success"
}

// Failed reports whether the job failed.
func (j BackgroundJob) Failed() bool {
	return j.Status == "failed"
}

// ResourceKind is the vendor's numeric enrichment target type.
type ResourceKind int

const (
	ResourceKindCampaign ResourceKind = 1
	ResourceKindList     ResourceKind = 2
)

// EnrichmentRequest is the body for the search-and-enrich endpoint. When
// ResourceID is empty the vendor creates a new list named ListName.
type EnrichmentRequest struct {
	SearchFilters        filter.SearchFilter `json:"search_filters"`
	Limit                int                 `json:"limit"`
	WorkEmailEnrichment  bool                `json:"work_email_enrichment"`
	FullyEnrichedProfile bool                `json:"fully_enriched_profile"`
	SkipRowsWithoutEmail bool                `json:"skip_rows_without_email"`
	AutoUpdate           bool                `json:"auto_update"`
	ResourceID           string              `json:"resource_id,omitempty"`
	ResourceType         ResourceKind        `json:"resource_type,omitempty"`
	ListName             string              `json:"list_name,omitempty"`
}

// EnrichmentJob is the normalized response of an enrichment submission.
type EnrichmentJob struct {
	ID         string
	ResourceID string
	// EchoedFilters is the filter document the vendor says it will run.
	// Empty means the submitted filters were dropped.
	EchoedFilters json.RawMessage
}

// FiltersDropped reports whether the vendor acknowledged the job with an
// empty effective filter.
func (j EnrichmentJob) FiltersDropped() bool {
	s := string(j.EchoedFilters)
	return s == "" || s == "null" || s == "{}"
}

// EnrichmentStatus is the vendor's own view of an enrichment job. It is
// frequently absent or stale, so completion is decided by counting leads.
type EnrichmentStatus struct {
	ResourceID string `json:"resource_id"`
	InProgress bool   `json:"in_progress"`
	Exists     bool   `json:"exists"`
}

// Analytics holds raw campaign counters.
type Analytics struct {
	Sent    int
	Opened  int
	Clicked int
	Replied int
	Bounced int
}

// Account is a sending account.
type Account struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Status    int    `json:"status"`
}
