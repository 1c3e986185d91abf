package model

import "time"

// RunOutcome is the overall result of one provisioning run.
type RunOutcome string

const (
	RunCompleted            RunOutcome = "completed"
	RunCompletedWithCaveats RunOutcome = "completed_with_caveats"
	RunFailed               RunOutcome = "error"
)

// PhaseStatus is the terminal status of a provisioning phase.
type PhaseStatus string

const (
	PhaseCompleted PhaseStatus = "completed"
	PhaseWarning   PhaseStatus = "warning"
	PhaseFailed    PhaseStatus = "error"
)

// PhaseResult captures the outcome of one phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration time.Duration  `json:"duration_ms"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunSummary is what a caller receives at the end of a run. CampaignID and
// LeadListID are set whenever the corresponding vendor resource exists so a
// failed run can still be recovered by hand.
type RunSummary struct {
	RunID           string          `json:"run_id"`
	Outcome         RunOutcome      `json:"outcome"`
	Message         string          `json:"message"`
	CampaignID      string          `json:"campaign_id,omitempty"`
	CampaignURL     string          `json:"campaign_url,omitempty"`
	LeadListID      string          `json:"lead_list_id,omitempty"`
	EnrichmentJobID string          `json:"enrichment_job_id,omitempty"`
	EnrichmentState EnrichmentState `json:"enrichment_state,omitempty"`
	LeadCount       int             `json:"lead_count"`
	Variants        []CopyVariant   `json:"variants,omitempty"`
	Phases          []PhaseResult   `json:"phases"`
}
