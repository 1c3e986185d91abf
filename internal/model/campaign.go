package model

import (
	"math"
	"time"
)

// CampaignStatus is the lifecycle state of a sending campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// CanTransition reports whether a campaign may move from s to next. Status
// only moves forward, except for an explicit pause and the resume after it.
// A draft can only be activated; it has nothing to pause.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case CampaignStatusDraft:
		return next == CampaignStatusActive
	case CampaignStatusActive:
		return next == CampaignStatusPaused || next == CampaignStatusCompleted
	case CampaignStatusPaused:
		return next == CampaignStatusActive || next == CampaignStatusCompleted
	default:
		return false
	}
}

// CopyVariant is one subject/body pair of an email step. Bodies may carry
// {{firstName}} and {{company}} placeholders filled in by the vendor at send
// time.
type CopyVariant struct {
	Subject string `json:"subject" yaml:"subject" validate:"required"`
	Body    string `json:"body" yaml:"body" validate:"required"`
}

// Analytics holds campaign delivery counters and derived rates (percent).
type Analytics struct {
	Sent      int     `json:"sent"`
	Opened    int     `json:"opened"`
	Clicked   int     `json:"clicked"`
	Replied   int     `json:"replied"`
	Bounced   int     `json:"bounced"`
	OpenRate  float64 `json:"open_rate"`
	ClickRate float64 `json:"click_rate"`
	ReplyRate float64 `json:"reply_rate"`
}

// WithRates returns a copy with rates computed from the counters. Click rate
// is relative to opens; open and reply rates are relative to sends.
func (a Analytics) WithRates() Analytics {
	a.OpenRate = percent(a.Opened, a.Sent)
	a.ClickRate = percent(a.Clicked, a.Opened)
	a.ReplyRate = percent(a.Replied, a.Sent)
	return a
}

func percent(n, d int) float64 {
	if d < 1 {
		d = 1
	}
	return math.Round(float64(n)/float64(d)*100*100) / 100
}

// Campaign is the persisted record of a provisioned campaign.
type Campaign struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	URL             string         `json:"url"`
	TargetAudience  string         `json:"target_audience"`
	CopyVariants    []CopyVariant  `json:"copy_variants"`
	LeadListID      string         `json:"lead_list_id,omitempty"`
	EnrichmentJobID string         `json:"enrichment_job_id,omitempty"`
	LeadCount       int            `json:"lead_count"`
	Status          CampaignStatus `json:"status"`
	Analytics
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStats aggregates analytics across all of a user's campaigns.
type UserStats struct {
	TotalCampaigns  int     `json:"total_campaigns"`
	ActiveCampaigns int     `json:"active_campaigns"`
	TotalSent       int     `json:"total_sent"`
	TotalOpened     int     `json:"total_opened"`
	TotalClicked    int     `json:"total_clicked"`
	TotalReplied    int     `json:"total_replied"`
	AvgOpenRate     float64 `json:"avg_open_rate"`
	AvgReplyRate    float64 `json:"avg_reply_rate"`
}

// Aggregate computes UserStats for a set of campaigns.
func Aggregate(campaigns []Campaign) UserStats {
	s := UserStats{TotalCampaigns: len(campaigns)}
	for _, c := range campaigns {
		if c.Status == CampaignStatusActive {
			s.ActiveCampaigns++
		}
		s.TotalSent += c.Sent
		s.TotalOpened += c.Opened
		s.TotalClicked += c.Clicked
		s.TotalReplied += c.Replied
	}
	s.AvgOpenRate = percent(s.TotalOpened, s.TotalSent)
	s.AvgReplyRate = percent(s.TotalReplied, s.TotalSent)
	return s
}
