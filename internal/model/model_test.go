package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to CampaignStatus
		want     bool
	}{
		{CampaignStatusDraft, CampaignStatusActive, true},
		{CampaignStatusDraft, CampaignStatusPaused, false},
		{CampaignStatusDraft, CampaignStatusCompleted, false},
		{CampaignStatusActive, CampaignStatusPaused, true},
		{CampaignStatusActive, CampaignStatusCompleted, true},
		{CampaignStatusActive, CampaignStatusDraft, false},
		{CampaignStatusPaused, CampaignStatusActive, true},
		{CampaignStatusPaused, CampaignStatusCompleted, true},
		{CampaignStatusCompleted, CampaignStatusActive, false},
		{CampaignStatusCompleted, CampaignStatusCompleted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestAnalytics_WithRates(t *testing.T) {
	t.Parallel()

	a := Analytics{Sent: 300, Opened: 100, Clicked: 7, Replied: 9}.WithRates()
	assert.Equal(t, 33.33, a.OpenRate)
	assert.Equal(t, 7.0, a.ClickRate)
	assert.Equal(t, 3.0, a.ReplyRate)

	// Zero denominators count as one.
	z := Analytics{Replied: 1}.WithRates()
	assert.Equal(t, 0.0, z.OpenRate)
	assert.Equal(t, 100.0, z.ReplyRate)
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	s := Aggregate([]Campaign{
		{Status: CampaignStatusActive, Analytics: Analytics{Sent: 100, Opened: 40, Clicked: 4, Replied: 2}},
		{Status: CampaignStatusPaused, Analytics: Analytics{Sent: 50, Opened: 10, Replied: 1}},
		{Status: CampaignStatusActive},
	})
	assert.Equal(t, 3, s.TotalCampaigns)
	assert.Equal(t, 2, s.ActiveCampaigns)
	assert.Equal(t, 150, s.TotalSent)
	assert.Equal(t, 50, s.TotalOpened)
	assert.Equal(t, 4, s.TotalClicked)
	assert.Equal(t, 33.33, s.AvgOpenRate)
	assert.Equal(t, 2.0, s.AvgReplyRate)

	empty := Aggregate(nil)
	assert.Zero(t, empty.TotalCampaigns)
	assert.Zero(t, empty.AvgOpenRate)
}

func TestEnrichmentState_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, EnrichmentPending.Terminal())
	assert.False(t, EnrichmentPartial.Terminal())
	assert.True(t, EnrichmentComplete.Terminal())
	assert.True(t, EnrichmentTimedOut.Terminal())
	assert.True(t, EnrichmentFailed.Terminal())
}

func TestLead_Key(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ana@acme.io", Lead{Email: "  Ana@Acme.IO "}.Key())
	assert.Equal(t, Lead{Email: "a@x.io"}.Key(), Lead{Email: "A@X.io"}.Key())
}
