package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitoring.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seed(t *testing.T, s store.Store, now time.Time) {
	t.Helper()
	ctx := context.Background()

	campaigns := []model.Campaign{
		{ID: "c-active", Name: "Fintech CTOs", Status: model.CampaignStatusActive, Analytics: model.Analytics{Sent: 200, Bounced: 20}},
		{ID: "c-small", Name: "Tiny", Status: model.CampaignStatusActive, Analytics: model.Analytics{Sent: 10, Bounced: 5}},
		{ID: "c-paused", Name: "Paused", Status: model.CampaignStatusPaused, Analytics: model.Analytics{Sent: 100, Bounced: 1}},
		{ID: "c-draft-1", Name: "Draft one", Status: model.CampaignStatusDraft},
		{ID: "c-draft-2", Name: "Draft two", Status: model.CampaignStatusDraft},
		{ID: "c-done", Name: "Done", Status: model.CampaignStatusCompleted},
	}
	for i := range campaigns {
		require.NoError(t, s.SaveCampaign(ctx, &campaigns[i]))
	}

	jobs := []model.EnrichmentJob{
		{ID: "enr-old", CampaignID: "c-draft-1", ResourceID: "list-1", ResourceType: model.ResourceList, Requested: 3,
			State: model.EnrichmentTimedOut, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "enr-new", CampaignID: "c-active", ResourceID: "list-2", ResourceType: model.ResourceList, Requested: 3,
			State: model.EnrichmentComplete, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for i := range jobs {
		require.NoError(t, s.SaveEnrichmentJob(ctx, &jobs[i]))
	}
}

func TestCollector_Collect(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	seed(t, s, now)

	c := NewCollector(s)
	snap, err := c.Collect(context.Background(), Thresholds{StallAfter: 24 * time.Hour, BounceRate: 5, MinSent: 50})
	require.NoError(t, err)

	assert.Equal(t, 6, snap.CampaignsTotal)
	assert.Equal(t, 2, snap.CampaignsActive)
	assert.Equal(t, 2, snap.CampaignsDraft)
	assert.Equal(t, 1, snap.CampaignsPaused)
	assert.Equal(t, 1, snap.CampaignsCompleted)
	assert.Equal(t, 310, snap.Sent)
	assert.Equal(t, 26, snap.Bounced)
	assert.InDelta(t, 8.387, snap.BounceRate, 0.01)

	// Tiny is under MinSent and paused campaigns are not flagged.
	require.Len(t, snap.HighBounce, 1)
	assert.Equal(t, "c-active", snap.HighBounce[0].CampaignID)
	assert.InDelta(t, 10.0, snap.HighBounce[0].BounceRate, 0.001)

	assert.Equal(t, 1, snap.PendingSearches)
	assert.Equal(t, 1, snap.TimedOutSearches)
	assert.Equal(t, []string{"enr-old"}, snap.StalledSearches)
	assert.Equal(t, 24, snap.StallAfterHours)
}

func TestCollector_Empty(t *testing.T) {
	c := NewCollector(newTestStore(t))
	snap, err := c.Collect(context.Background(), Thresholds{})
	require.NoError(t, err)
	assert.Zero(t, snap.CampaignsTotal)
	assert.Zero(t, snap.BounceRate)
	assert.Empty(t, snap.HighBounce)
	assert.Empty(t, snap.StalledSearches)
}

func TestCollector_StoreClosed(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := NewCollector(s).Collect(context.Background(), Thresholds{})
	assert.ErrorContains(t, err, "monitoring: list campaigns")
}
