package followup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestRun_BindsAndActivates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := newFakeVendor(2)
	v.addList("list-1", 3)
	job := seedJob(t, s, "camp-1", "list-1", 3)
	acts := &Activities{Vendor: v, Store: s}

	res, err := Run(ctx, acts, job, Params{Interval: time.Minute, MaxChecks: 5}, instantClock{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Checks)
	assert.Equal(t, model.EnrichmentComplete, res.State)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 3, res.Bound)
	assert.True(t, res.Verified)
	assert.True(t, res.Activated)
	assert.Equal(t, 3, v.boundTo("camp-1"))

	c, err := s.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, c.Status)
	assert.Equal(t, 3, c.LeadCount)

	leads, err := s.ListLeads(ctx, "camp-1")
	require.NoError(t, err)
	assert.Len(t, leads, 3)

	pending, err := s.PendingEnrichmentJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRun_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := newFakeVendor(1)
	v.addList("list-1", 2)
	job := seedJob(t, s, "camp-1", "list-1", 2)
	acts := &Activities{Vendor: v, Store: s}

	_, err := Run(ctx, acts, job, Params{MaxChecks: 2}, instantClock{})
	require.NoError(t, err)

	again, err := Run(ctx, acts, job, Params{MaxChecks: 2}, instantClock{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Bound)
	assert.False(t, again.Activated)
	assert.Equal(t, 1, v.bulkCalls)
	assert.Len(t, v.activated, 1)

	c, err := s.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, c.LeadCount)
}

func TestRun_TimesOut(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := newFakeVendor(0)
	v.addList("list-1", 3)
	job := seedJob(t, s, "camp-1", "list-1", 3)
	acts := &Activities{Vendor: v, Store: s}

	res, err := Run(ctx, acts, job, Params{Interval: time.Second, MaxChecks: 3}, instantClock{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Checks)
	assert.Equal(t, model.EnrichmentTimedOut, res.State)
	assert.Zero(t, res.Bound)
	assert.False(t, res.Activated)
	assert.Empty(t, v.activated)

	pending, err := s.PendingEnrichmentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EnrichmentTimedOut, pending[0].State)
}

func TestRun_Canceled(t *testing.T) {
	s := newTestStore(t)
	v := newFakeVendor(0)
	job := seedJob(t, s, "camp-1", "list-1", 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, &Activities{Vendor: v, Store: s}, job, Params{Interval: time.Hour, MaxChecks: 3}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := newFakeVendor(1)
	v.addList("list-a", 2)
	v.addList("list-b", 4)
	seedJob(t, s, "camp-a", "list-a", 2)
	seedJob(t, s, "camp-b", "list-b", 4)
	acts := &Activities{Vendor: v, Store: s}

	results, err := Sweep(ctx, acts, Params{MaxChecks: 2}, 10, 2, instantClock{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byCampaign := map[string]Result{}
	for _, r := range results {
		byCampaign[r.CampaignID] = r
	}
	assert.Equal(t, 2, byCampaign["camp-a"].Bound)
	assert.Equal(t, 4, byCampaign["camp-b"].Bound)
	assert.Equal(t, 2, v.boundTo("camp-a"))
	assert.Equal(t, 4, v.boundTo("camp-b"))
}

func TestSweep_SkipsJobsOfRunsInFlight(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := newFakeVendor(1)
	v.addList("list-run", 3)
	job := &model.EnrichmentJob{
		ID: "enr-run", CampaignID: "camp-run", ResourceID: "list-run",
		ResourceType: model.ResourceList, Requested: 3, State: model.EnrichmentPending,
	}
	require.NoError(t, s.SaveEnrichmentJob(ctx, job))
	acts := &Activities{Vendor: v, Store: s}

	results, err := Sweep(ctx, acts, Params{MaxChecks: 1}, 10, 2, instantClock{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, v.bulkCalls)
	assert.Zero(t, v.boundTo("camp-run"))

	// The run finishes and records its campaign; the job is now eligible
	// and still pending.
	require.NoError(t, s.SaveCampaign(ctx, &model.Campaign{
		ID: "camp-run", Name: "Launch", LeadListID: "list-run", EnrichmentJobID: "enr-run",
		Status: model.CampaignStatusDraft,
	}))
	pending, err := s.PendingEnrichmentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EnrichmentPending, pending[0].State)
}

func TestBindLeads_RequiresRecordedCampaign(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := newFakeVendor(1)
	v.addList("list-run", 2)
	acts := &Activities{Vendor: v, Store: s}

	_, err := acts.BindLeads(ctx, model.EnrichmentJob{
		ID: "enr-run", CampaignID: "camp-run", ResourceID: "list-run",
		ResourceType: model.ResourceList, Requested: 2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load campaign")
	assert.Zero(t, v.bulkCalls)

	leads, err := s.ListLeads(ctx, "camp-run")
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestActivateCampaign_SkipsNonDraft(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := newFakeVendor(1)
	seedJob(t, s, "camp-1", "list-1", 1)
	require.NoError(t, s.UpdateStatus(ctx, "camp-1", model.CampaignStatusPaused))

	acts := &Activities{Vendor: v, Store: s}
	changed, err := acts.ActivateCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, v.activated)
}

func TestParamsDefaults(t *testing.T) {
	p := Params{}.withDefaults()
	assert.Equal(t, 30*time.Second, p.Interval)
	assert.Equal(t, 10, p.MaxChecks)
}
