package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

func seedCampaign(t *testing.T, st store.Store, status model.CampaignStatus) {
	t.Helper()
	require.NoError(t, st.SaveCampaign(context.Background(), &model.Campaign{
		ID: "camp-1", UserID: "user-1", Name: "Launch - acme.io", URL: "acme.io",
		LeadListID: "list-1", Status: status,
	}))
}

func TestManager_RefreshAnalytics(t *testing.T) {
	v := newFakeVendor(0)
	v.analytics = instantly.Analytics{Sent: 200, Opened: 90, Clicked: 9, Replied: 7, Bounced: 3}
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusActive)

	c, err := NewManager(v, st).RefreshAnalytics(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 200, c.Sent)
	assert.InDelta(t, 45.0, c.OpenRate, 0.001)
	assert.InDelta(t, 10.0, c.ClickRate, 0.001)
	assert.InDelta(t, 3.5, c.ReplyRate, 0.001)
	assert.Equal(t, 3, c.Bounced)
}

func TestManager_RefreshAll(t *testing.T) {
	v := newFakeVendor(0)
	v.analytics = instantly.Analytics{Sent: 10}
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusActive)

	n, err := NewManager(v, st).RefreshAll(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestManager_PauseAndActivate(t *testing.T) {
	v := newFakeVendor(0)
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusActive)
	m := NewManager(v, st)

	c, err := m.Pause(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusPaused, c.Status)
	assert.Equal(t, []string{"camp-1"}, v.paused)

	c, err = m.Activate(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, c.Status)

	stored, err := st.GetCampaign(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, stored.Status)
}

func TestManager_InvalidTransition(t *testing.T) {
	v := newFakeVendor(0)
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusCompleted)

	_, err := NewManager(v, st).Pause(context.Background(), "camp-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, v.paused)
}

func TestManager_DraftCannotBePaused(t *testing.T) {
	v := newFakeVendor(0)
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusDraft)
	m := NewManager(v, st)

	_, err := m.Pause(context.Background(), "camp-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, v.paused)

	c, err := m.Activate(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, c.Status)
}

func TestManager_PauseUnknownCampaign(t *testing.T) {
	_, err := NewManager(newFakeVendor(0), newTestStore(t)).Pause(context.Background(), "nope")
	assert.True(t, store.IsNotFound(err))
}

func TestManager_Delete(t *testing.T) {
	v := newFakeVendor(0)
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusPaused)

	require.NoError(t, NewManager(v, st).Delete(context.Background(), "camp-1"))
	assert.Equal(t, []string{"camp-1"}, v.deleted)
	_, err := st.GetCampaign(context.Background(), "camp-1")
	assert.True(t, store.IsNotFound(err))
}

func TestManager_DeleteGoneVendorSide(t *testing.T) {
	v := newFakeVendor(0)
	v.deleteErr = &instantly.PermanentVendorError{StatusCode: 404, Body: "not found"}
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusPaused)

	require.NoError(t, NewManager(v, st).Delete(context.Background(), "camp-1"))
	_, err := st.GetCampaign(context.Background(), "camp-1")
	assert.True(t, store.IsNotFound(err))
}

func TestManager_DeleteVendorError(t *testing.T) {
	v := newFakeVendor(0)
	v.deleteErr = &instantly.AuthError{StatusCode: 401}
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusPaused)

	require.Error(t, NewManager(v, st).Delete(context.Background(), "camp-1"))
	_, err := st.GetCampaign(context.Background(), "camp-1")
	assert.NoError(t, err)
}

func TestManager_LeadsFallsBackToVendor(t *testing.T) {
	v := newFakeVendor(4)
	v.readyAfter = 1
	st := newTestStore(t)
	seedCampaign(t, st, model.CampaignStatusActive)
	m := NewManager(v, st)

	leads, err := m.Leads(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Len(t, leads, 4)

	_, err = st.SaveLeads(context.Background(), "camp-1", leads[:1])
	require.NoError(t, err)
	leads, err = m.Leads(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestFetchLeads_PrefersHistory(t *testing.T) {
	v := newFakeVendor(3)
	v.history = []instantly.Lead{{Email: "h@acme.io", Payload: instantly.LeadPayload{JobTitle: "CEO"}}}

	leads, err := FetchLeads(context.Background(), v, "list-1", 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "CEO", leads[0].Title)
	assert.Equal(t, "list-1", leads[0].SourceListID)
	assert.Zero(t, v.listCalls)
}

func TestFetchLeads_RequiresListID(t *testing.T) {
	_, err := FetchLeads(context.Background(), newFakeVendor(0), "", 5)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	c := &model.Campaign{Name: "Launch - a", Status: model.CampaignStatusActive, LeadCount: 3}
	c.Sent = 10
	c.OpenRate = 50
	assert.Equal(t, "Launch - a [active] sent=10 open=50.00% reply=0.00% leads=3", Describe(c))
}
