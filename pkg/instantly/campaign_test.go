package instantly

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCampaignRequest(t *testing.T) {
	variants := []Variant{
		{Subject: "1", Body: "a"}, {Subject: "2", Body: "b"},
		{Subject: "3", Body: "c"}, {Subject: "4", Body: "d"},
	}
	req := NewCampaignRequest("Launch - acme.io", variants, CampaignOptions{
		Accounts:    []string{"me@send.io"},
		LeadListIDs: []string{"list-1"},
	})

	require.Len(t, req.Sequences, 2)
	first := req.Sequences[0].Steps[0]
	assert.Equal(t, 0, first.Delay)
	assert.Len(t, first.Variants, 3)

	follow := req.Sequences[1].Steps[0]
	assert.Equal(t, 3, follow.Delay)
	assert.Equal(t, "Following up", follow.Variants[0].Subject)
	assert.Contains(t, follow.Variants[0].Body, "{{firstName}}")

	sched := req.CampaignSchedule.Schedules[0]
	assert.Equal(t, DefaultTimezone, sched.Timezone)
	assert.Equal(t, Timing{From: "09:00", To: "17:00"}, sched.Timing)
	assert.False(t, sched.Days["0"])
	assert.True(t, sched.Days["3"])
	assert.False(t, sched.Days["6"])

	data, err := json.Marshal(req)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{"me@send.io"}, raw["email_list"])
	assert.Equal(t, []any{"list-1"}, raw["lead_list_ids"])
}

func TestNewCampaignRequest_OmitsEmptyLists(t *testing.T) {
	req := NewCampaignRequest("x", []Variant{{Subject: "s", Body: "b"}}, CampaignOptions{Timezone: "America/Chicago"})
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "email_list")
	assert.NotContains(t, string(data), "lead_list_ids")
	assert.Contains(t, string(data), "America/Chicago")
}

func TestCampaignURL(t *testing.T) {
	assert.Equal(t, "https://app.instantly.ai/app/campaigns/camp-1", CampaignURL("camp-1"))
	assert.Equal(t, "", CampaignURL(""))
}
