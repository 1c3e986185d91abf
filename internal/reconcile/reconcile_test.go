package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

func TestBuild_DedupesAndStampsCampaign(t *testing.T) {
	leads := []model.Lead{
		{Email: "ann@acme.io", FirstName: "Ann", Title: "CTO"},
		{Email: "bob@acme.io", FirstName: "Bob"},
		{Email: "ANN@acme.io ", FirstName: "Annie"},
		{Email: "", FirstName: "Nobody"},
		{Email: "bob@acme.io", FirstName: "Robert"},
		{Email: "cy@beta.io"},
	}

	res := Build(leads, "camp-1", "list-1", Options{})

	require.Len(t, res.Request.Leads, 3)
	assert.Equal(t, 2, res.Duplicates)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "camp-1", res.Request.CampaignID)
	assert.False(t, res.Request.SkipIfInWorkspace)

	seen := map[string]bool{}
	for _, l := range res.Request.Leads {
		assert.False(t, seen[l.Email], "duplicate %s", l.Email)
		seen[l.Email] = true
		assert.Equal(t, "camp-1", l.CampaignID)
		assert.Equal(t, map[string]string{"source": "supersearch", "source_list_id": "list-1"}, l.CustomVariables)
	}
	// first occurrence wins
	assert.Equal(t, "Ann", res.Request.Leads[0].FirstName)
	assert.Equal(t, "CTO", res.Request.Leads[0].Title)
	assert.Equal(t, "Bob", res.Request.Leads[1].FirstName)
}

func TestBuild_SourceListFallsBackToLead(t *testing.T) {
	res := Build([]model.Lead{{Email: "a@x.io", SourceListID: "list-7"}}, "camp-1", "", Options{SkipIfInWorkspace: true})
	assert.Equal(t, "list-7", res.Request.Leads[0].CustomVariables["source_list_id"])
	assert.True(t, res.Request.SkipIfInWorkspace)
}

func TestBuild_Empty(t *testing.T) {
	res := Build(nil, "camp-1", "list-1", Options{})
	assert.Empty(t, res.Request.Leads)
	assert.NotNil(t, res.Request.Leads)
}

// dedupingVendor binds leads to campaigns and ignores repeated creates of
// the same email.
type dedupingVendor struct {
	bound map[string]string
}

func (v *dedupingVendor) apply(req instantly.BulkCreateRequest) {
	for _, l := range req.Leads {
		if _, ok := v.bound[l.Email]; ok {
			continue
		}
		v.bound[l.Email] = l.CampaignID
	}
}

func TestBuild_ResubmissionIsIdempotent(t *testing.T) {
	leads := []model.Lead{{Email: "a@x.io"}, {Email: "b@x.io"}, {Email: "a@x.io"}}
	req := Build(leads, "camp-1", "list-1", Options{}).Request

	v := &dedupingVendor{bound: map[string]string{}}
	v.apply(req)
	first := len(v.bound)
	v.apply(req)

	assert.Equal(t, 2, first)
	assert.Equal(t, first, len(v.bound))
	for _, c := range v.bound {
		assert.Equal(t, "camp-1", c)
	}
}

func TestUnknown(t *testing.T) {
	leads := []model.Lead{{Email: "a@x.io"}, {Email: "B@x.io"}, {Email: "c@x.io"}}
	out := Unknown(leads, []string{"b@x.io", " A@X.IO"})
	assert.Equal(t, []model.Lead{{Email: "c@x.io"}}, out)
}

func TestFromVendor(t *testing.T) {
	l := instantly.Lead{
		Email:       " ann@acme.io ",
		FirstName:   "ANN",
		LastName:    "McDonald",
		CompanyName: "Acme",
		Website:     "acme.io",
		Payload: instantly.LeadPayload{
			JobTitle: "CTO", LinkedIn: "in/ann", City: "Austin", State: "Texas", Country: "United States",
		},
	}
	got := FromVendor(l, "list-1")
	assert.Equal(t, model.Lead{
		Email:        "ann@acme.io",
		FirstName:    "Ann",
		LastName:     "McDonald",
		Company:      "Acme",
		Title:        "CTO",
		Website:      "acme.io",
		LinkedIn:     "in/ann",
		City:         "Austin",
		State:        "Texas",
		Country:      "United States",
		SourceListID: "list-1",
	}, got)

	all := FromVendorAll([]instantly.Lead{l, {Email: "b@x.io", ListID: "list-2"}}, "list-1")
	require.Len(t, all, 2)
	assert.Equal(t, "list-2", all[1].SourceListID)
}
