package followup

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// fakeVendor serves leads per list. A list's leads become visible after
// readyAfter list reads of that list; readyAfter 0 means never.
type fakeVendor struct {
	instantly.Client

	mu         sync.Mutex
	lists      map[string][]instantly.Lead
	readyAfter int
	reads      map[string]int
	bound      map[string]string
	activated  []string
	bulkCalls  int
}

func newFakeVendor(readyAfter int) *fakeVendor {
	return &fakeVendor{
		lists:      map[string][]instantly.Lead{},
		readyAfter: readyAfter,
		reads:      map[string]int{},
		bound:      map[string]string{},
	}
}

func (v *fakeVendor) addList(listID string, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range n {
		v.lists[listID] = append(v.lists[listID], instantly.Lead{
			Email:       fmt.Sprintf("%s-%d@acme.io", listID, i+1),
			FirstName:   "ana",
			CompanyName: "Acme",
		})
	}
}

func (v *fakeVendor) GetEnrichmentHistory(context.Context, string) ([]instantly.Lead, error) {
	return nil, nil
}

func (v *fakeVendor) ListLeads(_ context.Context, req instantly.ListLeadsRequest) (*instantly.LeadPage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var visible []instantly.Lead
	if req.CampaignID != "" {
		for _, leads := range v.lists {
			for _, l := range leads {
				if v.bound[strings.ToLower(l.Email)] == req.CampaignID {
					visible = append(visible, l)
				}
			}
		}
	} else {
		v.reads[req.ListID]++
		if v.readyAfter > 0 && v.reads[req.ListID] >= v.readyAfter {
			visible = v.lists[req.ListID]
		}
	}
	if req.Limit > 0 && len(visible) > req.Limit {
		visible = visible[:req.Limit]
	}
	return &instantly.LeadPage{Items: append([]instantly.Lead(nil), visible...)}, nil
}

func (v *fakeVendor) CreateLeads(_ context.Context, req instantly.BulkCreateRequest) (*instantly.JobHandle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bulkCalls++
	for _, l := range req.Leads {
		key := strings.ToLower(l.Email)
		if _, ok := v.bound[key]; !ok {
			v.bound[key] = l.CampaignID
		}
	}
	return &instantly.JobHandle{}, nil
}

func (v *fakeVendor) ActivateCampaign(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.activated = append(v.activated, id)
	return nil
}

func (v *fakeVendor) boundTo(campaignID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, c := range v.bound {
		if c == campaignID {
			n++
		}
	}
	return n
}

// instantClock never waits.
type instantClock struct{}

func (instantClock) Now() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "followup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// seedJob stores a draft campaign and a pending list job for it.
func seedJob(t *testing.T, s store.Store, campaignID, listID string, requested int) model.EnrichmentJob {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveCampaign(ctx, &model.Campaign{
		ID:              campaignID,
		Name:            "Launch - " + campaignID,
		URL:             "https://acme.io",
		LeadListID:      listID,
		EnrichmentJobID: "enr-" + campaignID,
		Status:          model.CampaignStatusDraft,
	}))
	job := model.EnrichmentJob{
		ID:           "enr-" + campaignID,
		CampaignID:   campaignID,
		ResourceID:   listID,
		ResourceType: model.ResourceList,
		Requested:    requested,
		State:        model.EnrichmentPending,
	}
	require.NoError(t, s.SaveEnrichmentJob(ctx, &job))
	return job
}
