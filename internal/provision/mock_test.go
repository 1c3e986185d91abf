package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/enrichment"
	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// fakeVendor is an in-memory lead vendor. Leads become visible on the list
// after readyAfter list calls; before that only the first partial leads
// are visible. Creates of an email already on a campaign are ignored.
type fakeVendor struct {
	mu sync.Mutex

	campaignID string
	listID     string
	leads      []instantly.Lead
	readyAfter int
	partial    int
	history    []instantly.Lead

	echo       json.RawMessage
	jobID      string
	jobStatus  string
	searchMiss bool
	analytics  instantly.Analytics
	deleteErr  error
	onCampaign func()

	createListErr, createCampaignErr, enrichErr error
	createLeadsErr, activateErr, pauseErr       error

	listCalls      int
	campaignReqs   []instantly.CampaignRequest
	enrichReqs     []instantly.EnrichmentRequest
	bulkReqs       []instantly.BulkCreateRequest
	createdLists   []string
	bound          map[string]string
	activated      []string
	paused         []string
	deleted        []string
	backgroundJobs int
}

var _ instantly.Client = (*fakeVendor)(nil)

func newFakeVendor(n int) *fakeVendor {
	v := &fakeVendor{
		campaignID: "camp-1",
		listID:     "list-1",
		readyAfter: 2,
		echo:       json.RawMessage(`{"title":{"include":["CTO"]}}`),
		bound:      map[string]string{},
	}
	for i := range n {
		v.leads = append(v.leads, instantly.Lead{
			Email:       fmt.Sprintf("lead%d@acme.io", i+1),
			FirstName:   "LEAD",
			LastName:    fmt.Sprintf("number%d", i+1),
			CompanyName: "Acme",
			Payload:     instantly.LeadPayload{JobTitle: "CTO", City: "Austin"},
		})
	}
	return v
}

func (v *fakeVendor) CreateLeadList(_ context.Context, name string) (*instantly.Resource, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.createListErr != nil {
		return nil, v.createListErr
	}
	v.createdLists = append(v.createdLists, name)
	return &instantly.Resource{ID: v.listID, Name: name}, nil
}

func (v *fakeVendor) CreateCampaign(_ context.Context, req instantly.CampaignRequest) (*instantly.Resource, error) {
	v.mu.Lock()
	v.campaignReqs = append(v.campaignReqs, req)
	err := v.createCampaignErr
	hook := v.onCampaign
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if hook != nil {
		hook()
	}
	return &instantly.Resource{ID: v.campaignID, Name: req.Name}, nil
}

func (v *fakeVendor) ActivateCampaign(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.activateErr != nil {
		return v.activateErr
	}
	v.activated = append(v.activated, id)
	return nil
}

func (v *fakeVendor) PauseCampaign(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pauseErr != nil {
		return v.pauseErr
	}
	v.paused = append(v.paused, id)
	return nil
}

func (v *fakeVendor) DeleteCampaign(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deleteErr != nil {
		return v.deleteErr
	}
	v.deleted = append(v.deleted, id)
	return nil
}

func (v *fakeVendor) GetCampaignAnalytics(context.Context, string) (*instantly.Analytics, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	a := v.analytics
	return &a, nil
}

func (v *fakeVendor) SearchCampaignsByContact(_ context.Context, email string) ([]instantly.Resource, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.searchMiss {
		return nil, nil
	}
	if c, ok := v.bound[strings.ToLower(email)]; ok {
		return []instantly.Resource{{ID: c}}, nil
	}
	return nil, nil
}

func (v *fakeVendor) EnrichLeads(_ context.Context, req instantly.EnrichmentRequest) (*instantly.EnrichmentJob, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enrichReqs = append(v.enrichReqs, req)
	if v.enrichErr != nil {
		return nil, v.enrichErr
	}
	resourceID := req.ResourceID
	if resourceID == "" && req.ListName != "" {
		resourceID = v.listID
	}
	return &instantly.EnrichmentJob{ID: "enr-1", ResourceID: resourceID, EchoedFilters: v.echo}, nil
}

func (v *fakeVendor) GetEnrichmentStatus(_ context.Context, id string) (*instantly.EnrichmentStatus, error) {
	return &instantly.EnrichmentStatus{ResourceID: id, Exists: true}, nil
}

func (v *fakeVendor) GetEnrichmentHistory(context.Context, string) ([]instantly.Lead, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.history, nil
}

func (v *fakeVendor) ListLeads(_ context.Context, req instantly.ListLeadsRequest) (*instantly.LeadPage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var visible []instantly.Lead
	if req.CampaignID != "" {
		for _, l := range v.leads {
			if v.bound[strings.ToLower(l.Email)] == req.CampaignID {
				visible = append(visible, l)
			}
		}
	} else {
		v.listCalls++
		visible = v.leads
		if v.readyAfter <= 0 || v.listCalls < v.readyAfter {
			visible = v.leads[:min(v.partial, len(v.leads))]
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
	v.bulkReqs = append(v.bulkReqs, req)
	if v.createLeadsErr != nil {
		return nil, v.createLeadsErr
	}
	for _, l := range req.Leads {
		key := strings.ToLower(l.Email)
		if _, ok := v.bound[key]; ok {
			continue
		}
		v.bound[key] = l.CampaignID
	}
	return &instantly.JobHandle{JobID: v.jobID}, nil
}

func (v *fakeVendor) GetBackgroundJob(_ context.Context, id string) (*instantly.BackgroundJob, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.backgroundJobs++
	return &instantly.BackgroundJob{ID: id, Status: v.jobStatus}, nil
}

func (v *fakeVendor) ListAccounts(context.Context, int, *int) ([]instantly.Account, error) {
	return []instantly.Account{{Email: "sender@acme.io", Status: 1}}, nil
}

func (v *fakeVendor) boundCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.bound)
}

// fakeClock advances virtual time by exactly the requested duration on
// every After call.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	f.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

type stubFilters struct {
	f     filter.SearchFilter
	err   error
	calls int
}

func (s *stubFilters) GenerateFilters(context.Context, string, string) (filter.SearchFilter, error) {
	s.calls++
	return s.f, s.err
}

type stubCopy struct {
	vs    []model.CopyVariant
	err   error
	calls int
}

func (s *stubCopy) GenerateCopy(context.Context, string, string) ([]model.CopyVariant, error) {
	s.calls++
	return s.vs, s.err
}

func ctoFilter() filter.SearchFilter {
	return filter.SearchFilter{
		Title:         &filter.IncludeExclude{Include: []string{"CTO"}},
		EmployeeCount: []string{"0 - 25"},
	}
}

func twoVariants() []model.CopyVariant {
	return []model.CopyVariant{
		{Subject: "Quick question, {{firstName}}", Body: "Hi {{firstName}}, saw {{company}}.\n\n[Your Name]"},
		{Subject: "{{company}} and outbound", Body: "Hello {{firstName}}.\n\nBest,\n[Your Name]"},
	}
}

func testConfig() Config {
	return Config{
		SenderName:      "Dana",
		Poll:            enrichment.Config{Interval: 10 * time.Second, MaxWait: time.Minute},
		JobPollInterval: time.Second,
		JobPollAttempts: 3,
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}
