package provision

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/metrics"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/reconcile"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// DefaultPreviewLimit is how many leads a preview shows when no limit is
// given.
const DefaultPreviewLimit = 10

// SearchRequest starts a lead search with no campaign. The resulting
// enrichment id can be reviewed with PreviewLeads and later passed as
// Request.EnrichmentID.
type SearchRequest struct {
	URL            string `json:"url" validate:"omitempty,url"`
	TargetAudience string `json:"target_audience" validate:"required"`
	LeadCount      int    `json:"lead_count,omitempty" validate:"gte=0,lte=1000"`
	UserID         string `json:"user_id,omitempty"`
}

// SearchStart describes a submitted search.
type SearchStart struct {
	// EnrichmentID is the lead list the search fills.
	EnrichmentID     string              `json:"enrichment_id"`
	JobID            string              `json:"job_id"`
	ListName         string              `json:"list_name"`
	Filters          filter.SearchFilter `json:"search_filters"`
	FiltersDefaulted bool                `json:"filters_defaulted"`
	FiltersDropped   bool                `json:"filters_dropped"`
}

// SearchListName names the list a standalone search creates.
func SearchListName(audience string) string {
	audience = strings.TrimSpace(audience)
	if r := []rune(audience); len(r) > 50 {
		audience = string(r[:50])
	}
	return "ICP Leads - " + audience
}

// Search builds filters for the audience and submits a lead search into a
// new list. The search is recorded for its user when a store is
// configured; it is never picked up by a follow-up until a campaign is
// provisioned on it.
func (p *Provisioner) Search(ctx context.Context, req SearchRequest) (*SearchStart, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.TargetAudience = strings.TrimSpace(req.TargetAudience)
	if err := validate.Struct(req); err != nil {
		return nil, eris.Wrap(err, "provision: invalid search")
	}
	if req.LeadCount <= 0 {
		req.LeadCount = p.cfg.DefaultLeadCount
	}
	log := zap.L().With(zap.String("audience", req.TargetAudience), zap.Int("lead_count", req.LeadCount))

	f, defaulted := p.searchFilter(ctx, req.TargetAudience, req.URL)
	out := &SearchStart{
		ListName:         SearchListName(req.TargetAudience),
		Filters:          f,
		FiltersDefaulted: defaulted,
	}

	res, err := p.vendor.EnrichLeads(ctx, instantly.EnrichmentRequest{
		SearchFilters:        f,
		Limit:                req.LeadCount,
		WorkEmailEnrichment:  true,
		FullyEnrichedProfile: true,
		SkipRowsWithoutEmail: true,
		ListName:             out.ListName,
	})
	if err != nil {
		return nil, eris.Wrap(err, "provision: submit search")
	}
	out.EnrichmentID = res.ResourceID
	if out.EnrichmentID == "" {
		out.EnrichmentID = res.ID
	}
	if out.EnrichmentID == "" {
		return nil, eris.New("provision: search returned no resource id")
	}
	out.JobID = res.ID
	out.FiltersDropped = res.FiltersDropped()
	if out.FiltersDropped {
		log.Warn("provision: vendor reported no effective filters for search",
			zap.String("enrichment_id", out.EnrichmentID))
	}

	if p.store != nil {
		job := &model.EnrichmentJob{
			ID:           out.EnrichmentID,
			UserID:       req.UserID,
			ResourceID:   out.EnrichmentID,
			ResourceType: model.ResourceList,
			Requested:    req.LeadCount,
			State:        model.EnrichmentPending,
		}
		if err := p.store.SaveEnrichmentJob(ctx, job); err != nil {
			log.Warn("provision: record search failed", zap.Error(err))
		}
	}
	log.Info("provision: search submitted", zap.String("enrichment_id", out.EnrichmentID))
	return out, nil
}

// searchFilter asks the filter oracle and falls back to the default search.
// The second result reports the fallback.
func (p *Provisioner) searchFilter(ctx context.Context, audience, url string) (filter.SearchFilter, bool) {
	fallback := func(err error) (filter.SearchFilter, bool) {
		metrics.OracleFallbacks.WithLabelValues("filters").Inc()
		zap.L().Warn("provision: filter generation failed, using default search", zap.Error(err))
		f, _ := filter.Sanitize(filter.Default(audience))
		return f, true
	}
	if p.filters == nil {
		return fallback(eris.New("provision: no filter generator configured"))
	}
	f, err := p.filters.GenerateFilters(ctx, audience, url)
	if err != nil {
		return fallback(err)
	}
	f, _ = filter.Sanitize(f)
	if f.IsEmpty() {
		return fallback(eris.New("provision: generated filter is empty"))
	}
	return f, false
}

// LeadPreview is the reviewable state of a search.
type LeadPreview struct {
	EnrichmentID string       `json:"enrichment_id"`
	Leads        []model.Lead `json:"leads"`
	// Ready counts leads with a verified email.
	Ready int `json:"total_count"`
	// Enriching counts leads found but still without an email.
	Enriching int `json:"enriching_count"`
}

// PreviewLeads lists up to limit leads of a search's list. Only leads that
// already carry an email are returned; the rest are counted as enriching.
func PreviewLeads(ctx context.Context, vendor instantly.Client, listID string, limit int) (*LeadPreview, error) {
	if listID == "" {
		return nil, eris.New("provision: preview leads: empty list id")
	}
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	limit = min(limit, maxFetchLeads)

	items, err := pageLeads(ctx, vendor, instantly.ListLeadsRequest{ListID: listID}, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "provision: preview leads of %s", listID)
	}
	out := &LeadPreview{EnrichmentID: listID, Leads: []model.Lead{}}
	for _, l := range items {
		if !hasEmail(l.Email) {
			out.Enriching++
			continue
		}
		out.Leads = append(out.Leads, reconcile.FromVendor(l, listID))
	}
	out.Ready = len(out.Leads)
	return out, nil
}

func hasEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && !strings.EqualFold(email, "N/A")
}
