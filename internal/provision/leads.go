package provision

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/reconcile"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

const (
	pageSize      = 100
	maxFetchLeads = 1000
)

// FetchLeads returns up to limit leads of a list. The enrichment history is
// tried first because it carries the enrichment payload; an empty or failed
// history falls back to paging the list itself.
func FetchLeads(ctx context.Context, vendor instantly.Client, listID string, limit int) ([]model.Lead, error) {
	if listID == "" {
		return nil, eris.New("provision: fetch leads: empty list id")
	}
	if limit <= 0 || limit > maxFetchLeads {
		limit = maxFetchLeads
	}

	history, err := vendor.GetEnrichmentHistory(ctx, listID)
	if err != nil {
		zap.L().Debug("provision: enrichment history unavailable, listing leads",
			zap.String("list_id", listID), zap.Error(err))
	}
	if len(history) > 0 {
		if len(history) > limit {
			history = history[:limit]
		}
		return reconcile.FromVendorAll(history, listID), nil
	}

	items, err := pageLeads(ctx, vendor, instantly.ListLeadsRequest{ListID: listID}, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "provision: list leads of %s", listID)
	}
	return reconcile.FromVendorAll(items, listID), nil
}

// FetchCampaignLeads returns up to limit leads already on a campaign.
func FetchCampaignLeads(ctx context.Context, vendor instantly.Client, campaignID string, limit int) ([]model.Lead, error) {
	if limit <= 0 || limit > maxFetchLeads {
		limit = maxFetchLeads
	}
	items, err := pageLeads(ctx, vendor, instantly.ListLeadsRequest{CampaignID: campaignID}, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "provision: list leads of campaign %s", campaignID)
	}
	return reconcile.FromVendorAll(items, ""), nil
}

func pageLeads(ctx context.Context, vendor instantly.Client, req instantly.ListLeadsRequest, limit int) ([]instantly.Lead, error) {
	var out []instantly.Lead
	for len(out) < limit {
		req.Limit = min(pageSize, limit-len(out))
		page, err := vendor.ListLeads(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Next == "" || len(page.Items) == 0 {
			break
		}
		req.StartingAfter = page.Next
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
