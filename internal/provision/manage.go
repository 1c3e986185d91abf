package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = eris.New("provision: invalid status transition")

// Manager operates on campaigns after they have been provisioned.
type Manager struct {
	vendor instantly.Client
	store  store.Store
}

// NewManager creates a Manager.
func NewManager(vendor instantly.Client, st store.Store) *Manager {
	return &Manager{vendor: vendor, store: st}
}

// RefreshAnalytics pulls the vendor counters of a campaign, stores them and
// returns the updated record.
func (m *Manager) RefreshAnalytics(ctx context.Context, id string) (*model.Campaign, error) {
	raw, err := m.vendor.GetCampaignAnalytics(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "provision: analytics of %s", id)
	}
	a := model.Analytics{
		Sent:    raw.Sent,
		Opened:  raw.Opened,
		Clicked: raw.Clicked,
		Replied: raw.Replied,
		Bounced: raw.Bounced,
	}.WithRates()

	if err := m.store.UpdateStats(ctx, id, a); err != nil {
		return nil, err
	}
	zap.L().Info("provision: analytics refreshed",
		zap.String("campaign_id", id),
		zap.Int("sent", a.Sent),
		zap.Float64("open_rate", a.OpenRate),
		zap.Float64("reply_rate", a.ReplyRate),
	)
	return m.store.GetCampaign(ctx, id)
}

// RefreshAll refreshes every campaign of a user. Failures are logged and
// skipped; the number refreshed is returned.
func (m *Manager) RefreshAll(ctx context.Context, userID string) (int, error) {
	campaigns, err := m.store.GetCampaigns(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range campaigns {
		if _, err := m.RefreshAnalytics(ctx, c.ID); err != nil {
			zap.L().Warn("provision: analytics refresh failed", zap.String("campaign_id", c.ID), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// Pause pauses a campaign vendor-side and records the new status.
func (m *Manager) Pause(ctx context.Context, id string) (*model.Campaign, error) {
	return m.transition(ctx, id, model.CampaignStatusPaused, m.vendor.PauseCampaign)
}

// Activate starts or resumes sending.
func (m *Manager) Activate(ctx context.Context, id string) (*model.Campaign, error) {
	return m.transition(ctx, id, model.CampaignStatusActive, m.vendor.ActivateCampaign)
}

func (m *Manager) transition(ctx context.Context, id string, next model.CampaignStatus,
	call func(context.Context, string) error) (*model.Campaign, error) {
	c, err := m.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(next) {
		return nil, eris.Wrapf(ErrInvalidTransition, "%s -> %s", c.Status, next)
	}
	if err := call(ctx, id); err != nil {
		return nil, eris.Wrapf(err, "provision: set %s %s", id, next)
	}
	if err := m.store.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	c.Status = next
	return c, nil
}

// Delete removes a campaign vendor-side and from the store. A campaign the
// vendor no longer knows is still removed locally.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.vendor.DeleteCampaign(ctx, id); err != nil {
		var perm *instantly.PermanentVendorError
		if !errors.As(err, &perm) || perm.StatusCode != http.StatusNotFound {
			return eris.Wrapf(err, "provision: delete %s", id)
		}
		zap.L().Warn("provision: campaign already gone vendor-side", zap.String("campaign_id", id))
	}
	if err := m.store.DeleteCampaign(ctx, id); err != nil && !store.IsNotFound(err) {
		return err
	}
	return nil
}

// Leads returns a campaign's stored leads, or fetches them from its lead
// list when none were recorded.
func (m *Manager) Leads(ctx context.Context, id string) ([]model.Lead, error) {
	leads, err := m.store.ListLeads(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(leads) > 0 {
		return leads, nil
	}
	c, err := m.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.LeadListID == "" {
		return nil, nil
	}
	return FetchLeads(ctx, m.vendor, c.LeadListID, 0)
}

// Describe renders a one-line status of c for logs and the CLI.
func Describe(c *model.Campaign) string {
	return fmt.Sprintf("%s [%s] sent=%d open=%.2f%% reply=%.2f%% leads=%d",
		c.Name, c.Status, c.Sent, c.OpenRate, c.ReplyRate, c.LeadCount)
}
