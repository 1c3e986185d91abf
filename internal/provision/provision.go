// Package provision turns a website and a target audience into a live
// outreach campaign with leads bound to it.
package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/enrichment"
	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/metrics"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/oracle"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// Phase step ids, in execution order.
const (
	PhaseCopy       = "1_copy"
	PhaseFilters    = "2_filters"
	PhaseCampaign   = "3_campaign"
	PhaseEnrichment = "4_enrichment"
	PhasePoll       = "5_poll"
	PhaseBind       = "6_bind"
	PhaseVerify     = "7_verify"
	PhaseActivate   = "8_activate"
	PhasePersist    = "9_persist"
)

// Phases lists every step id in order.
var Phases = []string{
	PhaseCopy, PhaseFilters, PhaseCampaign, PhaseEnrichment, PhasePoll,
	PhaseBind, PhaseVerify, PhaseActivate, PhasePersist,
}

// DefaultLeadCount is used when a request does not name one.
const DefaultLeadCount = 3

// Request is one provisioning run's input.
type Request struct {
	URL            string `json:"url" yaml:"url" validate:"required"`
	TargetAudience string `json:"target_audience" yaml:"target_audience" validate:"required"`
	LeadCount      int    `json:"lead_count,omitempty" yaml:"lead_count" validate:"gte=0,lte=1000"`
	UserID         string `json:"user_id,omitempty" yaml:"user_id"`
	CampaignName   string `json:"campaign_name,omitempty" yaml:"campaign_name"`
	SenderName     string `json:"sender_name,omitempty" yaml:"sender_name"`
	// CopyVariants is pre-approved copy; generation is skipped when set.
	CopyVariants []model.CopyVariant `json:"copy_variants,omitempty" yaml:"copy_variants" validate:"omitempty,max=3,dive"`
	// EnrichmentID reuses an existing enrichment resource instead of
	// submitting a new search.
	EnrichmentID string   `json:"enrichment_id,omitempty" yaml:"enrichment_id"`
	Accounts     []string `json:"email_accounts,omitempty" yaml:"email_accounts" validate:"omitempty,dive,email"`
}

// Config holds provisioning defaults and budgets.
type Config struct {
	DefaultLeadCount int
	SenderName       string
	Timezone         string
	SendFrom         string
	SendTo           string
	Accounts         []string
	// Target selects where enrichment results land. Leads enriched into a
	// list are bound in phase 6; leads enriched straight into the campaign
	// need no binding.
	Target            model.ResourceType
	SkipIfInWorkspace bool
	Poll              enrichment.Config
	JobPollInterval   time.Duration
	JobPollAttempts   int
}

func (c Config) withDefaults() Config {
	if c.DefaultLeadCount <= 0 {
		c.DefaultLeadCount = DefaultLeadCount
	}
	if c.Target == "" {
		c.Target = model.ResourceList
	}
	if c.JobPollInterval <= 0 {
		c.JobPollInterval = 3 * time.Second
	}
	if c.JobPollAttempts <= 0 {
		c.JobPollAttempts = 40
	}
	return c
}

// PartialBindingWarning reports leads that were submitted but could not be
// confirmed on the campaign. Binding may still be propagating vendor-side.
type PartialBindingWarning struct {
	CampaignID string
	Email      string
	Reason     string
}

func (w *PartialBindingWarning) Error() string {
	return fmt.Sprintf("provision: lead %s not confirmed on campaign %s: %s", w.Email, w.CampaignID, w.Reason)
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithClock replaces the wall clock used for polling.
func WithClock(c enrichment.Clock) Option {
	return func(p *Provisioner) { p.clock = c }
}

// WithStore persists campaigns, jobs and bound leads.
func WithStore(s store.Store) Option {
	return func(p *Provisioner) { p.store = s }
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(p *Provisioner) { p.newID = fn }
}

// Provisioner runs the nine provisioning phases. Independent runs share
// nothing mutable and may execute concurrently.
type Provisioner struct {
	vendor  instantly.Client
	filters oracle.FilterOracle
	copyGen oracle.CopyOracle
	store   store.Store
	cfg     Config
	clock   enrichment.Clock
	newID   func() string
}

// New creates a Provisioner. Either oracle may be nil, in which case its
// fallback output is used.
func New(vendor instantly.Client, filters oracle.FilterOracle, copyGen oracle.CopyOracle, cfg Config, opts ...Option) *Provisioner {
	p := &Provisioner{
		vendor:  vendor,
		filters: filters,
		copyGen: copyGen,
		cfg:     cfg.withDefaults(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest checks r for missing or malformed fields.
func ValidateRequest(r Request) error {
	if err := validate.Struct(r); err != nil {
		return eris.Wrap(err, "provision: invalid request")
	}
	return nil
}

// CampaignName is the name a campaign for url gets when none is given.
func CampaignName(url string) string {
	return "Launch - " + strings.TrimSpace(url)
}

// ListName is the name of the lead list created for a campaign.
func ListName(campaignName string) string {
	return "Leads for " + campaignName
}

// Run provisions one campaign, emitting progress to em. The summary is
// always returned; the error is non-nil only when the run failed before a
// usable campaign existed. Once the campaign shell exists the remaining
// phases ignore cancellation of ctx so the campaign is never left
// half-provisioned.
func (p *Provisioner) Run(ctx context.Context, req Request, em progress.Emitter) (*model.RunSummary, error) {
	if em == nil {
		em = progress.Discard
	}
	req.URL = strings.TrimSpace(req.URL)
	req.TargetAudience = strings.TrimSpace(req.TargetAudience)
	if req.LeadCount <= 0 {
		req.LeadCount = p.cfg.DefaultLeadCount
	}

	r := &run{
		p:   p,
		req: req,
		em:  em,
		summary: &model.RunSummary{
			RunID:  p.newID(),
			Phases: make([]model.PhaseResult, 0, len(Phases)),
		},
	}
	r.log = zap.L().With(zap.String("run_id", r.summary.RunID), zap.String("url", req.URL))
	r.log.Info("provision: starting run", zap.String("audience", req.TargetAudience), zap.Int("lead_count", req.LeadCount))

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	if err := ValidateRequest(req); err != nil {
		return r.fail(err)
	}

	r.generate(ctx)

	if err := r.createCampaign(ctx); err != nil {
		return r.fail(err)
	}
	// The campaign exists from here on.
	ctx = context.WithoutCancel(ctx)

	if err := r.submitEnrichment(ctx); err != nil {
		return r.fail(err)
	}

	r.poll(ctx)
	r.bind(ctx)
	r.verify(ctx)
	r.activate(ctx)
	r.persist(ctx)

	return r.done(), nil
}

// run is the state of one provisioning run.
type run struct {
	p   *Provisioner
	req Request
	em  progress.Emitter
	log *zap.Logger

	summary  *model.RunSummary
	variants []model.CopyVariant
	filter   filter.SearchFilter
	listID   string
	job      *model.EnrichmentJob
	bound    []model.Lead
	active   bool
	caveats  []string
}

// phase tracks one step between its in_progress and terminal events.
type phase struct {
	name  string
	start time.Time
}

func (r *run) begin(name, message string) phase {
	r.em.Emit(progress.Event{Step: name, Status: progress.StatusInProgress, Message: message})
	return phase{name: name, start: time.Now()}
}

// end emits the terminal event of ph and records its result. A warning adds
// a caveat to the run.
func (r *run) end(ph phase, status model.PhaseStatus, message string, err error, meta map[string]any) {
	d := time.Since(ph.start)
	res := model.PhaseResult{Name: ph.name, Status: status, Duration: d, Message: message, Metadata: meta}

	var logPayload any
	if err != nil {
		res.Error = err.Error()
		logPayload = map[string]any{"error": err.Error()}
	} else if len(meta) > 0 {
		logPayload = meta
	}

	fields := []zap.Field{zap.String("phase", ph.name), zap.Duration("duration", d)}
	switch status {
	case model.PhaseFailed:
		r.log.Error("provision: phase failed", append(fields, zap.Error(err))...)
	case model.PhaseWarning:
		r.caveats = append(r.caveats, ph.name)
		r.log.Warn("provision: phase degraded", append(fields, zap.String("message", message), zap.Error(err))...)
	default:
		r.log.Info("provision: phase complete", fields...)
	}

	r.summary.Phases = append(r.summary.Phases, res)
	metrics.ObservePhase(ph.name, string(status), d)
	r.em.Emit(progress.Event{Step: ph.name, Status: progress.Status(status), Message: message, Log: logPayload})
}

func (r *run) snapshot() *model.RunSummary {
	s := *r.summary
	s.Phases = append([]model.PhaseResult(nil), r.summary.Phases...)
	s.Variants = append([]model.CopyVariant(nil), r.variants...)
	s.LeadCount = len(r.bound)
	if r.job != nil {
		s.EnrichmentJobID = r.job.ID
		s.EnrichmentState = r.job.State
	}
	return &s
}

// fail ends the run with an error event. Whatever ids exist are kept in the
// summary for manual recovery.
func (r *run) fail(err error) (*model.RunSummary, error) {
	r.summary.Outcome = model.RunFailed
	r.summary.Message = "Provisioning failed: " + err.Error()
	if r.summary.CampaignID != "" {
		r.summary.Message += fmt.Sprintf(" (campaign %s left in draft: %s)", r.summary.CampaignID, r.summary.CampaignURL)
	}
	s := r.snapshot()
	metrics.RunsTotal.WithLabelValues(string(s.Outcome)).Inc()
	r.log.Error("provision: run failed", zap.String("campaign_id", s.CampaignID), zap.Error(err))
	r.em.Emit(progress.Event{Step: progress.StepError, Status: progress.StatusError, Message: s.Message, Data: s})
	return s, err
}

func (r *run) done() *model.RunSummary {
	status := progress.StatusCompleted
	r.summary.Outcome = model.RunCompleted
	r.summary.Message = fmt.Sprintf("Campaign ready with %d leads: %s", len(r.bound), r.summary.CampaignURL)
	if len(r.caveats) > 0 {
		status = progress.StatusWarning
		r.summary.Outcome = model.RunCompletedWithCaveats
		r.summary.Message = fmt.Sprintf("Campaign created with %d leads, needs attention (%s): %s",
			len(r.bound), strings.Join(r.caveats, ", "), r.summary.CampaignURL)
	}
	s := r.snapshot()
	metrics.RunsTotal.WithLabelValues(string(s.Outcome)).Inc()
	r.log.Info("provision: run finished",
		zap.String("outcome", string(s.Outcome)),
		zap.String("campaign_id", s.CampaignID),
		zap.Int("lead_count", s.LeadCount),
	)
	r.em.Emit(progress.Event{Step: progress.StepDone, Status: status, Message: s.Message, Data: s})
	return s
}
