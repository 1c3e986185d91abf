package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/enrichment"
	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/metrics"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/oracle"
	"github.com/sells-group/outreach-cli/internal/reconcile"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

type outcome struct {
	status  model.PhaseStatus
	message string
	err     error
	meta    map[string]any
}

// generate runs copy and filter generation concurrently. Neither can fail
// the run; both fall back to fixed output. Terminal events are emitted in
// phase order once both are done.
func (r *run) generate(ctx context.Context) {
	copyPhase := r.begin(PhaseCopy, "Writing email copy")
	filterPhase := r.begin(PhaseFilters, "Building the lead search")

	var copyOut, filterOut outcome
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		copyOut = r.generateCopy(gCtx)
		return nil
	})
	g.Go(func() error {
		filterOut = r.generateFilters(gCtx)
		return nil
	})
	_ = g.Wait()

	r.end(copyPhase, copyOut.status, copyOut.message, copyOut.err, copyOut.meta)
	r.end(filterPhase, filterOut.status, filterOut.message, filterOut.err, filterOut.meta)
}

func (r *run) generateCopy(ctx context.Context) outcome {
	sender := r.req.SenderName
	if sender == "" {
		sender = r.p.cfg.SenderName
	}
	finish := func(vs []model.CopyVariant, out outcome) outcome {
		r.variants = oracle.WithSender(vs, sender)
		out.meta = map[string]any{"variants": len(r.variants)}
		return out
	}

	if len(r.req.CopyVariants) > 0 {
		if vs, err := oracle.ValidateVariants(r.req.CopyVariants); err == nil {
			return finish(vs, outcome{
				status:  model.PhaseCompleted,
				message: fmt.Sprintf("Using %d pre-approved variants", len(vs)),
			})
		}
		r.log.Warn("provision: pre-approved copy unusable, generating")
	}

	fallback := func(err error) outcome {
		metrics.OracleFallbacks.WithLabelValues("copy").Inc()
		return finish(oracle.FallbackCopy(r.req.URL, r.req.TargetAudience), outcome{
			status:  model.PhaseWarning,
			message: "Copy generation failed, using template copy",
			err:     err,
		})
	}
	if r.p.copyGen == nil {
		return fallback(eris.New("provision: no copy generator configured"))
	}
	vs, err := r.p.copyGen.GenerateCopy(ctx, r.req.URL, r.req.TargetAudience)
	if err == nil {
		vs, err = oracle.ValidateVariants(vs)
	}
	if err != nil {
		return fallback(err)
	}
	return finish(vs, outcome{
		status:  model.PhaseCompleted,
		message: fmt.Sprintf("Generated %d copy variants", len(vs)),
	})
}

func (r *run) generateFilters(ctx context.Context) outcome {
	fallback := func(err error) outcome {
		metrics.OracleFallbacks.WithLabelValues("filters").Inc()
		r.filter, _ = filter.Sanitize(filter.Default(r.req.TargetAudience))
		return outcome{
			status:  model.PhaseWarning,
			message: "Filter generation failed, using the default search: " + r.filter.Summary(),
			err:     err,
			meta:    map[string]any{"filters": r.filter.Summary()},
		}
	}
	if r.p.filters == nil {
		return fallback(eris.New("provision: no filter generator configured"))
	}
	f, err := r.p.filters.GenerateFilters(ctx, r.req.TargetAudience, r.req.URL)
	if err != nil {
		return fallback(err)
	}
	f, report := filter.Sanitize(f)
	if f.IsEmpty() {
		return fallback(eris.New("provision: generated filter is empty"))
	}
	r.filter = f
	meta := map[string]any{"filters": f.Summary()}
	if report.Changed() {
		meta["repaired"] = report
	}
	return outcome{
		status:  model.PhaseCompleted,
		message: "Search filters ready: " + f.Summary(),
		meta:    meta,
	}
}

// createCampaign creates the lead list (unless an existing enrichment
// resource is reused) and the campaign shell carrying the copy.
func (r *run) createCampaign(ctx context.Context) error {
	ph := r.begin(PhaseCampaign, "Creating campaign")

	name := r.req.CampaignName
	if name == "" {
		name = CampaignName(r.req.URL)
	}

	var listIDs []string
	switch {
	case r.req.EnrichmentID != "":
		r.listID = r.req.EnrichmentID
		listIDs = []string{r.listID}
	case r.p.cfg.Target == model.ResourceList:
		list, err := r.p.vendor.CreateLeadList(ctx, ListName(name))
		if err != nil {
			err = eris.Wrap(err, "provision: create lead list")
			r.end(ph, model.PhaseFailed, "Could not create the lead list", err, nil)
			return err
		}
		r.listID = list.ID
		listIDs = []string{list.ID}
	}
	r.summary.LeadListID = r.listID

	accounts := r.req.Accounts
	if len(accounts) == 0 {
		accounts = r.p.cfg.Accounts
	}
	variants := make([]instantly.Variant, len(r.variants))
	for i, v := range r.variants {
		variants[i] = instantly.Variant{Subject: v.Subject, Body: v.Body}
	}
	campaignReq := instantly.NewCampaignRequest(name, variants, instantly.CampaignOptions{
		Timezone:    r.p.cfg.Timezone,
		SendFrom:    r.p.cfg.SendFrom,
		SendTo:      r.p.cfg.SendTo,
		Accounts:    accounts,
		LeadListIDs: listIDs,
	})

	res, err := r.p.vendor.CreateCampaign(ctx, campaignReq)
	if err != nil {
		err = eris.Wrap(err, "provision: create campaign")
		r.end(ph, model.PhaseFailed, "Could not create the campaign", err, nil)
		return err
	}
	r.summary.CampaignID = res.ID
	r.summary.CampaignURL = instantly.CampaignURL(res.ID)
	r.log = r.log.With(zap.String("campaign_id", res.ID))
	r.end(ph, model.PhaseCompleted, fmt.Sprintf("Created campaign %q: %s", name, r.summary.CampaignURL), nil,
		map[string]any{"campaign_id": res.ID, "lead_list_id": r.listID})
	return nil
}

// submitEnrichment starts the lead search, or adopts an existing resource.
func (r *run) submitEnrichment(ctx context.Context) error {
	ph := r.begin(PhaseEnrichment, fmt.Sprintf("Searching for %d leads", r.req.LeadCount))

	job := &model.EnrichmentJob{
		CampaignID:   r.summary.CampaignID,
		UserID:       r.req.UserID,
		Requested:    r.req.LeadCount,
		ResourceType: r.p.cfg.Target,
		State:        model.EnrichmentPending,
	}

	if r.req.EnrichmentID != "" {
		job.ID = r.req.EnrichmentID
		job.ResourceID = r.req.EnrichmentID
		job.ResourceType = model.ResourceList
		r.job = job
		r.saveJob(ctx)
		r.end(ph, model.PhaseCompleted, "Reusing enrichment "+job.ResourceID, nil,
			map[string]any{"resource_id": job.ResourceID})
		return nil
	}

	enrichReq := instantly.EnrichmentRequest{
		SearchFilters:        r.filter,
		Limit:                r.req.LeadCount,
		WorkEmailEnrichment:  true,
		FullyEnrichedProfile: true,
		SkipRowsWithoutEmail: true,
	}
	if job.ResourceType == model.ResourceCampaign {
		enrichReq.ResourceID = r.summary.CampaignID
		enrichReq.ResourceType = instantly.ResourceKindCampaign
	} else {
		enrichReq.ResourceID = r.listID
		enrichReq.ResourceType = instantly.ResourceKindList
	}

	res, err := r.p.vendor.EnrichLeads(ctx, enrichReq)
	if err != nil {
		err = eris.Wrap(err, "provision: submit enrichment")
		r.end(ph, model.PhaseFailed, "Could not start the lead search", err, nil)
		return err
	}
	job.ID = res.ID
	job.ResourceID = res.ResourceID
	if job.ResourceID == "" {
		job.ResourceID = enrichReq.ResourceID
	}
	if job.ID == "" {
		job.ID = job.ResourceID
	}
	if job.ResourceType == model.ResourceList && r.listID == "" {
		r.listID = job.ResourceID
		r.summary.LeadListID = job.ResourceID
	}
	r.job = job
	r.saveJob(ctx)

	meta := map[string]any{"job_id": job.ID, "resource_id": job.ResourceID}
	if res.FiltersDropped() {
		r.end(ph, model.PhaseWarning,
			"Search submitted but the vendor reported no effective filters; check the search before sending",
			eris.New("provision: vendor dropped submitted filters"), meta)
		return nil
	}
	r.end(ph, model.PhaseCompleted, "Lead search submitted", nil, meta)
	return nil
}

func (r *run) saveJob(ctx context.Context) {
	if r.p.store == nil || r.job == nil || r.job.ID == "" {
		return
	}
	if err := r.p.store.SaveEnrichmentJob(ctx, r.job); err != nil {
		r.log.Warn("provision: save enrichment job failed", zap.Error(err))
	}
}

// poll waits for the search to deliver leads. Running out of time is a
// warning: the job stays valid for a follow-up.
func (r *run) poll(ctx context.Context) {
	ph := r.begin(PhasePoll, fmt.Sprintf("Waiting for %d leads", r.job.Requested))

	opts := []enrichment.Option{enrichment.WithObserver(func(o enrichment.Observation) {
		r.log.Debug("provision: poll tick",
			zap.Int("attempt", o.Attempt), zap.Int("count", o.Count), zap.String("state", string(o.State)))
	})}
	if r.p.clock != nil {
		opts = append(opts, enrichment.WithClock(r.p.clock))
	}
	poller := enrichment.NewPoller(enrichment.VendorCounter{Client: r.p.vendor}, r.p.cfg.Poll, opts...)

	res, err := poller.Poll(ctx, r.job)
	meta := map[string]any{"count": res.Count, "attempts": res.Attempts, "state": string(res.State)}
	defer func() {
		if r.p.store != nil {
			if uerr := r.p.store.UpdateEnrichmentJob(ctx, r.job); uerr != nil {
				r.log.Warn("provision: update enrichment job failed", zap.Error(uerr))
			}
		}
	}()

	switch {
	case err != nil:
		r.end(ph, model.PhaseWarning, "Could not wait for leads", err, meta)
	case res.State == model.EnrichmentComplete:
		r.end(ph, model.PhaseCompleted, fmt.Sprintf("Found %d leads", res.Count), nil, meta)
	case res.State == model.EnrichmentFailed:
		r.end(ph, model.PhaseWarning, "Lead search status unavailable; it may still be processing", res.LastErr, meta)
	default:
		r.end(ph, model.PhaseWarning,
			fmt.Sprintf("Lead search still processing: %d of %d leads so far", res.Count, r.job.Requested), nil, meta)
	}
}

// bind submits the leads found so far to the campaign.
func (r *run) bind(ctx context.Context) {
	ph := r.begin(PhaseBind, "Adding leads to the campaign")

	if r.job.ResourceType == model.ResourceCampaign {
		leads, err := FetchCampaignLeads(ctx, r.p.vendor, r.summary.CampaignID, r.job.Requested)
		if err != nil {
			r.end(ph, model.PhaseWarning, "Could not list campaign leads", err, nil)
			return
		}
		r.bound = leads
		r.end(ph, model.PhaseCompleted, fmt.Sprintf("%d leads were enriched straight into the campaign", len(leads)), nil,
			map[string]any{"bound": len(leads)})
		return
	}

	leads, err := FetchLeads(ctx, r.p.vendor, r.listID, r.job.Requested)
	if err != nil {
		r.end(ph, model.PhaseWarning, "Could not fetch leads from the search", err, nil)
		return
	}
	if len(leads) == 0 {
		r.end(ph, model.PhaseWarning, "No leads to add yet; run a follow-up once the search finishes", nil,
			map[string]any{"bound": 0})
		return
	}

	b, err := Bind(ctx, r.p.vendor, leads, r.summary.CampaignID, r.listID, BindOptions{
		SkipIfInWorkspace: r.p.cfg.SkipIfInWorkspace,
		Clock:             r.p.clock,
		JobPollInterval:   r.p.cfg.JobPollInterval,
		JobPollAttempts:   r.p.cfg.JobPollAttempts,
	})
	meta := map[string]any{"submitted": len(b.Leads), "duplicates": b.Duplicates, "skipped": b.Skipped}
	if b.JobID != "" {
		meta["background_job_id"] = b.JobID
	}
	if err != nil {
		r.end(ph, model.PhaseWarning, "Adding leads failed", err, meta)
		return
	}
	r.bound = b.Leads
	metrics.LeadsBound.Add(float64(len(b.Leads)))
	if b.JobID != "" && !b.Verified {
		r.end(ph, model.PhaseWarning,
			fmt.Sprintf("Submitted %d leads; the vendor is still importing them", len(b.Leads)), nil, meta)
		return
	}
	r.end(ph, model.PhaseCompleted, fmt.Sprintf("Added %d leads", len(b.Leads)), nil, meta)
}

// verify looks one bound lead up and checks it belongs to the campaign.
func (r *run) verify(ctx context.Context) {
	ph := r.begin(PhaseVerify, "Verifying lead assignment")

	if len(r.bound) == 0 {
		r.end(ph, model.PhaseCompleted, "Skipped: no leads to verify", nil, nil)
		return
	}
	sample := r.bound[0].Email
	found, err := r.p.vendor.SearchCampaignsByContact(ctx, sample)
	if err != nil {
		warn := &PartialBindingWarning{CampaignID: r.summary.CampaignID, Email: sample, Reason: err.Error()}
		r.end(ph, model.PhaseWarning, "Could not verify lead assignment", warn, nil)
		return
	}
	for _, c := range found {
		if c.ID == r.summary.CampaignID {
			r.end(ph, model.PhaseCompleted, "Leads are assigned to the campaign", nil, map[string]any{"sample": sample})
			return
		}
	}
	warn := &PartialBindingWarning{CampaignID: r.summary.CampaignID, Email: sample, Reason: "not found on campaign"}
	r.end(ph, model.PhaseWarning, "Lead assignment not visible yet; it may still be propagating", warn,
		map[string]any{"sample": sample})
}

func (r *run) activate(ctx context.Context) {
	ph := r.begin(PhaseActivate, "Activating campaign")
	if err := r.p.vendor.ActivateCampaign(ctx, r.summary.CampaignID); err != nil {
		r.end(ph, model.PhaseWarning, "Campaign left in draft; activate it manually", err, nil)
		return
	}
	r.active = true
	r.end(ph, model.PhaseCompleted, "Campaign is live", nil, nil)
}

// persist records the campaign. Failure here does not affect the vendor
// campaign.
func (r *run) persist(ctx context.Context) {
	ph := r.begin(PhasePersist, "Saving campaign")
	if r.p.store == nil {
		r.end(ph, model.PhaseCompleted, "Skipped: no store configured", nil, nil)
		return
	}

	status := model.CampaignStatusDraft
	if r.active {
		status = model.CampaignStatusActive
	}
	c := &model.Campaign{
		ID:             r.summary.CampaignID,
		UserID:         r.req.UserID,
		Name:           r.req.CampaignName,
		URL:            r.req.URL,
		TargetAudience: r.req.TargetAudience,
		CopyVariants:   r.variants,
		LeadListID:     r.listID,
		LeadCount:      len(r.bound),
		Status:         status,
	}
	if c.Name == "" {
		c.Name = CampaignName(r.req.URL)
	}
	if r.job != nil {
		c.EnrichmentJobID = r.job.ID
	}
	if err := r.p.store.SaveCampaign(ctx, c); err != nil {
		r.end(ph, model.PhaseWarning, "Could not save the campaign record", err, nil)
		return
	}
	if len(r.bound) > 0 {
		if _, err := r.p.store.SaveLeads(ctx, c.ID, r.bound); err != nil {
			r.end(ph, model.PhaseWarning, "Saved the campaign but not its leads", err, nil)
			return
		}
	}
	r.end(ph, model.PhaseCompleted, "Campaign saved", nil, nil)
}

// BindOptions tunes Bind.
type BindOptions struct {
	SkipIfInWorkspace bool
	Clock             enrichment.Clock
	JobPollInterval   time.Duration
	JobPollAttempts   int
}

// BindResult describes one bulk create.
type BindResult struct {
	Leads      []model.Lead
	Duplicates int
	Skipped    int
	JobID      string
	// Verified is true when the vendor's background job reported success.
	Verified bool
}

// Bind reconciles leads into a bulk create for campaignID and submits it.
// When the vendor answers with a background job, the job is polled a
// bounded number of times; an unfinished job is not an error.
func Bind(ctx context.Context, vendor instantly.Client, leads []model.Lead, campaignID, listID string, opts BindOptions) (BindResult, error) {
	if opts.JobPollInterval <= 0 {
		opts.JobPollInterval = 3 * time.Second
	}
	if opts.JobPollAttempts <= 0 {
		opts.JobPollAttempts = 40
	}
	rec := reconcile.Build(leads, campaignID, listID, reconcile.Options{SkipIfInWorkspace: opts.SkipIfInWorkspace})
	res := BindResult{Duplicates: rec.Duplicates, Skipped: rec.Skipped}
	if len(rec.Request.Leads) == 0 {
		return res, nil
	}

	handle, err := vendor.CreateLeads(ctx, rec.Request)
	if err != nil {
		return res, eris.Wrapf(err, "provision: bind %d leads", len(rec.Request.Leads))
	}
	byKey := make(map[string]model.Lead, len(leads))
	for _, l := range leads {
		if _, ok := byKey[l.Key()]; !ok {
			byKey[l.Key()] = l
		}
	}
	res.Leads = make([]model.Lead, 0, len(rec.Request.Leads))
	for _, nl := range rec.Request.Leads {
		l := byKey[strings.ToLower(nl.Email)]
		l.Email = nl.Email
		l.CampaignID = campaignID
		l.SourceListID = nl.CustomVariables["source_list_id"]
		res.Leads = append(res.Leads, l)
	}

	if handle == nil || handle.JobID == "" {
		res.Verified = true
		return res, nil
	}
	res.JobID = handle.JobID
	ok, err := enrichment.WaitJob(ctx, opts.Clock, opts.JobPollInterval, opts.JobPollAttempts,
		enrichment.VendorJobCheck(vendor, handle.JobID))
	if err != nil {
		return res, eris.Wrapf(err, "provision: background job %s", handle.JobID)
	}
	res.Verified = ok
	return res, nil
}
