package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/oracle"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/provision"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

const maxBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// validationMessage lists the failing fields of a validation error.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// fail maps err to a status code.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *instantly.AuthError
	var permErr *instantly.PermanentVendorError
	var transErr *instantly.TransientVendorError
	switch {
	case store.IsNotFound(err):
		respondError(w, http.StatusNotFound, "not found")
	case eris.Is(err, provision.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &authErr):
		respondError(w, http.StatusBadGateway, "vendor rejected credentials")
	case errors.As(err, &permErr), errors.As(err, &transErr):
		respondError(w, http.StatusBadGateway, "vendor error")
	default:
		zap.L().Error("server: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (provision.Request, bool) {
	var req provision.Request
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if uid := UserID(r.Context()); uid != "" {
		req.UserID = uid
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return req, false
	}
	if req.EnrichmentID != "" && !s.ownsList(w, r, req.EnrichmentID) {
		return req, false
	}
	return req, true
}

// ownsList reports whether the caller may read listID. Lists of other
// users answer 404, like their campaigns.
func (s *Server) ownsList(w http.ResponseWriter, r *http.Request, listID string) bool {
	uid := UserID(r.Context())
	if uid == "" || s.deps.Store == nil {
		return true
	}
	owner, err := s.deps.Store.LeadListOwner(r.Context(), listID)
	if err != nil {
		fail(w, r, err)
		return false
	}
	if owner != "" && owner != uid {
		respondError(w, http.StatusNotFound, "not found")
		return false
	}
	return true
}

// queryLimit parses the optional non-negative limit query parameter.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// provisionStream runs a provisioning request and streams its progress as
// server-sent events. The run is detached from the request: a client that
// goes away stops receiving events but the run carries on.
func (s *Server) provisionStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	rep := progress.NewReporter()
	defer rep.Abandon()

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer rep.Close()
		if _, err := s.deps.Provisioner.Run(context.WithoutCancel(ctx), req, rep); err != nil {
			zap.L().Warn("server: provisioning failed", zap.String("url", req.URL), zap.Error(err))
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("server: client disconnected, run continues", zap.String("url", req.URL))
			return
		case e, ok := <-rep.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data) //nolint:errcheck
			flusher.Flush()
			if e.Terminal() {
				return
			}
		}
	}
}

// provisionSync runs a provisioning request and answers with its summary.
func (s *Server) provisionSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	s.runs.Add(1)
	defer s.runs.Done()

	summary, err := s.deps.Provisioner.Run(context.WithoutCancel(r.Context()), req, progress.Discard)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, summary)
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.deps.Store.GetCampaigns(r.Context(), UserID(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}
	respondJSON(w, http.StatusOK, campaigns)
}

// campaign loads the {id} campaign, hiding campaigns of other users.
func (s *Server) campaign(w http.ResponseWriter, r *http.Request) (*model.Campaign, bool) {
	c, err := s.deps.Store.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	if uid := UserID(r.Context()); uid != "" && c.UserID != "" && c.UserID != uid {
		respondError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return c, true
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) campaignAnalytics(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	updated, err := s.deps.Manager.RefreshAnalytics(r.Context(), c.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) pauseCampaign(w http.ResponseWriter, r *http.Request) {
	s.changeStatus(w, r, s.deps.Manager.Pause)
}

func (s *Server) activateCampaign(w http.ResponseWriter, r *http.Request) {
	s.changeStatus(w, r, s.deps.Manager.Activate)
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*model.Campaign, error)) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	updated, err := op(r.Context(), c.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	if err := s.deps.Manager.Delete(r.Context(), c.ID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	listID := chi.URLParam(r, "listID")
	if !s.ownsList(w, r, listID) {
		return
	}
	leads, err := provision.FetchLeads(r.Context(), s.deps.Vendor, listID, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Store.GetUserStats(r.Context(), UserID(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type icpRequest struct {
	URL string `json:"url" validate:"required,url"`
}

func (s *Server) suggestICPs(w http.ResponseWriter, r *http.Request) {
	var req icpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	icps, fallback := oracle.SuggestOrFallback(r.Context(), s.deps.ICP, req.URL)
	respondJSON(w, http.StatusOK, map[string]any{"icps": icps, "fallback": fallback})
}

type previewRequest struct {
	Variants   []model.CopyVariant `json:"variants" validate:"required,min=1,max=3,dive"`
	Lead       *model.Lead         `json:"lead"`
	SenderName string              `json:"sender_name"`
}

func (s *Server) previewCopy(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	lead := oracle.SampleLead
	if req.Lead != nil {
		lead = *req.Lead
	}
	variants := req.Variants
	if req.SenderName != "" {
		variants = oracle.WithSender(variants, req.SenderName)
	}
	rendered, err := s.deps.Previewer.Render(variants, lead)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"variants": rendered, "lead": lead})
}

// searchLeads starts a lead search on its own. The returned enrichment id
// is previewed with previewLeads and reused by a provisioning request.
func (s *Server) searchLeads(w http.ResponseWriter, r *http.Request) {
	if s.deps.Searcher == nil {
		respondError(w, http.StatusServiceUnavailable, "lead search not configured")
		return
	}
	var req provision.SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.TargetAudience = strings.TrimSpace(req.TargetAudience)
	if uid := UserID(r.Context()); uid != "" {
		req.UserID = uid
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	start, err := s.deps.Searcher.Search(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"enrichment_id":     start.EnrichmentID,
		"job_id":            start.JobID,
		"list_name":         start.ListName,
		"search_filters":    start.Filters,
		"filters_defaulted": start.FiltersDefaulted,
		"filters_dropped":   start.FiltersDropped,
		"message":           "Lead search started; preview it with its enrichment_id",
	})
}

type leadPreviewResponse struct {
	*provision.LeadPreview
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) previewLeads(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	listID := chi.URLParam(r, "listID")
	if !s.ownsList(w, r, listID) {
		return
	}
	preview, err := provision.PreviewLeads(r.Context(), s.deps.Vendor, listID, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	resp := leadPreviewResponse{LeadPreview: preview, Success: preview.Ready > 0}
	switch {
	case preview.Ready > 0 && preview.Enriching > 0:
		resp.Message = fmt.Sprintf("Found %d enriched leads (%d still enriching)", preview.Ready, preview.Enriching)
	case preview.Ready > 0:
		resp.Message = fmt.Sprintf("Found %d enriched leads", preview.Ready)
	case preview.Enriching > 0:
		resp.Message = fmt.Sprintf("Enrichment in progress: %d leads found, waiting for email verification", preview.Enriching)
	default:
		resp.Message = "Enrichment in progress: no leads found yet"
	}
	respondJSON(w, http.StatusOK, resp)
}

type emailRequest struct {
	URL        string     `json:"url" validate:"required,url"`
	ICP        oracle.ICP `json:"selected_icp" validate:"required"`
	SenderName string     `json:"sender_name"`
}

type regenerateRequest struct {
	emailRequest
	VariantIndex int `json:"variant_index" validate:"gte=0"`
}

// icpCopy writes copy for the request's ICP. The second result reports a
// fallback to template copy.
func (s *Server) icpCopy(r *http.Request, req emailRequest) ([]model.CopyVariant, bool) {
	variants, fallback := oracle.CopyOrFallback(r.Context(), s.deps.Copy, req.URL, req.ICP.Audience())
	if req.SenderName != "" {
		variants = oracle.WithSender(variants, req.SenderName)
	}
	return variants, fallback
}

func decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if err := validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// generateEmails writes copy variants for approval before provisioning.
func (s *Server) generateEmails(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeValid(w, r, &req) {
		return
	}
	variants, fallback := s.icpCopy(r, req)
	respondJSON(w, http.StatusOK, map[string]any{
		"variants": variants,
		"icp_name": req.ICP.Name,
		"fallback": fallback,
	})
}

// regenerateEmail rewrites one variant. An index past the last variant
// gets the last one.
func (s *Server) regenerateEmail(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	variants, fallback := s.icpCopy(r, req.emailRequest)
	variant, ok := oracle.PickVariant(variants, req.VariantIndex)
	if !ok {
		respondError(w, http.StatusBadGateway, "no copy generated")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"variant":       variant,
		"variant_index": req.VariantIndex,
		"fallback":      fallback,
	})
}
