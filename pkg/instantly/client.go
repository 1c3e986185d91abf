// Package instantly is a typed client for the Instantly v2 lead and campaign
// API. Responses are normalized at this boundary and failures are classified
// as auth, permanent or transient.
package instantly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const defaultBaseURL = "https://api.instantly.ai/api/v2"

// Client defines the vendor operations used by provisioning.
type Client interface {
	CreateLeadList(ctx context.Context, name string) (*Resource, error)
	CreateCampaign(ctx context.Context, req CampaignRequest) (*Resource, error)
	ActivateCampaign(ctx context.Context, id string) error
	PauseCampaign(ctx context.Context, id string) error
	DeleteCampaign(ctx context.Context, id string) error
	GetCampaignAnalytics(ctx context.Context, id string) (*Analytics, error)
	SearchCampaignsByContact(ctx context.Context, email string) ([]Resource, error)
	EnrichLeads(ctx context.Context, req EnrichmentRequest) (*EnrichmentJob, error)
	GetEnrichmentStatus(ctx context.Context, resourceID string) (*EnrichmentStatus, error)
	GetEnrichmentHistory(ctx context.Context, resourceID string) ([]Lead, error)
	ListLeads(ctx context.Context, req ListLeadsRequest) (*LeadPage, error)
	CreateLeads(ctx context.Context, req BulkCreateRequest) (*JobHandle, error)
	GetBackgroundJob(ctx context.Context, id string) (*BackgroundJob, error)
	ListAccounts(ctx context.Context, limit int, status *int) ([]Account, error)
}

// Observer receives the outcome of every API call: the operation name, the
// error class ("ok", "transient", "permanent") and the wall time including
// retries.
type Observer func(op, class string, d time.Duration)

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker guards every call with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

// WithObserver registers a callback invoked after every call.
func WithObserver(o Observer) Option {
	return func(c *httpClient) {
		c.observe = o
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	observe Observer
}

// NewClient creates a new Instantly client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreateLeadList(ctx context.Context, name string) (*Resource, error) {
	data, err := c.call(ctx, "create lead list", http.MethodPost, "/lead-lists", nil,
		map[string]any{"api_key": c.apiKey, "name": name})
	if err != nil {
		return nil, err
	}
	return c.resource(data, "create lead list", name)
}

func (c *httpClient) CreateCampaign(ctx context.Context, req CampaignRequest) (*Resource, error) {
	data, err := c.call(ctx, "create campaign", http.MethodPost, "/campaigns", nil, req)
	if err != nil {
		return nil, err
	}
	return c.resource(data, "create campaign", req.Name)
}

func (c *httpClient) resource(data []byte, op, name string) (*Resource, error) {
	id := extractID(data)
	if id == "" {
		return nil, eris.Wrapf(&PermanentVendorError{StatusCode: http.StatusOK, Body: truncate(data)},
			"instantly: %s: no id in response", op)
	}
	return &Resource{ID: id, Name: name}, nil
}

func (c *httpClient) ActivateCampaign(ctx context.Context, id string) error {
	_, err := c.call(ctx, "activate campaign", http.MethodPost,
		fmt.Sprintf("/campaigns/%s/activate", url.PathEscape(id)), nil, map[string]any{})
	return err
}

func (c *httpClient) PauseCampaign(ctx context.Context, id string) error {
	_, err := c.call(ctx, "pause campaign", http.MethodPost,
		fmt.Sprintf("/campaigns/%s/pause", url.PathEscape(id)), nil, map[string]any{})
	return err
}

func (c *httpClient) DeleteCampaign(ctx context.Context, id string) error {
	_, err := c.call(ctx, "delete campaign", http.MethodDelete,
		fmt.Sprintf("/campaigns/%s", url.PathEscape(id)), nil, nil)
	return err
}

func (c *httpClient) GetCampaignAnalytics(ctx context.Context, id string) (*Analytics, error) {
	data, err := c.call(ctx, "get campaign analytics", http.MethodGet, "/campaigns/analytics",
		url.Values{"campaign_id": {id}}, nil)
	if err != nil {
		return nil, err
	}
	a := extractAnalytics(data)
	return &a, nil
}

func (c *httpClient) SearchCampaignsByContact(ctx context.Context, email string) ([]Resource, error) {
	data, err := c.call(ctx, "search campaigns by contact", http.MethodGet, "/campaigns/search-by-contact",
		url.Values{"search": {email}}, nil)
	if err != nil {
		return nil, err
	}
	out, err := decodeItems[Resource](extractItems(data))
	if err != nil {
		return nil, eris.Wrap(err, "instantly: search campaigns by contact")
	}
	return out, nil
}

func (c *httpClient) EnrichLeads(ctx context.Context, req EnrichmentRequest) (*EnrichmentJob, error) {
	body := struct {
		APIKey string `json:"api_key"`
		EnrichmentRequest
	}{APIKey: c.apiKey, EnrichmentRequest: req}

	data, err := c.call(ctx, "enrich leads", http.MethodPost,
		"/supersearch-enrichment/enrich-leads-from-supersearch", nil, body)
	if err != nil {
		return nil, err
	}

	obj := decodeObject(data)
	job := &EnrichmentJob{
		ID:            firstString(obj, []string{"id", "resource_id"}),
		ResourceID:    firstString(obj, []string{"resource_id", "id"}),
		EchoedFilters: extractField(data, "search_filters"),
	}
	if req.ResourceID != "" && job.ResourceID == "" {
		job.ResourceID = req.ResourceID
	}
	if job.ID == "" {
		job.ID = job.ResourceID
	}
	if job.ResourceID == "" {
		return nil, eris.Wrap(&PermanentVendorError{StatusCode: http.StatusOK, Body: truncate(data)},
			"instantly: enrich leads: no resource id in response")
	}
	return job, nil
}

func (c *httpClient) GetEnrichmentStatus(ctx context.Context, resourceID string) (*EnrichmentStatus, error) {
	data, err := c.call(ctx, "get enrichment status", http.MethodGet,
		fmt.Sprintf("/supersearch-enrichment/%s", url.PathEscape(resourceID)), nil, nil)
	if err != nil {
		return nil, err
	}
	var st EnrichmentStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, eris.Wrap(err, "instantly: get enrichment status: decode")
	}
	if st.ResourceID == "" {
		st.ResourceID = resourceID
	}
	return &st, nil
}

func (c *httpClient) GetEnrichmentHistory(ctx context.Context, resourceID string) ([]Lead, error) {
	data, err := c.call(ctx, "get enrichment history", http.MethodGet,
		fmt.Sprintf("/supersearch-enrichment/history/%s", url.PathEscape(resourceID)), nil, nil)
	if err != nil {
		return nil, err
	}
	leads, err := decodeItems[Lead](extractItems(data))
	if err != nil {
		return nil, eris.Wrap(err, "instantly: get enrichment history")
	}
	return leads, nil
}

func (c *httpClient) ListLeads(ctx context.Context, req ListLeadsRequest) (*LeadPage, error) {
	if req.ListID != "" {
		req.InList = true
	}
	data, err := c.call(ctx, "list leads", http.MethodPost, "/leads/list", nil, req)
	if err != nil {
		return nil, err
	}
	leads, err := decodeItems[Lead](extractItems(data))
	if err != nil {
		return nil, eris.Wrap(err, "instantly: list leads")
	}
	return &LeadPage{
		Items: leads,
		Next:  firstString(decodeObject(data), []string{"next_starting_after"}),
	}, nil
}

func (c *httpClient) CreateLeads(ctx context.Context, req BulkCreateRequest) (*JobHandle, error) {
	data, err := c.call(ctx, "create leads", http.MethodPost, "/leads/add", nil, req)
	if err != nil {
		return nil, err
	}
	return &JobHandle{JobID: extractJobID(data)}, nil
}

func (c *httpClient) GetBackgroundJob(ctx context.Context, id string) (*BackgroundJob, error) {
	data, err := c.call(ctx, "get background job", http.MethodGet,
		fmt.Sprintf("/background-jobs/%s", url.PathEscape(id)), nil, nil)
	if err != nil {
		return nil, err
	}
	var job BackgroundJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, eris.Wrap(err, "instantly: get background job: decode")
	}
	if job.ID == "" {
		job.ID = id
	}
	return &job, nil
}

func (c *httpClient) ListAccounts(ctx context.Context, limit int, status *int) ([]Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if status != nil {
		q.Set("status", strconv.Itoa(*status))
	}
	data, err := c.call(ctx, "list accounts", http.MethodGet, "/accounts", q, nil)
	if err != nil {
		return nil, err
	}
	accounts, err := decodeItems[Account](extractItems(data))
	if err != nil {
		return nil, eris.Wrap(err, "instantly: list accounts")
	}
	return accounts, nil
}

// call performs one logical API operation: rate limiting, retries of
// transient failures, the optional circuit breaker and the observer.
func (c *httpClient) call(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, error) {
	start := time.Now()

	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("instantly", op)
	}

	data, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		if c.breaker == nil {
			return c.once(ctx, method, path, query, body)
		}
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return c.once(ctx, method, path, query, body)
		})
	})

	if c.observe != nil {
		c.observe(op, resilience.ClassifyError(err), time.Since(start))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "instantly: %s", op)
	}
	return data, nil
}

func (c *httpClient) once(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "execute request")
		}
		return nil, &TransientVendorError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientVendorError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	return data, nil
}

func truncate(data []byte) string {
	if len(data) > 256 {
		return string(data[:256])
	}
	return string(data)
}
