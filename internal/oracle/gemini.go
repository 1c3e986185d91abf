package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/metrics"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini oracle.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API host, for proxies and tests.
	BaseURL string
}

// Gemini implements Oracle with structured JSON output.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini oracle.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("oracle: gemini api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: gemini client")
	}
	m := strings.TrimSpace(cfg.Model)
	if m == "" {
		m = DefaultGeminiModel
	}
	return &Gemini{client: client, model: m}, nil
}

func stringList(enum []string) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	if len(enum) > 0 {
		s.Items.Enum = enum
	}
	return s
}

func includeExclude(enum []string) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"include": stringList(enum),
			"exclude": stringList(enum),
		},
	}
}

var filterSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":          includeExclude(nil),
		"department":     stringList(filter.Departments),
		"level":          stringList(filter.Levels),
		"employee_count": stringList(filter.EmployeeCounts),
		"revenue":        stringList(filter.Revenues),
		"industry":       includeExclude(filter.Industries),
		"funding_type":   stringList(filter.FundingTypes),
		"news":           stringList(filter.NewsEvents),
		"locations": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"city":    {Type: genai.TypeString},
					"state":   {Type: genai.TypeString},
					"country": {Type: genai.TypeString},
				},
				Required: []string{"city", "state", "country"},
			},
		},
		"keyword_filter": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"include": stringList(nil),
				"exclude": {Type: genai.TypeString},
			},
		},
	},
}

var copySchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"subject": {Type: genai.TypeString},
			"body":    {Type: genai.TypeString},
		},
		Required: []string{"subject", "body"},
	},
}

var icpSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":            {Type: genai.TypeString},
			"description":     {Type: genai.TypeString},
			"target_audience": {Type: genai.TypeString},
			"pain_points":     stringList(nil),
			"company_size":    {Type: genai.TypeString, Enum: []string{"startup", "mid-market", "enterprise"}},
		},
		Required: []string{"name", "description", "target_audience", "pain_points", "company_size"},
	},
}

func (g *Gemini) generate(ctx context.Context, purpose, system, prompt string, schema *genai.Schema, temp float32) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(temp),
		CandidateCount:    1,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	})
	if err != nil {
		return "", classifyGeminiErr(err)
	}
	if resp.UsageMetadata != nil {
		zap.L().Info("cost attribution",
			zap.String("model", g.model),
			zap.String("purpose", purpose),
			zap.Int32("input_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("output_tokens", resp.UsageMetadata.CandidatesTokenCount),
		)
		metrics.ObserveOracleUsage("gemini", purpose,
			int64(resp.UsageMetadata.PromptTokenCount), int64(resp.UsageMetadata.CandidatesTokenCount))
	}
	text := cleanJSON(resp.Text())
	if text == "" {
		return "", ErrNoJSON
	}
	return text, nil
}

// GenerateFilters implements FilterOracle.
func (g *Gemini) GenerateFilters(ctx context.Context, audience, url string) (filter.SearchFilter, error) {
	text, err := g.generate(ctx, "filters", filterSystem, buildFilterPrompt(audience, url), filterSchema, 0.3)
	if err != nil {
		return filter.SearchFilter{}, eris.Wrap(err, "oracle: gemini filters")
	}
	f, report, err := filter.Parse([]byte(text))
	if err != nil {
		return filter.SearchFilter{}, eris.Wrap(err, "oracle: gemini filters")
	}
	logReport(report)
	return f, nil
}

// GenerateCopy implements CopyOracle.
func (g *Gemini) GenerateCopy(ctx context.Context, url, audience string) ([]model.CopyVariant, error) {
	text, err := g.generate(ctx, "copy", copySystem, buildCopyPrompt(url, audience), copySchema, 0.7)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: gemini copy")
	}
	var vs []model.CopyVariant
	if err := json.Unmarshal([]byte(text), &vs); err != nil {
		return nil, eris.Wrap(err, "oracle: gemini copy: decode")
	}
	return ValidateVariants(vs)
}

// SuggestICPs implements ICPOracle.
func (g *Gemini) SuggestICPs(ctx context.Context, url string) ([]ICP, error) {
	text, err := g.generate(ctx, "icps", icpSystem, buildICPPrompt(url), icpSchema, 0.5)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: gemini icps")
	}
	var icps []ICP
	if err := json.Unmarshal([]byte(text), &icps); err != nil {
		return nil, eris.Wrap(err, "oracle: gemini icps: decode")
	}
	return ValidateICPs(icps)
}

// classifyGeminiErr marks rate limits, server errors and network timeouts
// as transient.
func classifyGeminiErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.Code) {
			return resilience.NewTransientError(err, apiErr.Code)
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
