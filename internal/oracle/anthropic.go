package oracle

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/metrics"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// Anthropic implements Oracle with Claude.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates an Anthropic oracle. An empty model uses the client
// default.
func NewAnthropic(client anthropic.Client, model string) *Anthropic {
	return &Anthropic{client: client, model: model, maxTokens: 2048}
}

func (a *Anthropic) ask(ctx context.Context, purpose, system, prompt string, temp float64) (string, error) {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      anthropic.CachedSystem(system),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(resp.Model, purpose)
	metrics.ObserveOracleUsage("anthropic", purpose, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	text := cleanJSON(resp.Text())
	if text == "" || (text[0] != '{' && text[0] != '[') {
		return "", ErrNoJSON
	}
	return text, nil
}

// GenerateFilters implements FilterOracle. The answer is sanitized before
// it is returned.
func (a *Anthropic) GenerateFilters(ctx context.Context, audience, url string) (filter.SearchFilter, error) {
	text, err := a.ask(ctx, "filters", filterSystem, buildFilterPrompt(audience, url), 0.3)
	if err != nil {
		return filter.SearchFilter{}, eris.Wrap(err, "oracle: anthropic filters")
	}
	f, report, err := filter.Parse([]byte(text))
	if err != nil {
		return filter.SearchFilter{}, eris.Wrap(err, "oracle: anthropic filters")
	}
	logReport(report)
	return f, nil
}

// GenerateCopy implements CopyOracle.
func (a *Anthropic) GenerateCopy(ctx context.Context, url, audience string) ([]model.CopyVariant, error) {
	text, err := a.ask(ctx, "copy", copySystem, buildCopyPrompt(url, audience), 0.7)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: anthropic copy")
	}
	var vs []model.CopyVariant
	if err := json.Unmarshal([]byte(text), &vs); err != nil {
		return nil, eris.Wrap(err, "oracle: anthropic copy: decode")
	}
	return ValidateVariants(vs)
}

// SuggestICPs implements ICPOracle.
func (a *Anthropic) SuggestICPs(ctx context.Context, url string) ([]ICP, error) {
	text, err := a.ask(ctx, "icps", icpSystem, buildICPPrompt(url), 0.5)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: anthropic icps")
	}
	var icps []ICP
	if err := json.Unmarshal([]byte(text), &icps); err != nil {
		return nil, eris.Wrap(err, "oracle: anthropic icps: decode")
	}
	return ValidateICPs(icps)
}

func logReport(r filter.Report) {
	if !r.Changed() {
		return
	}
	zap.L().Info("oracle: filter sanitized",
		zap.Strings("demoted_industries", r.DemotedIndustries),
		zap.Any("dropped", r.Dropped),
	)
}
