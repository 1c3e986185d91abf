package anthropic

import "go.uber.org/zap"

// TokenUsage is the token accounting of one reply.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// price is USD per million tokens.
type price struct {
	in, out float64
}

// Cache writes bill at 1.25x input and cache reads at 0.1x input.
const (
	cacheWriteFactor = 1.25
	cacheReadFactor  = 0.1
)

var prices = map[string]price{
	"claude-haiku-4-5-20251001":  {in: 0.80, out: 4.00},
	"claude-sonnet-4-5-20250929": {in: 3.00, out: 15.00},
	"claude-opus-4-6":            {in: 15.00, out: 75.00},
}

// EstimateCost returns the USD cost of u under model. Unknown models cost 0.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := prices[model]
	if !ok {
		return 0
	}
	perTok := func(n int64, rate float64) float64 { return float64(n) / 1e6 * rate }
	return perTok(u.InputTokens, p.in) +
		perTok(u.OutputTokens, p.out) +
		perTok(u.CacheCreationInputTokens, p.in*cacheWriteFactor) +
		perTok(u.CacheReadInputTokens, p.in*cacheReadFactor)
}

// LogCost logs u with its estimated cost, tagged with the oracle purpose.
func (u TokenUsage) LogCost(model, purpose string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.String("purpose", purpose),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
