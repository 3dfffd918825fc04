package llm

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/abdul-hamid-achik/claudette/internal/config"
)

var counts = message.NewPrinter(language.English)

// formatCount renders n with thousands separators, e.g. 12,345
func formatCount(n int) string {
	return counts.Sprintf("%d", n)
}

// CalculateCost prices a response in dollars. Cache reads are billed at
// the cache_read rate instead of the input rate. Models without a
// matching pricing tier cost 0.
func CalculateCost(cfg config.AnthropicConfig, model string, u Usage) float64 {
	tier, ok := cfg.PricingFor(model)
	if !ok {
		return 0
	}

	input := float64(max(u.InputTokens-u.CacheReadTokens, 0)) / 1000 * tier.Input
	output := float64(u.OutputTokens) / 1000 * tier.Output
	cacheWrite := float64(u.CacheWriteTokens) / 1000 * tier.CacheWrite
	cacheRead := float64(u.CacheReadTokens) / 1000 * tier.CacheRead

	return input + output + cacheWrite + cacheRead
}
