package llm

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides USD pricing per 1M text tokens.
var defaultPricing = map[string]Pricing{
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"text-embedding-004":    {InputPerM: 0.00, OutputPerM: 0.00},
}

// CostEnabled returns whether to compute/log cost.
func CostEnabled() bool {
	return true
}

// ResolvePricing returns the pricing of a model, matching versioned names
// such as "models/gemini-2.5-flash-001" by prefix.
func ResolvePricing(model string) Pricing {
	name := strings.TrimPrefix(model, "models/")
	if p, ok := defaultPricing[name]; ok {
		return p
	}
	best := ""
	for k := range defaultPricing {
		if strings.HasPrefix(name, k) && len(k) > len(best) {
			best = k
		}
	}
	return defaultPricing[best]
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}
