package usage

import "strings"

// Price is the USD cost per one million tokens.
type Price struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Pricing maps model names to prices. Dated model variants match their base
// name by longest prefix.
type Pricing map[string]Price

// DefaultPricing returns the built-in price table.
func DefaultPricing() Pricing {
	return Pricing{
		"gpt-4o-mini": {Input: 0.15, Output: 0.60},
		"gpt-4o":      {Input: 5.00, Output: 15.00},
		"gpt-4-turbo": {Input: 10.00, Output: 30.00},
	}
}

// Cost estimates the USD cost of one call. Unknown models cost nothing.
func (p Pricing) Cost(modelName string, promptTokens, completionTokens int) float64 {
	price, ok := p.lookup(modelName)
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*price.Input + float64(completionTokens)/1e6*price.Output
}

func (p Pricing) lookup(modelName string) (Price, bool) {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if price, ok := p[name]; ok {
		return price, true
	}
	best := ""
	for key := range p {
		if strings.HasPrefix(name, key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return Price{}, false
	}
	return p[best], true
}
