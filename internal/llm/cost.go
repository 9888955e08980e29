package llm

// Prices in USD per 1K tokens: [input, output].
var costPerToken = map[string][2]float64{
	// Groq
	"llama-3.3-70b-versatile":      {0.00059, 0.00079},
	"llama-3.1-8b-instant":         {0.00005, 0.00008},
	"llama-3.2-11b-vision-preview": {0.00018, 0.00018},
	"llama-3.2-90b-vision-preview": {0.0009, 0.0009},

	// OpenAI
	"gpt-4o":                 {0.0025, 0.01},
	"gpt-4o-mini":            {0.00015, 0.0006},
	"text-embedding-3-small": {0.00002, 0},
	"text-embedding-3-large": {0.00013, 0},

	// Anthropic
	"claude-3-haiku-20240307":  {0.00025, 0.00125},
	"claude-sonnet-4-20250514": {0.003, 0.015},
}

// CalculateCost prices a call. Unknown and local models cost nothing.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	prices, ok := costPerToken[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000.0*prices[0] + float64(outputTokens)/1000.0*prices[1]
}
