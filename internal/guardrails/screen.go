// Package guardrails screens shopper text before it is placed in an LLM
// prompt.
package guardrails

import "strings"

const DefaultThreshold = 0.7

// Result is the outcome of screening one piece of text.
type Result struct {
	Allowed bool     `json:"allowed"`
	Score   float64  `json:"score"`
	Flags   []string `json:"flags,omitempty"`
}

type pattern struct {
	text   string
	weight float64
	flag   string
}

var injectionPatterns = []pattern{
	{"ignore previous instructions", 0.9, "override_attempt"},
	{"ignore all previous", 0.9, "override_attempt"},
	{"disregard your instructions", 0.9, "override_attempt"},
	{"forget your instructions", 0.85, "override_attempt"},
	{"you are now", 0.7, "role_hijack"},
	{"pretend you are", 0.7, "role_hijack"},
	{"act as if you", 0.6, "role_hijack"},
	{"system prompt", 0.8, "system_leak"},
	{"reveal your system", 0.8, "system_leak"},
	{"show me your prompt", 0.8, "system_leak"},
	{"what are your instructions", 0.7, "system_leak"},
	{"jailbreak", 0.9, "jailbreak"},
	{"dan mode", 0.9, "jailbreak"},
	{"do anything now", 0.85, "jailbreak"},
	{"</system>", 0.8, "tag_injection"},
	{"<system>", 0.8, "tag_injection"},
	{"[system]", 0.7, "tag_injection"},
	{"### instruction", 0.6, "format_injection"},
	{"```system", 0.7, "format_injection"},
	{"respond only with", 0.6, "format_injection"},
	{"set max_price", 0.6, "filter_tamper"},
	{"\"semantic_query\"", 0.7, "filter_tamper"},
}

// Screen flags prompt-injection attempts with a phrase heuristic. It never
// calls a model, so it adds no latency to the assistant.
type Screen struct {
	threshold float64
}

func NewScreen(threshold float64) *Screen {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Screen{threshold: threshold}
}

// Check scores text by its strongest matching pattern. Text scoring at or
// above the threshold is not allowed.
func (s *Screen) Check(text string) Result {
	lower := strings.ToLower(text)
	res := Result{Allowed: true}

	seen := make(map[string]bool)
	for _, p := range injectionPatterns {
		if !strings.Contains(lower, p.text) {
			continue
		}
		res.Score = max(res.Score, p.weight)
		if !seen[p.flag] {
			seen[p.flag] = true
			res.Flags = append(res.Flags, p.flag)
		}
	}
	res.Allowed = res.Score < s.threshold
	return res
}
