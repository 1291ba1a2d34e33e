package ai

import (
	"encoding/json"
	"strings"

	"github.com/stemsi/exstem-mock/internal/model"
)

const (
	fallbackNoRecommendation = "No recommendations generated."
	fallbackNoPlan           = "No improvement plan generated."
)

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseAnalysis decodes a collaborator response. ok is false when the text is
// not a JSON object at all; individual missing or mistyped fields get defaults.
func parseAnalysis(text string) (model.AIAnalysis, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil || raw == nil {
		return model.AIAnalysis{}, false
	}

	res := model.AIAnalysis{
		WeakTopics:      topicList(raw["weakTopics"]),
		StrongTopics:    topicList(raw["strongTopics"]),
		Recommendation:  textField(raw["aiRecommendations"]),
		ImprovementPlan: textField(raw["improvementPlan"]),
		Source:          model.SourceAI,
	}
	if res.Recommendation == "" {
		res.Recommendation = fallbackNoRecommendation
	}
	if res.ImprovementPlan == "" {
		res.ImprovementPlan = fallbackNoPlan
	}
	return res, true
}

// topicList keeps trimmed, non-empty, distinct strings in order.
func topicList(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// textField accepts a string or a list of strings, joined by newlines.
func textField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				lines = append(lines, strings.TrimSpace(s))
			}
		}
		return strings.Join(lines, "\n")
	}
	return ""
}
