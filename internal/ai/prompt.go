package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/scoring"
)

// PerformanceEntry is the per-question record sent for analysis.
type PerformanceEntry struct {
	Topic      string           `json:"topic"`
	Difficulty model.Difficulty `json:"difficulty"`
	Subject    model.Subject    `json:"subject"`
	Correct    bool             `json:"correct"`
	TimeSpent  int              `json:"timeSpent"`
}

// PerformanceData builds the analysis payload in question order.
func PerformanceData(questions []model.Question, answers map[string]model.UserAnswer) []PerformanceEntry {
	entries := make([]PerformanceEntry, 0, len(questions))
	for _, q := range questions {
		ua, ok := answers[q.ID]
		out := scoring.Grade(q, ua, ok)
		entries = append(entries, PerformanceEntry{
			Topic:      q.Topic,
			Difficulty: q.Difficulty,
			Subject:    q.Subject,
			Correct:    out.Verdict == model.VerdictCorrect,
			TimeSpent:  out.TimeSpent,
		})
	}
	return entries
}

func analysisPrompt(entries []PerformanceEntry) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`Analyze the following student performance data for a JEE/NEET mock test.
Data: %s

Respond with a JSON object containing:
1. weakTopics: array of strings, topics where performance was poor
2. strongTopics: array of strings, topics where performance was good
3. aiRecommendations: one concise paragraph (max 50 words) of strategic advice
4. improvementPlan: three actionable steps`, data), nil
}

func explanationPrompt(q model.Question, submitted *string) string {
	options := "Numeric Input"
	if len(q.Options) > 0 {
		options = strings.Join(q.Options, ", ")
	}
	answer := "Skipped"
	if submitted != nil && *submitted != "" {
		answer = q.DisplayAnswer(*submitted)
	}

	return fmt.Sprintf(`Explain the solution for this %s question clearly for a student.
Question: %s
Options: %s
Correct Answer: %s
Student Answered: %s

Give a step-by-step explanation. If the student was wrong, explain why their likely approach failed.`,
		q.Subject, q.Text, options, q.DisplayAnswer(q.CorrectAnswer), answer)
}
