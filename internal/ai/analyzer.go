package ai

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/metrics"
	"github.com/stemsi/exstem-mock/internal/model"
)

// Fallback texts returned instead of collaborator output.
const (
	OfflineRecommendation = "Please configure your API Key to get AI insights."
	OfflinePlan           = "Review your mistakes in the detailed report."
	FailureRecommendation = "AI Analysis currently unavailable."
	FailurePlan           = "Focus on revising incorrect questions."
	OfflineExplanation    = "AI explanation unavailable (API Key missing)."
	FailureExplanation    = "Failed to generate explanation."
	EmptyExplanation      = "No explanation generated."
)

const (
	capabilityAnalysis    = "analysis"
	capabilityExplanation = "explanation"
)

// Analyzer wraps a Generator and never returns its failures to callers.
// A nil generator means no credential is configured.
type Analyzer struct {
	gen     Generator
	timeout time.Duration
	log     zerolog.Logger
}

func NewAnalyzer(gen Generator, timeout time.Duration, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		gen:     gen,
		timeout: timeout,
		log:     log.With().Str("component", "ai_analyzer").Logger(),
	}
}

// Online reports whether a collaborator is configured.
func (a *Analyzer) Online() bool {
	return a.gen != nil
}

// AnalyzePerformance classifies topics and produces study advice. The result is always complete.
func (a *Analyzer) AnalyzePerformance(ctx context.Context, questions []model.Question, answers map[string]model.UserAnswer) model.AIAnalysis {
	res := a.analyze(ctx, questions, answers)
	metrics.AIRequests.WithLabelValues(capabilityAnalysis, string(res.Source)).Inc()
	return res
}

func (a *Analyzer) analyze(ctx context.Context, questions []model.Question, answers map[string]model.UserAnswer) model.AIAnalysis {
	if a.gen == nil {
		a.log.Warn().Msg("AI API key missing, returning offline analysis")
		return model.AIAnalysis{
			WeakTopics:      []string{},
			StrongTopics:    []string{},
			Recommendation:  OfflineRecommendation,
			ImprovementPlan: OfflinePlan,
			Source:          model.SourceOffline,
		}
	}

	fallback := model.AIAnalysis{
		WeakTopics:      []string{},
		StrongTopics:    []string{},
		Recommendation:  FailureRecommendation,
		ImprovementPlan: FailurePlan,
		Source:          model.SourceFallback,
	}

	prompt, err := analysisPrompt(PerformanceData(questions, answers))
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to build analysis prompt")
		return fallback
	}

	text, err := a.generate(ctx, Prompt{Text: prompt, JSON: true})
	if err != nil {
		a.log.Error().Err(err).Msg("AI analysis request failed")
		return fallback
	}

	res, ok := parseAnalysis(text)
	if !ok {
		a.log.Error().Int("response_len", len(text)).Msg("AI analysis response is not a JSON object")
		return fallback
	}
	return res
}

// ExplainQuestion explains one question given the submitted answer (nil when skipped).
func (a *Analyzer) ExplainQuestion(ctx context.Context, q model.Question, submitted *string) model.Explanation {
	res := a.explain(ctx, q, submitted)
	metrics.AIRequests.WithLabelValues(capabilityExplanation, string(res.Source)).Inc()
	return res
}

func (a *Analyzer) explain(ctx context.Context, q model.Question, submitted *string) model.Explanation {
	res := model.Explanation{QuestionID: q.ID}
	if a.gen == nil {
		res.Text, res.Source = OfflineExplanation, model.SourceOffline
		return res
	}

	text, err := a.generate(ctx, Prompt{Text: explanationPrompt(q, submitted)})
	if err != nil {
		a.log.Error().Err(err).Str("question_id", q.ID).Msg("AI explanation request failed")
		res.Text, res.Source = FailureExplanation, model.SourceFallback
		return res
	}

	text = strings.TrimSpace(text)
	if text == "" {
		res.Text, res.Source = EmptyExplanation, model.SourceFallback
		return res
	}
	res.Text, res.Source = text, model.SourceAI
	return res
}

func (a *Analyzer) generate(ctx context.Context, p Prompt) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.gen.Generate(ctx, p)
}
