package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/ai"
	"github.com/stemsi/exstem-mock/internal/exam"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/scoring"
)

const (
	notAttempted    = "Not Attempted"
	missingSolution = "Solution not provided in standard key."
)

// SessionReader exposes ended sessions. *ExamService implements it.
type SessionReader interface {
	EndedSnapshot(sessionID string) (model.SessionSnapshot, error)
}

// ResultService builds the results screen and per-question explanations.
type ResultService struct {
	sessions SessionReader
	overlay  *OverlayStore
	analyzer *ai.Analyzer
	log      zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(sessions SessionReader, overlay *OverlayStore, analyzer *ai.Analyzer, log zerolog.Logger) *ResultService {
	return &ResultService{
		sessions: sessions,
		overlay:  overlay,
		analyzer: analyzer,
		log:      log.With().Str("component", "result_service").Logger(),
	}
}

// Report scores the session synchronously and overlays whatever AI output has arrived.
// Overlay read failures degrade to a pending report.
func (s *ResultService) Report(ctx context.Context, sessionID string) (*model.ResultReport, error) {
	snap, err := s.sessions.EndedSnapshot(sessionID)
	if err != nil {
		return nil, err
	}
	report := scoring.Evaluate(snap.Questions, snap.Answers)

	analysis, err := s.overlay.Analysis(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to read AI analysis")
		analysis = nil
	}
	explanations, err := s.overlay.Explanations(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to read AI explanations")
		explanations = nil
	}

	res := &model.ResultReport{
		SessionID: snap.ID,
		Title:     snap.Title,
		ExamType:  snap.ExamType,
		EndReason: snap.EndReason,
		FlagCount: snap.FlagCount,
		AIStatus:  model.AIStatusPending,
		Analysis:  model.Merge(report, analysis),
		Review:    make([]model.QuestionReview, 0, len(snap.Questions)),
	}
	if analysis != nil {
		res.AIStatus = model.AIStatusReady
		res.AISource = analysis.Source
	}

	for i, q := range snap.Questions {
		row := model.QuestionReview{
			Index:         i,
			QuestionID:    q.ID,
			Text:          q.Text,
			Subject:       q.Subject,
			Topic:         q.Topic,
			Difficulty:    q.Difficulty,
			Type:          q.Type,
			Options:       q.Options,
			YourAnswer:    notAttempted,
			CorrectAnswer: q.DisplayAnswer(q.CorrectAnswer),
			Solution:      q.Solution,
		}
		if i < len(report.Outcomes) {
			o := report.Outcomes[i]
			row.Verdict = o.Verdict
			row.TimeSpent = o.TimeSpent
			if o.Verdict != model.VerdictUnattempted {
				row.YourAnswer = q.DisplayAnswer(o.Answer)
			}
		}
		if row.Solution == "" {
			row.Solution = missingSolution
		}
		if e, ok := explanations[q.ID]; ok {
			row.Explanation = e.Text
		}
		res.Review = append(res.Review, row)
	}
	return res, nil
}

// Explain returns the cached explanation of a question or asks the AI adapter for one.
// The adapter call is detached from ctx cancellation so a result that arrives after
// the client left is still cached.
func (s *ResultService) Explain(ctx context.Context, sessionID, questionID string) (model.Explanation, error) {
	snap, err := s.sessions.EndedSnapshot(sessionID)
	if err != nil {
		return model.Explanation{}, err
	}

	var (
		q     model.Question
		found bool
	)
	for _, candidate := range snap.Questions {
		if candidate.ID == questionID {
			q, found = candidate, true
			break
		}
	}
	if !found {
		return model.Explanation{}, fmt.Errorf("%w: %s", exam.ErrUnknownQuestion, questionID)
	}

	cached, err := s.overlay.Explanation(ctx, sessionID, questionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to read cached explanation")
	}
	if cached != nil {
		return *cached, nil
	}

	detached := context.WithoutCancel(ctx)
	exp := s.analyzer.ExplainQuestion(detached, q, snap.Answers[questionID].Answer)

	// Fallback texts are not cached so a later request can retry.
	if exp.Source == model.SourceAI {
		if err := s.overlay.SaveExplanation(detached, sessionID, exp); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to cache explanation")
		}
	}
	return exp, nil
}
