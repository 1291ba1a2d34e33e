package model

// Verdict classifies a single question after submission.
type Verdict string

const (
	VerdictCorrect     Verdict = "correct"
	VerdictIncorrect   Verdict = "incorrect"
	VerdictUnattempted Verdict = "unattempted"
)

// QuestionOutcome is the scoring engine's view of one question.
type QuestionOutcome struct {
	QuestionID string  `json:"question_id"`
	Verdict    Verdict `json:"verdict"`
	Delta      int     `json:"delta"`
	Answer     string  `json:"answer,omitempty"`
	TimeSpent  int     `json:"time_spent"`
}

// ScoreReport is the deterministic part of the analysis.
type ScoreReport struct {
	Score            int               `json:"score"`
	MaxScore         int               `json:"max_score"`
	TotalQuestions   int               `json:"total_questions"`
	CorrectCount     int               `json:"correct_count"`
	IncorrectCount   int               `json:"incorrect_count"`
	UnattemptedCount int               `json:"unattempted_count"`
	Accuracy         float64           `json:"accuracy"`
	Outcomes         []QuestionOutcome `json:"outcomes"`
}

// Attempted is the number of questions carrying an answer.
func (r ScoreReport) Attempted() int {
	return r.CorrectCount + r.IncorrectCount
}

// AnalysisSource tells where the AI-derived fields came from.
type AnalysisSource string

const (
	SourceAI       AnalysisSource = "ai"
	SourceOffline  AnalysisSource = "offline"
	SourceFallback AnalysisSource = "fallback"
)

// AIAnalysis is the normalized answer of the AI collaborator. Every field is always set.
type AIAnalysis struct {
	WeakTopics      []string       `json:"weak_topics"`
	StrongTopics    []string       `json:"strong_topics"`
	Recommendation  string         `json:"ai_recommendations"`
	ImprovementPlan string         `json:"improvement_plan"`
	Source          AnalysisSource `json:"source"`
}

// Explanation is a normalized per-question explanation.
type Explanation struct {
	QuestionID string         `json:"question_id"`
	Text       string         `json:"text"`
	Source     AnalysisSource `json:"source"`
}

// AnalysisResult merges the score report with the AI overlay.
type AnalysisResult struct {
	ScoreReport
	WeakTopics      []string `json:"weak_topics"`
	StrongTopics    []string `json:"strong_topics"`
	Recommendation  string   `json:"ai_recommendations"`
	ImprovementPlan string   `json:"improvement_plan"`
}

// Merge overlays an AI analysis onto a score report. A nil analysis leaves the AI fields empty.
func Merge(report ScoreReport, ai *AIAnalysis) AnalysisResult {
	res := AnalysisResult{
		ScoreReport:  report,
		WeakTopics:   []string{},
		StrongTopics: []string{},
	}
	if ai != nil {
		res.WeakTopics = ai.WeakTopics
		res.StrongTopics = ai.StrongTopics
		res.Recommendation = ai.Recommendation
		res.ImprovementPlan = ai.ImprovementPlan
	}
	return res
}

// AIStatus reports whether the asynchronous overlay has arrived.
type AIStatus string

const (
	AIStatusPending AIStatus = "pending"
	AIStatusReady   AIStatus = "ready"
)

// QuestionReview is one row of the detailed question review.
type QuestionReview struct {
	Index         int          `json:"index"`
	QuestionID    string       `json:"question_id"`
	Text          string       `json:"text"`
	Subject       Subject      `json:"subject"`
	Topic         string       `json:"topic"`
	Difficulty    Difficulty   `json:"difficulty"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	Verdict       Verdict      `json:"verdict"`
	YourAnswer    string       `json:"your_answer"`
	CorrectAnswer string       `json:"correct_answer"`
	Solution      string       `json:"solution"`
	TimeSpent     int          `json:"time_spent"`
	Explanation   string       `json:"ai_explanation,omitempty"`
}

// ResultReport is the results screen payload.
type ResultReport struct {
	SessionID string           `json:"session_id"`
	Title     string           `json:"title"`
	ExamType  ExamType         `json:"exam_type"`
	EndReason EndReason        `json:"end_reason"`
	FlagCount int              `json:"cheating_flags"`
	AIStatus  AIStatus         `json:"ai_status"`
	AISource  AnalysisSource   `json:"ai_source,omitempty"`
	Analysis  AnalysisResult   `json:"analysis"`
	Review    []QuestionReview `json:"review"`
}
