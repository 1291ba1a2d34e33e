// Package scoring grades a finished answer record against the answer key.
package scoring

import "github.com/stemsi/exstem-mock/internal/model"

const (
	CorrectMarks   = 4
	IncorrectMarks = -1
)

// Grade classifies one question. An absent or empty answer is unattempted;
// otherwise the answer must equal the key exactly.
func Grade(q model.Question, ua model.UserAnswer, present bool) model.QuestionOutcome {
	out := model.QuestionOutcome{QuestionID: q.ID}
	if !present {
		out.Verdict = model.VerdictUnattempted
		return out
	}
	out.TimeSpent = ua.TimeSpent

	if !ua.HasAnswer() {
		out.Verdict = model.VerdictUnattempted
		return out
	}
	out.Answer = ua.AnswerValue()
	if out.Answer == q.CorrectAnswer {
		out.Verdict = model.VerdictCorrect
		out.Delta = CorrectMarks
	} else {
		out.Verdict = model.VerdictIncorrect
		out.Delta = IncorrectMarks
	}
	return out
}

// Evaluate scores every question in bank order. It is total over any answer
// map, including nil and maps with missing or unknown entries.
func Evaluate(questions []model.Question, answers map[string]model.UserAnswer) model.ScoreReport {
	report := model.ScoreReport{
		TotalQuestions: len(questions),
		MaxScore:       CorrectMarks * len(questions),
		Outcomes:       make([]model.QuestionOutcome, 0, len(questions)),
	}

	for _, q := range questions {
		ua, ok := answers[q.ID]
		out := Grade(q, ua, ok)
		switch out.Verdict {
		case model.VerdictCorrect:
			report.CorrectCount++
		case model.VerdictIncorrect:
			report.IncorrectCount++
		default:
			report.UnattemptedCount++
		}
		report.Score += out.Delta
		report.Outcomes = append(report.Outcomes, out)
	}

	report.Accuracy = Accuracy(report.CorrectCount, report.IncorrectCount)
	return report
}

// Accuracy is correct / (correct + incorrect) as a percentage, 0 when nothing was attempted.
func Accuracy(correct, incorrect int) float64 {
	attempted := correct + incorrect
	if attempted == 0 {
		return 0
	}
	return float64(correct) / float64(attempted) * 100
}
