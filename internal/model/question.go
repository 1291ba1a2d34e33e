package model

import "strconv"

// QuestionType distinguishes how a candidate answers a question.
type QuestionType string

const (
	QuestionTypeMCQ     QuestionType = "MCQ"
	QuestionTypeNumeric QuestionType = "NUMERIC"
)

// Subject is the exam section a question belongs to.
type Subject string

const (
	SubjectPhysics   Subject = "Physics"
	SubjectChemistry Subject = "Chemistry"
	SubjectMaths     Subject = "Maths"
)

// Subjects lists every known subject in palette order.
var Subjects = []Subject{SubjectPhysics, SubjectChemistry, SubjectMaths}

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	for _, known := range Subjects {
		if s == known {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Question is an immutable Question Bank entry.
// CorrectAnswer holds the option index as a string for MCQ, or the numeric value.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Subject       Subject      `json:"subject"`
	Topic         string       `json:"topic"`
	Difficulty    Difficulty   `json:"difficulty"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Solution      string       `json:"solution,omitempty"`
	ImageURL      string       `json:"image_url,omitempty"`
}

// QuestionForCandidate is a question without its key, sent during the exam.
type QuestionForCandidate struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	Type       QuestionType `json:"type"`
	Subject    Subject      `json:"subject"`
	Topic      string       `json:"topic"`
	Difficulty Difficulty   `json:"difficulty"`
	Options    []string     `json:"options,omitempty"`
	ImageURL   string       `json:"image_url,omitempty"`
}

// ForCandidate strips the answer key and worked solution.
func (q Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:         q.ID,
		Text:       q.Text,
		Type:       q.Type,
		Subject:    q.Subject,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
		Options:    q.Options,
		ImageURL:   q.ImageURL,
	}
}

// DisplayAnswer renders a stored answer value the way the candidate saw it:
// the option text for single-choice questions, the raw value otherwise.
func (q Question) DisplayAnswer(v string) string {
	if q.Type == QuestionTypeMCQ {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 && i < len(q.Options) {
			return q.Options[i]
		}
	}
	return v
}
