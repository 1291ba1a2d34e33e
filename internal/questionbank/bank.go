// Package questionbank holds the fixed, ordered catalogue of exam questions.
package questionbank

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/stemsi/exstem-mock/internal/model"
)

//go:embed seed.json
var seedJSON []byte

var (
	ErrEmptyBank        = errors.New("question bank is empty")
	ErrInvalidBank      = errors.New("invalid question bank")
	ErrQuestionNotFound = errors.New("question not found")
)

// Bank is an immutable ordered list of questions. It is safe for concurrent reads.
type Bank struct {
	questions []model.Question
	index     map[string]int
	subjects  []model.Subject
}

// Default returns the bank built from the embedded seed.
func Default() (*Bank, error) {
	return Parse(seedJSON)
}

// Load reads a bank from a JSON file. An empty path loads the embedded seed.
func Load(path string) (*Bank, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON array of questions.
func Parse(data []byte) (*Bank, error) {
	var qs []model.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}
	return New(qs)
}

// New validates qs and builds a bank that owns a private copy of them.
func New(qs []model.Question) (*Bank, error) {
	if err := Validate(qs); err != nil {
		return nil, err
	}

	b := &Bank{
		questions: make([]model.Question, len(qs)),
		index:     make(map[string]int, len(qs)),
	}
	seen := make(map[model.Subject]bool)
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		b.questions[i] = q
		b.index[q.ID] = i
		if !seen[q.Subject] {
			seen[q.Subject] = true
			b.subjects = append(b.subjects, q.Subject)
		}
	}
	return b, nil
}

// Validate checks every question against the bank rules.
func Validate(qs []model.Question) error {
	if len(qs) == 0 {
		return ErrEmptyBank
	}

	ids := make(map[string]bool, len(qs))
	for i, q := range qs {
		if q.ID == "" {
			return fmt.Errorf("%w: question #%d has no id", ErrInvalidBank, i)
		}
		if ids[q.ID] {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalidBank, q.ID)
		}
		ids[q.ID] = true

		if !q.Subject.Valid() {
			return fmt.Errorf("%w: question %q has unknown subject %q", ErrInvalidBank, q.ID, q.Subject)
		}
		if !q.Difficulty.Valid() {
			return fmt.Errorf("%w: question %q has unknown difficulty %q", ErrInvalidBank, q.ID, q.Difficulty)
		}

		switch q.Type {
		case model.QuestionTypeMCQ:
			if len(q.Options) < 2 {
				return fmt.Errorf("%w: question %q needs at least 2 options", ErrInvalidBank, q.ID)
			}
			idx, err := strconv.Atoi(q.CorrectAnswer)
			if err != nil || idx < 0 || idx >= len(q.Options) {
				return fmt.Errorf("%w: question %q key %q is not an option index", ErrInvalidBank, q.ID, q.CorrectAnswer)
			}
		case model.QuestionTypeNumeric:
			if len(q.Options) > 0 {
				return fmt.Errorf("%w: numeric question %q must not have options", ErrInvalidBank, q.ID)
			}
			if _, err := strconv.ParseFloat(q.CorrectAnswer, 64); err != nil {
				return fmt.Errorf("%w: numeric question %q key %q is not a number", ErrInvalidBank, q.ID, q.CorrectAnswer)
			}
		default:
			return fmt.Errorf("%w: question %q has unknown type %q", ErrInvalidBank, q.ID, q.Type)
		}
	}
	return nil
}

// Questions returns a deep copy of the ordered question list.
func (b *Bank) Questions() []model.Question {
	out := make([]model.Question, len(b.questions))
	for i, q := range b.questions {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// At returns the question at index i.
func (b *Bank) At(i int) (model.Question, bool) {
	if i < 0 || i >= len(b.questions) {
		return model.Question{}, false
	}
	return b.questions[i], true
}

// ByID looks a question up by id.
func (b *Bank) ByID(id string) (model.Question, error) {
	i, ok := b.index[id]
	if !ok {
		return model.Question{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	return b.questions[i], nil
}

// IndexOf returns the palette index of a question id, or -1.
func (b *Bank) IndexOf(id string) int {
	if i, ok := b.index[id]; ok {
		return i
	}
	return -1
}

// FirstOfSubject returns the index of the first question in subject, or -1.
func (b *Bank) FirstOfSubject(subject model.Subject) int {
	for i, q := range b.questions {
		if q.Subject == subject {
			return i
		}
	}
	return -1
}

// Subjects lists the subjects present, in order of first appearance.
func (b *Bank) Subjects() []model.Subject {
	return append([]model.Subject(nil), b.subjects...)
}
