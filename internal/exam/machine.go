// Package exam implements the exam session state machine.
//
// A Machine owns exactly one session aggregate. Every mutation goes through
// Dispatch, which applies one Action atomically under the machine lock. Readers
// never see the live aggregate, only detached snapshots.
package exam

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/questionbank"
)

// Machine is the exam session state machine.
type Machine struct {
	mu sync.Mutex

	bank      *questionbank.Bank
	totalTime int
	now       func() time.Time
	newID     func() string

	s session
}

type session struct {
	id           string
	title        string
	examType     model.ExamType
	phase        model.SessionPhase
	timeLeft     int
	currentIndex int
	answers      map[string]model.UserAnswer
	startedAt    time.Time
	endedAt      time.Time
	endReason    model.EndReason
	proctoring   bool
	flags        int
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Machine) { m.newID = gen }
}

// NewMachine returns an idle machine over bank with the given allotted time.
func NewMachine(bank *questionbank.Bank, total time.Duration, opts ...Option) (*Machine, error) {
	secs := int(total / time.Second)
	if secs < 1 {
		return nil, ErrInvalidDuration
	}
	m := &Machine{
		bank:      bank,
		totalTime: secs,
		now:       time.Now,
		newID:     uuid.NewString,
		s: session{
			phase:    model.PhaseIdle,
			timeLeft: secs,
			answers:  map[string]model.UserAnswer{},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dispatch applies a single action. A returned error leaves the session untouched.
func (m *Machine) Dispatch(a Action) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reduce(a)
}

func (m *Machine) reduce(a Action) (Outcome, error) {
	if a.Kind == KindStart {
		return m.start(a.ExamType)
	}

	if m.s.phase == model.PhaseIdle {
		return Outcome{}, ErrSessionNotStarted
	}

	switch a.Kind {
	case KindTick:
		return m.tick(), nil
	case KindEnd:
		return m.end(model.EndReasonSubmitted), nil
	case KindFlagActivity:
		m.s.flags++
		return Outcome{Changed: true}, nil
	}

	if m.s.phase == model.PhaseEnded {
		switch a.Kind {
		case KindNavigate, KindNext, KindMarkAnswer, KindClearResponse, KindToggleReview, KindChangeSubject:
			return Outcome{}, ErrSessionEnded
		}
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}

	switch a.Kind {
	case KindNavigate:
		return m.navigate(a.Index)
	case KindNext:
		if m.s.currentIndex >= m.bank.Len()-1 {
			return Outcome{}, nil
		}
		return m.navigate(m.s.currentIndex + 1)
	case KindMarkAnswer:
		return m.markAnswer(a.QuestionID, a.Answer)
	case KindClearResponse:
		return m.update(a.QuestionID, func(ua *model.UserAnswer) {
			ua.Answer = nil
		})
	case KindToggleReview:
		return m.update(a.QuestionID, func(ua *model.UserAnswer) {
			ua.MarkedForReview = !ua.MarkedForReview
		})
	case KindChangeSubject:
		idx := m.bank.FirstOfSubject(a.Subject)
		if idx < 0 || idx == m.s.currentIndex {
			return Outcome{}, nil
		}
		m.s.currentIndex = idx
		return Outcome{Changed: true}, nil
	}
	return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
}

func (m *Machine) start(t model.ExamType) (Outcome, error) {
	if !t.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownExamType, t)
	}
	if m.s.phase == model.PhaseRunning {
		return Outcome{}, ErrSessionRunning
	}

	answers := make(map[string]model.UserAnswer, m.bank.Len())
	for _, q := range m.bank.Questions() {
		answers[q.ID] = model.NewUserAnswer(q.ID)
	}

	m.s = session{
		id:         m.newID(),
		title:      t.Title(),
		examType:   t,
		phase:      model.PhaseRunning,
		timeLeft:   m.totalTime,
		answers:    answers,
		startedAt:  m.now(),
		proctoring: true,
	}
	return Outcome{Changed: true}, nil
}

// tick spends one second on the current question. The tick that exhausts the
// clock ends the session, so timeLeft == 0 never coexists with an active session.
func (m *Machine) tick() Outcome {
	if m.s.phase != model.PhaseRunning {
		return Outcome{}
	}
	if m.s.timeLeft <= 0 {
		m.s.timeLeft = 0
		return m.end(model.EndReasonTimeExpired)
	}

	m.s.timeLeft--
	if q, ok := m.bank.At(m.s.currentIndex); ok {
		ua := m.s.answers[q.ID]
		ua.TimeSpent++
		m.s.answers[q.ID] = ua
	}

	if m.s.timeLeft == 0 {
		return m.end(model.EndReasonTimeExpired)
	}
	return Outcome{Changed: true}
}

func (m *Machine) end(reason model.EndReason) Outcome {
	if m.s.phase != model.PhaseRunning {
		return Outcome{}
	}
	m.s.phase = model.PhaseEnded
	m.s.proctoring = false
	m.s.endedAt = m.now()
	m.s.endReason = reason
	return Outcome{Changed: true, Ended: true, EndReason: reason}
}

func (m *Machine) navigate(to int) (Outcome, error) {
	if to < 0 || to >= m.bank.Len() {
		return Outcome{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, to, m.bank.Len())
	}

	if q, ok := m.bank.At(m.s.currentIndex); ok {
		ua := m.s.answers[q.ID]
		if ua.Status == model.StatusNotVisited {
			ua.Status = model.StatusNotAnswered
			m.s.answers[q.ID] = ua
		}
	}
	m.s.currentIndex = to
	return Outcome{Changed: true}, nil
}

func (m *Machine) markAnswer(questionID, answer string) (Outcome, error) {
	if answer == "" {
		return m.update(questionID, func(ua *model.UserAnswer) {
			ua.Answer = nil
		})
	}

	q, err := m.bank.ByID(questionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	v, err := canonicalAnswer(q, answer)
	if err != nil {
		return Outcome{}, err
	}

	return m.update(questionID, func(ua *model.UserAnswer) {
		ua.Answer = &v
	})
}

// update applies fn to one answer record and re-derives its status.
func (m *Machine) update(questionID string, fn func(*model.UserAnswer)) (Outcome, error) {
	ua, ok := m.s.answers[questionID]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	fn(&ua)
	ua.Status = model.DeriveStatus(ua.HasAnswer(), ua.MarkedForReview)
	m.s.answers[questionID] = ua
	return Outcome{Changed: true}, nil
}

// canonicalAnswer validates answer against q and returns the form stored and graded.
// Option indices are normalised ("00", "+0" -> "0"); numeric answers must be finite decimals.
func canonicalAnswer(q model.Question, answer string) (string, error) {
	switch q.Type {
	case model.QuestionTypeMCQ:
		idx, err := strconv.Atoi(answer)
		if err != nil || idx < 0 || idx >= len(q.Options) {
			return "", fmt.Errorf("%w: %q is not an option of %s", ErrInvalidAnswer, answer, q.ID)
		}
		return strconv.Itoa(idx), nil
	case model.QuestionTypeNumeric:
		if strings.Trim(answer, "0123456789.+-eE") != "" {
			return "", fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAnswer, answer)
		}
		f, err := strconv.ParseFloat(answer, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("%w: %q is not a number", ErrInvalidAnswer, answer)
		}
	}
	return answer, nil
}

// Snapshot returns a deep copy of the session.
func (m *Machine) Snapshot() model.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	answers := make(map[string]model.UserAnswer, len(m.s.answers))
	for id, ua := range m.s.answers {
		if ua.Answer != nil {
			v := *ua.Answer
			ua.Answer = &v
		}
		answers[id] = ua
	}

	snap := model.SessionSnapshot{
		ID:               m.s.id,
		Title:            m.s.title,
		ExamType:         m.s.examType,
		Phase:            m.s.phase,
		Active:           m.s.phase == model.PhaseRunning,
		TotalTime:        m.totalTime,
		TimeLeft:         m.s.timeLeft,
		CurrentIndex:     m.s.currentIndex,
		Answers:          answers,
		StartedAt:        m.s.startedAt,
		EndReason:        m.s.endReason,
		ProctoringActive: m.s.proctoring,
		FlagCount:        m.s.flags,
		Questions:        m.bank.Questions(),
	}
	if m.s.phase == model.PhaseEnded {
		endedAt := m.s.endedAt
		snap.EndedAt = &endedAt
	}
	return snap
}

// Phase returns the current phase without copying the session.
func (m *Machine) Phase() model.SessionPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.phase
}

// SessionID returns the current session id, empty while idle.
func (m *Machine) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.id
}

func (m *Machine) Start(t model.ExamType) (Outcome, error) { return m.Dispatch(Start(t)) }
func (m *Machine) Tick() (Outcome, error)                  { return m.Dispatch(Tick()) }
func (m *Machine) Navigate(index int) (Outcome, error)     { return m.Dispatch(Navigate(index)) }
func (m *Machine) Next() (Outcome, error)                  { return m.Dispatch(Next()) }
func (m *Machine) End() (Outcome, error)                   { return m.Dispatch(End()) }

func (m *Machine) MarkAnswer(questionID, answer string) (Outcome, error) {
	return m.Dispatch(MarkAnswer(questionID, answer))
}

func (m *Machine) ClearResponse(questionID string) (Outcome, error) {
	return m.Dispatch(ClearResponse(questionID))
}

func (m *Machine) ToggleReview(questionID string) (Outcome, error) {
	return m.Dispatch(ToggleReview(questionID))
}

func (m *Machine) ChangeSubject(s model.Subject) (Outcome, error) {
	return m.Dispatch(ChangeSubject(s))
}

func (m *Machine) FlagActivity(reason string) (Outcome, error) {
	return m.Dispatch(FlagActivity(reason))
}
