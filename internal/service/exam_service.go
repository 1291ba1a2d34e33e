package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/ai"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/exam"
	"github.com/stemsi/exstem-mock/internal/metrics"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/proctor"
	"github.com/stemsi/exstem-mock/internal/questionbank"
	"github.com/stemsi/exstem-mock/internal/scoring"
	"github.com/stemsi/exstem-mock/internal/worker"
)

// Domain Errors
var (
	ErrNoSession          = errors.New("no exam session has been started")
	ErrSessionInvalidated = errors.New("session is no longer current")
	ErrSessionNotEnded    = errors.New("session has not ended yet")
	ErrProctoringInactive = errors.New("proctoring is not active")
)

// ExamOptions configures the session handle.
type ExamOptions struct {
	Duration     time.Duration
	TickInterval time.Duration
	WarningTTL   time.Duration
	MaxWarnings  int
	Clock        func() time.Time
	IDGenerator  func() string
}

// ExamService owns the single exam session of this process: the state machine,
// the proctoring collector and the timer driving it.
// Lock order: ExamService.mu, then the collector, then the machine.
type ExamService struct {
	mu sync.Mutex

	machine   *exam.Machine
	collector *proctor.Collector
	driver    *worker.TimerDriver

	rdb      *redis.Client
	overlay  *OverlayStore
	analyzer *ai.Analyzer
	log      zerolog.Logger

	// base outlives requests; the timer loop and AI analysis hang off it.
	base context.Context
	wg   sync.WaitGroup
}

// NewExamService creates a new ExamService. base bounds every background goroutine.
func NewExamService(
	base context.Context,
	bank *questionbank.Bank,
	opts ExamOptions,
	rdb *redis.Client,
	overlay *OverlayStore,
	analyzer *ai.Analyzer,
	log zerolog.Logger,
) (*ExamService, error) {
	var machineOpts []exam.Option
	if opts.Clock != nil {
		machineOpts = append(machineOpts, exam.WithClock(opts.Clock))
	}
	if opts.IDGenerator != nil {
		machineOpts = append(machineOpts, exam.WithIDGenerator(opts.IDGenerator))
	}
	machine, err := exam.NewMachine(bank, opts.Duration, machineOpts...)
	if err != nil {
		return nil, fmt.Errorf("create machine: %w", err)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}

	s := &ExamService{
		machine:  machine,
		rdb:      rdb,
		overlay:  overlay,
		analyzer: analyzer,
		log:      log.With().Str("component", "exam_service").Logger(),
		base:     base,
	}
	s.collector = proctor.NewCollector(machine, &flagQueue{rdb: rdb}, proctor.Options{
		WarningTTL:  opts.WarningTTL,
		MaxWarnings: opts.MaxWarnings,
		Now:         opts.Clock,
	}, log)
	s.driver = worker.NewTimerDriver(opts.TickInterval, s, log)
	return s, nil
}

// Start begins a fresh session and arms the timer.
func (s *ExamService) Start(ctx context.Context, t model.ExamType) (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.machine.Start(t); err != nil {
		return model.SessionView{}, err
	}
	s.collector.Reset()
	s.driver.Arm(s.base)

	snap := s.machine.Snapshot()
	metrics.SessionsStarted.WithLabelValues(string(t)).Inc()
	s.log.Info().Str("session_id", snap.ID).Str("exam_type", string(t)).Msg("Exam session started")

	s.publish(ctx, snap)
	return s.view(snap), nil
}

// State returns the candidate view of the current session.
func (s *ExamService) State() (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.machine.Snapshot()
	if snap.Phase == model.PhaseIdle {
		return model.SessionView{}, ErrNoSession
	}
	return s.view(snap), nil
}

// CurrentSessionID returns the id of the session this process is running, empty while idle.
func (s *ExamService) CurrentSessionID() string {
	return s.machine.SessionID()
}

// Authorize checks that sessionID addresses the current session.
func (s *ExamService) Authorize(sessionID string) error {
	current := s.machine.SessionID()
	if current == "" {
		return ErrNoSession
	}
	if current != sessionID {
		return ErrSessionInvalidated
	}
	return nil
}

func (s *ExamService) Navigate(ctx context.Context, index int) (model.SessionView, error) {
	return s.apply(ctx, exam.Navigate(index))
}

func (s *ExamService) Next(ctx context.Context) (model.SessionView, error) {
	return s.apply(ctx, exam.Next())
}

func (s *ExamService) MarkAnswer(ctx context.Context, questionID, answer string) (model.SessionView, error) {
	return s.apply(ctx, exam.MarkAnswer(questionID, answer))
}

func (s *ExamService) ClearResponse(ctx context.Context, questionID string) (model.SessionView, error) {
	return s.apply(ctx, exam.ClearResponse(questionID))
}

func (s *ExamService) ToggleReview(ctx context.Context, questionID string) (model.SessionView, error) {
	return s.apply(ctx, exam.ToggleReview(questionID))
}

func (s *ExamService) ChangeSubject(ctx context.Context, subject model.Subject) (model.SessionView, error) {
	return s.apply(ctx, exam.ChangeSubject(subject))
}

// End submits the session. Ending an ended session is a no-op.
func (s *ExamService) End(ctx context.Context) (model.SessionView, error) {
	return s.apply(ctx, exam.End())
}

func (s *ExamService) apply(ctx context.Context, a exam.Action) (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.machine.Dispatch(a)
	if err != nil {
		return model.SessionView{}, err
	}
	snap := s.machine.Snapshot()
	if out.Ended {
		s.finish(snap)
	}
	if out.Changed {
		s.publish(ctx, snap)
	}
	return s.view(snap), nil
}

// Tick advances the clock by one period. It implements worker.Ticker.
// Ticks issued by a loop that has since been stopped or re-armed are discarded.
func (s *ExamService) Tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	out, err := s.machine.Dispatch(exam.Tick())
	if err != nil {
		return false
	}
	snap := s.machine.Snapshot()
	if out.Ended {
		s.finish(snap)
	}
	if out.Changed {
		s.publish(ctx, snap)
	}
	return snap.Phase == model.PhaseRunning
}

// finish runs once per session, on the transition that ended it.
func (s *ExamService) finish(snap model.SessionSnapshot) {
	s.driver.Stop()
	metrics.SessionsEnded.WithLabelValues(string(snap.EndReason)).Inc()

	report := scoring.Evaluate(snap.Questions, snap.Answers)
	s.log.Info().
		Str("session_id", snap.ID).
		Str("reason", string(snap.EndReason)).
		Int("score", report.Score).
		Int("flags", snap.FlagCount).
		Msg("Exam session ended")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.base), 5*time.Second)
	defer cancel()
	if err := s.enqueueResult(ctx, NewAttemptRecord(snap, report)); err != nil {
		s.log.Error().Err(err).Str("session_id", snap.ID).Msg("Failed to enqueue attempt result")
	}

	s.wg.Add(1)
	go s.analyze(snap)
}

// analyze writes the AI overlay for an ended session. The analyzer never fails,
// it degrades to offline or fallback texts.
func (s *ExamService) analyze(snap model.SessionSnapshot) {
	defer s.wg.Done()

	ctx := context.WithoutCancel(s.base)
	analysis := s.analyzer.AnalyzePerformance(ctx, snap.Questions, snap.Answers)
	if err := s.overlay.SaveAnalysis(ctx, snap.ID, analysis); err != nil {
		s.log.Error().Err(err).Str("session_id", snap.ID).Msg("Failed to store AI analysis")
		return
	}
	s.log.Info().Str("session_id", snap.ID).Str("source", string(analysis.Source)).Msg("AI analysis stored")
}

// Signal records a proctoring signal for the running session.
func (s *ExamService) Signal(ctx context.Context, sig model.ProctorSignal) (model.ProctorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.proctoring()
	if err != nil {
		return model.ProctorState{}, err
	}
	if _, err := s.collector.Observe(ctx, snap.ID, sig); err != nil {
		return model.ProctorState{}, err
	}
	return s.afterFlag(ctx)
}

// CameraCheck records the once-per-session camera permission result.
func (s *ExamService) CameraCheck(ctx context.Context, granted bool) (model.ProctorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.proctoring()
	if err != nil {
		return model.ProctorState{}, err
	}
	flagged, err := s.collector.CameraCheck(ctx, snap.ID, granted)
	if err != nil {
		return model.ProctorState{}, err
	}
	if !flagged {
		return s.collector.State(snap.ProctoringActive, snap.FlagCount), nil
	}
	return s.afterFlag(ctx)
}

// Proctor returns the collector state with live warnings.
func (s *ExamService) Proctor() (model.ProctorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.machine.Snapshot()
	if snap.Phase == model.PhaseIdle {
		return model.ProctorState{}, ErrNoSession
	}
	return s.collector.State(snap.ProctoringActive, snap.FlagCount), nil
}

func (s *ExamService) proctoring() (model.SessionSnapshot, error) {
	snap := s.machine.Snapshot()
	switch {
	case snap.Phase == model.PhaseIdle:
		return snap, ErrNoSession
	case !snap.ProctoringActive:
		return snap, ErrProctoringInactive
	}
	return snap, nil
}

func (s *ExamService) afterFlag(ctx context.Context) (model.ProctorState, error) {
	snap := s.machine.Snapshot()
	s.publish(ctx, snap)
	return s.collector.State(snap.ProctoringActive, snap.FlagCount), nil
}

// EndedSnapshot returns the snapshot of sessionID once it has ended.
func (s *ExamService) EndedSnapshot(sessionID string) (model.SessionSnapshot, error) {
	snap := s.machine.Snapshot()
	switch {
	case snap.Phase == model.PhaseIdle:
		return model.SessionSnapshot{}, ErrNoSession
	case snap.ID != sessionID:
		return model.SessionSnapshot{}, ErrSessionInvalidated
	case snap.Phase != model.PhaseEnded:
		return model.SessionSnapshot{}, ErrSessionNotEnded
	}
	return snap, nil
}

// Subscribe streams the published views of sessionID.
func (s *ExamService) Subscribe(ctx context.Context, sessionID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel(sessionID))
}

// Close stops the timer and waits for pending AI analyses.
func (s *ExamService) Close() {
	s.driver.Stop()
	s.driver.Wait()
	s.wg.Wait()
}

func (s *ExamService) view(snap model.SessionSnapshot) model.SessionView {
	v := snap.View()
	v.CameraBlocked = s.collector.CameraBlocked()
	return v
}

func (s *ExamService) publish(ctx context.Context, snap model.SessionSnapshot) {
	data, err := json.Marshal(s.view(snap))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal session view")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.rdb.Publish(ctx, config.CacheKey.SessionEventsChannel(snap.ID), data).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", snap.ID).Msg("Failed to publish session event")
	}
}

func (s *ExamService) enqueueResult(ctx context.Context, rec model.AttemptRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, data).Err()
}

// NewAttemptRecord builds the persisted form of an ended session.
func NewAttemptRecord(snap model.SessionSnapshot, report model.ScoreReport) model.AttemptRecord {
	rec := model.AttemptRecord{
		SessionID:   snap.ID,
		ExamType:    snap.ExamType,
		Title:       snap.Title,
		StartedAt:   snap.StartedAt,
		EndReason:   snap.EndReason,
		Score:       report.Score,
		MaxScore:    report.MaxScore,
		Correct:     report.CorrectCount,
		Incorrect:   report.IncorrectCount,
		Unattempted: report.UnattemptedCount,
		Accuracy:    report.Accuracy,
		FlagCount:   snap.FlagCount,
		Answers:     make([]model.AttemptAnswer, 0, len(report.Outcomes)),
	}
	if snap.EndedAt != nil {
		rec.EndedAt = *snap.EndedAt
	}
	for _, o := range report.Outcomes {
		ua := snap.Answers[o.QuestionID]
		status := ua.Status
		if status == "" {
			status = model.StatusNotVisited
		}
		rec.Answers = append(rec.Answers, model.AttemptAnswer{
			QuestionID: o.QuestionID,
			Answer:     ua.Answer,
			Status:     status,
			Verdict:    o.Verdict,
			TimeSpent:  o.TimeSpent,
		})
	}
	return rec
}

// flagQueue forwards proctoring flags to the persistence queue.
type flagQueue struct {
	rdb *redis.Client
}

func (q *flagQueue) Enqueue(ctx context.Context, ev model.FlagEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	return q.rdb.RPush(ctx, config.WorkerKey.PersistFlagsQueue, data).Err()
}
