package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/ai"
	"github.com/stemsi/exstem-mock/internal/exam"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/questionbank"
)

type staticReader struct {
	snap model.SessionSnapshot
	err  error
}

func (r staticReader) EndedSnapshot(sessionID string) (model.SessionSnapshot, error) {
	if r.err != nil {
		return model.SessionSnapshot{}, r.err
	}
	if sessionID != r.snap.ID {
		return model.SessionSnapshot{}, ErrSessionInvalidated
	}
	return r.snap, nil
}

type countingGenerator struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (g *countingGenerator) Generate(_ context.Context, _ ai.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.text, g.err
}

func endedSnapshot(t *testing.T) model.SessionSnapshot {
	t.Helper()
	bank, err := questionbank.Default()
	if err != nil {
		t.Fatal(err)
	}
	m, err := exam.NewMachine(bank, time.Hour, exam.WithIDGenerator(func() string { return "session-r" }))
	if err != nil {
		t.Fatal(err)
	}
	steps := []func() (exam.Outcome, error){
		func() (exam.Outcome, error) { return m.Start(model.ExamTypeJEEMain) },
		func() (exam.Outcome, error) { return m.MarkAnswer("p1", "0") },
		func() (exam.Outcome, error) { return m.MarkAnswer("p2", "1") },
		func() (exam.Outcome, error) { return m.MarkAnswer("c2", "6") },
		func() (exam.Outcome, error) { return m.FlagActivity("Tab Switch") },
		func() (exam.Outcome, error) { return m.End() },
	}
	for _, step := range steps {
		if _, err := step(); err != nil {
			t.Fatal(err)
		}
	}
	return m.Snapshot()
}

func newResultService(t *testing.T, reader SessionReader, gen ai.Generator) (*ResultService, *OverlayStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	overlay := NewOverlayStore(rdb, time.Hour)
	analyzer := ai.NewAnalyzer(gen, time.Second, zerolog.Nop())
	return NewResultService(reader, overlay, analyzer, zerolog.Nop()), overlay
}

func TestResultService_ReportPendingThenReady(t *testing.T) {
	snap := endedSnapshot(t)
	svc, overlay := newResultService(t, staticReader{snap: snap}, nil)
	ctx := context.Background()

	res, err := svc.Report(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if res.AIStatus != model.AIStatusPending || res.AISource != "" {
		t.Errorf("status = %s source = %s, want pending", res.AIStatus, res.AISource)
	}
	a := res.Analysis
	if a.Score != 7 || a.CorrectCount != 2 || a.IncorrectCount != 1 || a.UnattemptedCount != 4 || a.MaxScore != 28 {
		t.Errorf("analysis = %+v", a)
	}
	if res.FlagCount != 1 || res.Title != "JEE MAIN Mock Test" || res.EndReason != model.EndReasonSubmitted {
		t.Errorf("header = %+v", res)
	}
	if len(a.WeakTopics) != 0 || a.WeakTopics == nil {
		t.Errorf("weak topics should be an empty list, got %#v", a.WeakTopics)
	}

	if len(res.Review) != 7 {
		t.Fatalf("review rows = %d, want 7", len(res.Review))
	}
	p1, p2, p3, c2 := res.Review[0], res.Review[1], res.Review[2], res.Review[4]
	if p1.Verdict != model.VerdictCorrect || p1.YourAnswer != "10 m" || p1.CorrectAnswer != "10 m" {
		t.Errorf("p1 row = %+v", p1)
	}
	if p2.Verdict != model.VerdictIncorrect || p2.YourAnswer != "2V" || p2.CorrectAnswer != "3V" {
		t.Errorf("p2 row = %+v", p2)
	}
	if p3.Verdict != model.VerdictUnattempted || p3.YourAnswer != "Not Attempted" {
		t.Errorf("p3 row = %+v", p3)
	}
	if c2.Verdict != model.VerdictCorrect || c2.YourAnswer != "6" || c2.CorrectAnswer != "6" {
		t.Errorf("c2 row = %+v", c2)
	}

	err = overlay.SaveAnalysis(ctx, snap.ID, model.AIAnalysis{
		WeakTopics:      []string{"Electrostatics"},
		StrongTopics:    []string{"Kinematics"},
		Recommendation:  "Revise capacitors.",
		ImprovementPlan: "Day 1: capacitors",
		Source:          model.SourceAI,
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err = svc.Report(ctx, snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.AIStatus != model.AIStatusReady || res.AISource != model.SourceAI {
		t.Errorf("status = %s source = %s, want ready/ai", res.AIStatus, res.AISource)
	}
	if len(res.Analysis.WeakTopics) != 1 || res.Analysis.Recommendation != "Revise capacitors." {
		t.Errorf("merged analysis = %+v", res.Analysis)
	}
	// scoring is independent of the overlay
	if res.Analysis.Score != 7 {
		t.Errorf("score changed after overlay: %d", res.Analysis.Score)
	}
}

func TestResultService_MissingSolutionFallback(t *testing.T) {
	snap := endedSnapshot(t)
	snap.Questions[0].Solution = ""
	svc, _ := newResultService(t, staticReader{snap: snap}, nil)

	res, err := svc.Report(context.Background(), snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Review[0].Solution != "Solution not provided in standard key." {
		t.Errorf("solution = %q", res.Review[0].Solution)
	}
}

func TestResultService_ReaderErrors(t *testing.T) {
	svc, _ := newResultService(t, staticReader{err: ErrSessionNotEnded}, nil)
	if _, err := svc.Report(context.Background(), "x"); !errors.Is(err, ErrSessionNotEnded) {
		t.Errorf("Report err = %v", err)
	}
	if _, err := svc.Explain(context.Background(), "x", "p1"); !errors.Is(err, ErrSessionNotEnded) {
		t.Errorf("Explain err = %v", err)
	}
}

func TestResultService_ExplainCachesAIOutput(t *testing.T) {
	snap := endedSnapshot(t)
	gen := &countingGenerator{text: "  Use v = u cos(theta) at the top.  "}
	svc, _ := newResultService(t, staticReader{snap: snap}, gen)
	ctx := context.Background()

	exp, err := svc.Explain(ctx, snap.ID, "p1")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if exp.Source != model.SourceAI || exp.Text != "Use v = u cos(theta) at the top." {
		t.Errorf("explanation = %+v", exp)
	}
	if _, err := svc.Explain(ctx, snap.ID, "p1"); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}

	res, err := svc.Report(ctx, snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Review[0].Explanation != exp.Text {
		t.Errorf("review explanation = %q", res.Review[0].Explanation)
	}

	if _, err := svc.Explain(ctx, snap.ID, "zz"); !errors.Is(err, exam.ErrUnknownQuestion) {
		t.Errorf("unknown question err = %v", err)
	}
}

func TestResultService_ExplainFallbackNotCached(t *testing.T) {
	snap := endedSnapshot(t)
	gen := &countingGenerator{err: errors.New("quota exceeded")}
	svc, _ := newResultService(t, staticReader{snap: snap}, gen)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		exp, err := svc.Explain(ctx, snap.ID, "p3")
		if err != nil {
			t.Fatal(err)
		}
		if exp.Text != ai.FailureExplanation || exp.Source != model.SourceFallback {
			t.Errorf("explanation = %+v", exp)
		}
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
}

func TestResultService_ExplainSurvivesClientCancel(t *testing.T) {
	snap := endedSnapshot(t)
	gen := &countingGenerator{text: "Balanced."}
	svc, overlay := newResultService(t, staticReader{snap: snap}, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exp, err := svc.Explain(ctx, snap.ID, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if exp.Source != model.SourceAI {
		t.Fatalf("explanation = %+v", exp)
	}
	cached, err := overlay.Explanation(context.Background(), snap.ID, "c1")
	if err != nil || cached == nil || cached.Text != "Balanced." {
		t.Errorf("cached = %+v err = %v", cached, err)
	}
}
