package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/ai"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/handler"
	"github.com/stemsi/exstem-mock/internal/middleware"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/questionbank"
	"github.com/stemsi/exstem-mock/internal/service"
	"github.com/stemsi/exstem-mock/internal/validator"
	ws "github.com/stemsi/exstem-mock/internal/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type emptyAttempts struct{}

func (emptyAttempts) ListAttempts(context.Context, int) ([]model.AttemptSummary, error) {
	return nil, nil
}

func (emptyAttempts) GetAttemptAnswers(context.Context, string) ([]model.AttemptAnswer, error) {
	return nil, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	rdb    *redis.Client
	exam   *service.ExamService
}

func newTestServer(t *testing.T, db handler.Pinger) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		GinMode:              gin.TestMode,
		JWTSecret:            "router-test-secret",
		JWTExpiry:            time.Hour,
		ExplainRatePerMinute: 2,
	}
	log := zerolog.Nop()

	bank, err := questionbank.Default()
	if err != nil {
		t.Fatal(err)
	}
	analyzer := ai.NewAnalyzer(nil, time.Second, log)
	overlay := service.NewOverlayStore(rdb, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	examService, err := service.NewExamService(ctx, bank, service.ExamOptions{
		Duration:     time.Hour,
		TickInterval: time.Hour,
		WarningTTL:   time.Minute,
		MaxWarnings:  3,
	}, rdb, overlay, analyzer, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		examService.Close()
	})

	tokens := service.NewTokenService(cfg)
	resultService := service.NewResultService(examService, overlay, analyzer, log)
	historyService := service.NewHistoryService(emptyAttempts{})
	dashboardService := service.NewDashboardService(bank, model.Candidate{Name: "Test Candidate"}, time.Hour)

	handlers := &Handlers{
		Exam:      handler.NewExamHandler(examService, tokens, log),
		Result:    handler.NewResultHandler(resultService, log),
		History:   handler.NewHistoryHandler(historyService, log),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		WS:        handler.NewWSHandler(examService, log, nil),
		System:    handler.NewSystemHandler(db, rdb, log),
	}
	deps := Deps{
		Tokens:         tokens,
		Sessions:       examService,
		ExplainLimiter: middleware.NewRateLimiter(cfg.ExplainRatePerMinute, time.Minute),
	}
	return &testServer{engine: SetupRouter(handlers, deps, cfg), rdb: rdb, exam: examService}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func (s *testServer) start(t *testing.T) (model.SessionView, string) {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/exam/start", "", gin.H{"exam_type": "JEE_MAIN"})
	if code != http.StatusCreated {
		t.Fatalf("start: got %d", code)
	}
	var out struct {
		Session model.SessionView `json:"session"`
		Token   string            `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Token == "" {
		t.Fatal("start: empty token")
	}
	return out.Session, out.Token
}

func TestRouter_ExamFlow(t *testing.T) {
	s := newTestServer(t, pinger{})
	session, token := s.start(t)
	if !session.Active || session.TimeLeft != 3600 {
		t.Fatalf("unexpected fresh session: active=%v time_left=%d", session.Active, session.TimeLeft)
	}

	code, env := s.do(t, http.MethodPost, "/api/v1/exam/answer", token, gin.H{"question_id": "p1", "answer": "0"})
	if code != http.StatusOK {
		t.Fatalf("answer: got %d", code)
	}
	var view model.SessionView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatal(err)
	}
	if got := view.Answers["p1"].Status; got != model.StatusAnswered {
		t.Errorf("p1 status = %s, want %s", got, model.StatusAnswered)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/v1/exam/results", token, nil); code != http.StatusConflict {
		t.Errorf("results before end: got %d, want 409", code)
	}

	if code, _ := s.do(t, http.MethodPost, "/api/v1/exam/end", token, nil); code != http.StatusOK {
		t.Fatalf("end: got %d", code)
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/exam/results", token, nil)
	if code != http.StatusOK {
		t.Fatalf("results: got %d", code)
	}
	var report model.ResultReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Analysis.Score != 4 || report.Analysis.CorrectCount != 1 {
		t.Errorf("score = %d correct = %d, want 4 and 1", report.Analysis.Score, report.Analysis.CorrectCount)
	}
	if report.AIStatus != model.AIStatusPending && report.AIStatus != model.AIStatusReady {
		t.Errorf("unexpected ai status %q", report.AIStatus)
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/exam/results/questions/p2/explain", token, nil)
	if code != http.StatusOK {
		t.Fatalf("explain: got %d", code)
	}
	var exp model.Explanation
	if err := json.Unmarshal(env.Data, &exp); err != nil {
		t.Fatal(err)
	}
	if exp.QuestionID != "p2" || exp.Text == "" {
		t.Errorf("unexpected explanation %+v", exp)
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newTestServer(t, pinger{})

	code, env := s.do(t, http.MethodPost, "/api/v1/exam/start", "", gin.H{"exam_type": "GATE"})
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("bad exam type: got %d %+v", code, env.Error)
	}
	if _, ok := env.Error.Fields["exam_type"]; !ok {
		t.Errorf("expected a field error for exam_type, got %v", env.Error.Fields)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/v1/exam/state", "", nil); code != http.StatusUnauthorized {
		t.Errorf("state without token: got %d, want 401", code)
	}

	_, first := s.start(t)
	if code, env := s.do(t, http.MethodPost, "/api/v1/exam/start", "", gin.H{"exam_type": "NEET"}); code != http.StatusConflict || env.Error == nil || env.Error.Code != "SESSION_RUNNING" {
		t.Fatalf("start while running: got %d %+v", code, env.Error)
	}
	s.do(t, http.MethodPost, "/api/v1/exam/end", first, nil)
	_, second := s.start(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"stale token", http.MethodGet, "/api/v1/exam/state", first, nil, http.StatusUnauthorized, "SESSION_INVALIDATED"},
		{"index out of range", http.MethodPost, "/api/v1/exam/navigate", second, gin.H{"index": 999}, http.StatusBadRequest, "INDEX_OUT_OF_RANGE"},
		{"unknown question", http.MethodPost, "/api/v1/exam/answer", second, gin.H{"question_id": "zz", "answer": "1"}, http.StatusNotFound, "UNKNOWN_QUESTION"},
		{"invalid option", http.MethodPost, "/api/v1/exam/answer", second, gin.H{"question_id": "p1", "answer": "9"}, http.StatusBadRequest, "INVALID_ANSWER"},
		{"unknown signal", http.MethodPost, "/api/v1/exam/proctor/signal", second, gin.H{"signal": "blink"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"results while running", http.MethodGet, "/api/v1/exam/results", second, nil, http.StatusConflict, "SESSION_NOT_ENDED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, tt.method, tt.path, tt.token, tt.body)
			if code != tt.status {
				t.Fatalf("got status %d, want %d", code, tt.status)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Fatalf("got error %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestRouter_ProctoringAfterEnd(t *testing.T) {
	s := newTestServer(t, pinger{})
	_, token := s.start(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/exam/proctor/signal", token, gin.H{"signal": "visibility_hidden"})
	if code != http.StatusOK {
		t.Fatalf("signal: got %d", code)
	}
	var state model.ProctorState
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.FlagCount != 1 || len(state.Warnings) != 1 {
		t.Errorf("flags = %d warnings = %d, want 1 and 1", state.FlagCount, len(state.Warnings))
	}

	s.do(t, http.MethodPost, "/api/v1/exam/end", token, nil)

	code, env = s.do(t, http.MethodPost, "/api/v1/exam/proctor/signal", token, gin.H{"signal": "fullscreen_exit"})
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != "PROCTORING_INACTIVE" {
		t.Fatalf("signal after end: got %d %+v", code, env.Error)
	}
}

func TestRouter_ExplainRateLimited(t *testing.T) {
	s := newTestServer(t, pinger{})
	_, token := s.start(t)
	s.do(t, http.MethodPost, "/api/v1/exam/end", token, nil)

	path := "/api/v1/exam/results/questions/p1/explain"
	for i := 0; i < 2; i++ {
		if code, _ := s.do(t, http.MethodPost, path, token, nil); code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, code)
		}
	}
	code, env := s.do(t, http.MethodPost, path, token, nil)
	if code != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("third request: got %d %+v", code, env.Error)
	}
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name   string
		db     handler.Pinger
		status int
	}{
		{"healthy", pinger{}, http.StatusOK},
		{"postgres down", pinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.db)
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("got %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestRouter_Dashboard(t *testing.T) {
	s := newTestServer(t, pinger{})
	code, env := s.do(t, http.MethodGet, "/api/v1/dashboard", "", nil)
	if code != http.StatusOK {
		t.Fatalf("got %d", code)
	}
	var d model.Dashboard
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.Candidate.Name != "Test Candidate" {
		t.Errorf("candidate = %q", d.Candidate.Name)
	}
}

func TestRouter_WebSocketStream(t *testing.T) {
	s := newTestServer(t, pinger{})
	_, token := s.start(t)

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/exam/stream?token=" + token
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	readState := func(match func(model.SessionView) bool) {
		t.Helper()
		for {
			var msg ws.StateResponse
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("read: %v", err)
			}
			if msg.Event != ws.EventState {
				continue
			}
			var view model.SessionView
			if err := json.Unmarshal(msg.Data, &view); err != nil {
				t.Fatal(err)
			}
			if match(view) {
				return
			}
		}
	}

	readState(func(v model.SessionView) bool { return v.Active })

	if err := conn.WriteJSON(ws.RequestPayload{Action: ws.ActionAnswer, QuestionID: "p1", Answer: "2"}); err != nil {
		t.Fatal(err)
	}
	readState(func(v model.SessionView) bool { return v.Answers["p1"].AnswerValue() == "2" })

	if err := conn.WriteJSON(ws.RequestPayload{Action: ws.ActionSubmit}); err != nil {
		t.Fatal(err)
	}
	readState(func(v model.SessionView) bool { return !v.Active && v.EndReason == model.EndReasonSubmitted })
}
