package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
	"github.com/stemsi/exstem-mock/internal/validator"
)

// ExamHandler handles the live exam session endpoints.
type ExamHandler struct {
	examService  *service.ExamService
	tokenService *service.TokenService
	log          zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, tokenService *service.TokenService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService:  examService,
		tokenService: tokenService,
		log:          log.With().Str("component", "exam_handler").Logger(),
	}
}

// StartExam godoc
// POST /api/v1/exam/start
// Starts a new session and returns it together with its session token.
func (h *ExamHandler) StartExam(c *gin.Context) {
	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.examService.Start(c.Request.Context(), req.ExamType)
	if err != nil {
		failDomain(c, h.log, err)
		return
	}

	token, err := h.tokenService.Issue(view.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to issue session token")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": view, "token": token})
}

// GetState godoc
// GET /api/v1/exam/state
func (h *ExamHandler) GetState(c *gin.Context) {
	view, err := h.examService.State()
	if err != nil {
		failDomain(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Navigate godoc
// POST /api/v1/exam/navigate
// Jumps to a palette index.
func (h *ExamHandler) Navigate(c *gin.Context) {
	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.respond(c)(h.examService.Navigate(c.Request.Context(), *req.Index))
}

// Next godoc
// POST /api/v1/exam/next
// Save & Next. A no-op on the last question.
func (h *ExamHandler) Next(c *gin.Context) {
	h.respond(c)(h.examService.Next(c.Request.Context()))
}

// MarkAnswer godoc
// POST /api/v1/exam/answer
// Stores an answer. An empty answer clears the response.
func (h *ExamHandler) MarkAnswer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.respond(c)(h.examService.MarkAnswer(c.Request.Context(), req.QuestionID, req.Answer))
}

// ClearResponse godoc
// POST /api/v1/exam/clear
func (h *ExamHandler) ClearResponse(c *gin.Context) {
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.respond(c)(h.examService.ClearResponse(c.Request.Context(), req.QuestionID))
}

// ToggleReview godoc
// POST /api/v1/exam/review
func (h *ExamHandler) ToggleReview(c *gin.Context) {
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.respond(c)(h.examService.ToggleReview(c.Request.Context(), req.QuestionID))
}

// ChangeSubject godoc
// POST /api/v1/exam/subject
// Moves to the first question of a section.
func (h *ExamHandler) ChangeSubject(c *gin.Context) {
	var req model.ChangeSubjectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.respond(c)(h.examService.ChangeSubject(c.Request.Context(), req.Subject))
}

// EndExam godoc
// POST /api/v1/exam/end
// Submits the test. Submitting twice is harmless.
func (h *ExamHandler) EndExam(c *gin.Context) {
	h.respond(c)(h.examService.End(c.Request.Context()))
}

// CameraCheck godoc
// POST /api/v1/exam/proctor/camera
func (h *ExamHandler) CameraCheck(c *gin.Context) {
	var req model.CameraCheckRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !*req.Granted {
		h.log.Warn().Str("detail", req.Detail).Msg("Camera permission denied")
	}

	state, err := h.examService.CameraCheck(c.Request.Context(), *req.Granted)
	if err != nil {
		failDomain(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// ReportSignal godoc
// POST /api/v1/exam/proctor/signal
// Records a tab switch, fullscreen exit or camera denial.
func (h *ExamHandler) ReportSignal(c *gin.Context) {
	var req model.SignalRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.examService.Signal(c.Request.Context(), req.Signal)
	if err != nil {
		failDomain(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// GetWarnings godoc
// GET /api/v1/exam/proctor/warnings
func (h *ExamHandler) GetWarnings(c *gin.Context) {
	state, err := h.examService.Proctor()
	if err != nil {
		failDomain(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

func (h *ExamHandler) respond(c *gin.Context) func(model.SessionView, error) {
	return func(view model.SessionView, err error) {
		if err != nil {
			failDomain(c, h.log, err)
			return
		}
		response.Success(c, http.StatusOK, view)
	}
}
