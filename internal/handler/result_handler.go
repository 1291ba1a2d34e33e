package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/middleware"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
)

// ResultHandler serves the results screen.
type ResultHandler struct {
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

// GetResults godoc
// GET /api/v1/exam/results
// Returns the score report immediately; ai_status tells whether the AI overlay has arrived.
func (h *ResultHandler) GetResults(c *gin.Context) {
	report, err := h.resultService.Report(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		failDomain(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// ExplainQuestion godoc
// POST /api/v1/exam/results/questions/:question_id/explain
func (h *ResultHandler) ExplainQuestion(c *gin.Context) {
	questionID := c.Param("question_id")
	if questionID == "" || len(questionID) > 64 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exp, err := h.resultService.Explain(c.Request.Context(), middleware.GetSessionID(c), questionID)
	if err != nil {
		failDomain(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, exp)
}
