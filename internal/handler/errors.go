package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/exam"
	"github.com/stemsi/exstem-mock/internal/proctor"
	"github.com/stemsi/exstem-mock/internal/repository"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
)

var domainErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrNoSession, http.StatusConflict, response.ErrNoSession},
	{service.ErrSessionInvalidated, http.StatusUnauthorized, response.ErrSessionInvalidated},
	{service.ErrSessionNotEnded, http.StatusConflict, response.ErrSessionNotEnded},
	{service.ErrProctoringInactive, http.StatusConflict, response.ErrProctoringInactive},
	{exam.ErrSessionNotStarted, http.StatusConflict, response.ErrSessionNotStarted},
	{exam.ErrSessionRunning, http.StatusConflict, response.ErrSessionRunning},
	{exam.ErrSessionEnded, http.StatusConflict, response.ErrSessionEnded},
	{exam.ErrUnknownExamType, http.StatusBadRequest, response.ErrUnknownExamType},
	{exam.ErrIndexOutOfRange, http.StatusBadRequest, response.ErrIndexOutOfRange},
	{exam.ErrUnknownQuestion, http.StatusNotFound, response.ErrUnknownQuestion},
	{exam.ErrInvalidAnswer, http.StatusBadRequest, response.ErrInvalidAnswer},
	{exam.ErrUnknownAction, http.StatusBadRequest, response.ErrUnknownAction},
	{proctor.ErrUnknownSignal, http.StatusBadRequest, response.ErrUnknownSignal},
	{repository.ErrInvalidRecord, http.StatusBadRequest, response.ErrInvalidID},
}

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.status, d.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failDomain writes the error response for err, logging anything unexpected.
func failDomain(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if code == response.ErrInternal {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
