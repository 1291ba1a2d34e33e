package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
)

// DashboardHandler serves the selection and instructions screen.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboardData godoc
// GET /api/v1/dashboard
// Returns the candidate profile, exam types, sections, duration and exam rules.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	response.Success(c, http.StatusOK, h.dashboardService.GetDashboardData())
}
