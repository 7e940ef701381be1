// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-backend/internal/services"
	"github.com/javajoker/storefront-backend/internal/utils"
)

type AdminHandler struct {
	dashboardService *services.DashboardService
	log              *logrus.Logger
}

func NewAdminHandler(dashboardService *services.DashboardService, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		dashboardService: dashboardService,
		log:              log,
	}
}

// GET /admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.dashboardService.GetDashboardStats(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to load dashboard stats")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, stats)
}
