package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршруты оператора, защищены API-ключом
	admin := api.Group("/admin", APIKeyAuthMiddleware(h.cfg, h.logger))
	{
		incidents := admin.Group("/incidents")
		incidents.GET("", h.listIncidents)
		incidents.GET("/:id", h.getIncident)
		incidents.PATCH("/:id/status", h.updateIncidentStatus)
		incidents.GET("/:id/dispatch", h.getDispatchReport)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
