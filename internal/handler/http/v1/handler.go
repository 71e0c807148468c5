package v1

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/config"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/shenikar/accident_dispatch_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	incidentService service.IncidentService
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(incidentService service.IncidentService, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// errorResponse сопоставляет ошибку сервиса с HTTP статусом
func errorResponse(err error) (int, gin.H) {
	switch {
	case errors.Is(err, models.ErrInvalidStatus):
		return http.StatusBadRequest, gin.H{"error": "invalid status: must be verified or rejected"}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": "incident not found"}
	case errors.Is(err, models.ErrAlreadyFinalized):
		return http.StatusConflict, gin.H{"error": "incident already verified or rejected"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal server error"}
	}
}

// @Summary Update incident status
// @Description Verify or reject a reported incident. Verification schedules responder dispatch in the background. Status may be sent in the body or as ?status=. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param status query string false "Target status (verified or rejected)"
// @Param request body UpdateStatusRequest false "Status update request"
// @Success 200 {object} IncidentStatusResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or status"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident already finalized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/incidents/{id}/status [patch]
func (h *Handler) updateIncidentStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "updateIncidentStatus").WithField("id", id)

	var input UpdateStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// Тело запроса имеет приоритет над query
	if input.Status == "" {
		input.Status = c.Query("status")
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidentService.TransitionStatus(c.Request.Context(), id, models.IncidentStatus(input.Status))
	if err != nil {
		status, body := errorResponse(err)
		if status == http.StatusInternalServerError {
			log.WithError(err).Error("Failed to update incident status in service")
		} else {
			log.WithError(err).Warn("Incident status not updated")
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, ModelToStatusResponse(incident))
}

// @Summary Get a list of incidents
// @Description Get a paginated list of incidents, latest first. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(10)
// @Success 200 {array} IncidentResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incident from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to get incident from service")
		c.JSON(errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get last dispatch report
// @Description Get the outcome of the last responder dispatch for a verified incident. Requires API key.
// @Tags Dispatch
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} DispatchReportResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Dispatch report not found"
// @Router /admin/incidents/{id}/dispatch [get]
func (h *Handler) getDispatchReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getDispatchReport").WithField("id", id)

	report, err := h.incidentService.GetDispatchReport(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Info("Dispatch report not available")
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dispatch report not found"})
			return
		}
		c.JSON(errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, ModelToDispatchReportResponse(report))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
