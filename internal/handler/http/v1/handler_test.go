package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/config"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/shenikar/accident_dispatch_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var apiKeyHeader = map[string]string{"X-API-Key": "test-api-key"}

// newTestHandler создает новый экземпляр Handler с мокированным сервисом
func newTestHandler(t *testing.T) (*Handler, *mocks.MockIncidentService, *gin.Engine) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockIncidentService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys: []string{"test-api-key"},
	}

	handler := NewHandler(mockService, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return handler, mockService, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func statusURL(id string) string {
	return fmt.Sprintf("/api/v1/admin/incidents/%s/status", id)
}

func TestUpdateIncidentStatus_Verified(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	updatedAt := time.Date(2026, 10, 14, 7, 15, 30, 0, time.UTC)

	mockService.EXPECT().
		TransitionStatus(gomock.Any(), incidentID, models.StatusVerified).
		Return(&models.Incident{ID: incidentID, Status: models.StatusVerified, UpdatedAt: updatedAt}, nil).
		Times(1)

	w := makeRequest(router, http.MethodPatch, statusURL(incidentID.String()), bytes.NewBufferString(`{"status":"verified"}`), apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incidentID, resp.ID)
	assert.Equal(t, "verified", resp.Status)
	assert.True(t, updatedAt.Equal(resp.UpdatedAt))
	assert.Contains(t, w.Body.String(), `"updatedAt"`)
}

func TestUpdateIncidentStatus_FromQuery(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().
		TransitionStatus(gomock.Any(), incidentID, models.StatusRejected).
		Return(&models.Incident{ID: incidentID, Status: models.StatusRejected}, nil).
		Times(1)

	w := makeRequest(router, http.MethodPatch, statusURL(incidentID.String())+"?status=rejected", nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"rejected"`)
}

func TestUpdateIncidentStatus_BodyWinsOverQuery(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().
		TransitionStatus(gomock.Any(), incidentID, models.StatusVerified).
		Return(&models.Incident{ID: incidentID, Status: models.StatusVerified}, nil).
		Times(1)

	w := makeRequest(router, http.MethodPatch, statusURL(incidentID.String())+"?status=rejected", bytes.NewBufferString(`{"status":"verified"}`), apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateIncidentStatus_InvalidStatus(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().TransitionStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	for _, body := range []string{`{"status":"reported"}`, `{"status":"closed"}`, `{}`} {
		w := makeRequest(router, http.MethodPatch, statusURL(uuid.NewString()), bytes.NewBufferString(body), apiKeyHeader)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestUpdateIncidentStatus_InvalidJSON(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().TransitionStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, http.MethodPatch, statusURL(uuid.NewString()), bytes.NewBufferString(`{"status": "verified"`), apiKeyHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestUpdateIncidentStatus_InvalidID(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().TransitionStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, http.MethodPatch, statusURL("not-a-uuid"), bytes.NewBufferString(`{"status":"verified"}`), apiKeyHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestUpdateIncidentStatus_ServiceErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "invalid status", err: fmt.Errorf("service: %w", models.ErrInvalidStatus), wantCode: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("service: %w", models.ErrNotFound), wantCode: http.StatusNotFound},
		{name: "already finalized", err: fmt.Errorf("service: %w", models.ErrAlreadyFinalized), wantCode: http.StatusConflict},
		{name: "internal", err: errors.New("database is down"), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, mockService, router := newTestHandler(t)
			incidentID := uuid.New()

			mockService.EXPECT().
				TransitionStatus(gomock.Any(), incidentID, models.StatusVerified).
				Return(nil, tc.err).
				Times(1)

			w := makeRequest(router, http.MethodPatch, statusURL(incidentID.String()), bytes.NewBufferString(`{"status":"verified"}`), apiKeyHeader)

			assert.Equal(t, tc.wantCode, w.Code)
			assert.NotContains(t, w.Body.String(), "database is down")
		})
	}
}

func TestAdminRoutes_RequireAPIKey(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().TransitionStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	mockService.EXPECT().ListIncidents(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, http.MethodPatch, statusURL(uuid.NewString()), bytes.NewBufferString(`{"status":"verified"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "API key required")

	w = makeRequest(router, http.MethodGet, "/api/v1/admin/incidents", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}

func TestAdminRoutes_BearerAPIKey(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().ListIncidents(gomock.Any(), 1, 10).Return([]*models.Incident{}, nil).Times(1)

	w := makeRequest(router, http.MethodGet, "/api/v1/admin/incidents", nil, map[string]string{"Authorization": "Bearer test-api-key"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListIncidents_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	expected := []*models.Incident{
		{ID: uuid.New(), Description: "Incident 1", Status: models.StatusReported},
		{ID: uuid.New(), Description: "Incident 2", Status: models.StatusVerified},
	}

	mockService.EXPECT().ListIncidents(gomock.Any(), 2, 5).Return(expected, nil).Times(1)

	w := makeRequest(router, http.MethodGet, "/api/v1/admin/incidents?page=2&pageSize=5", nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, expected[0].ID, resp[0].ID)
	assert.Equal(t, "verified", resp[1].Status)
}

func TestListIncidents_ServiceError(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().ListIncidents(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("boom")).Times(1)

	w := makeRequest(router, http.MethodGet, "/api/v1/admin/incidents", nil, apiKeyHeader)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetIncident_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	incident := &models.Incident{
		ID:          incidentID,
		PhoneNumber: "9812345678",
		Description: "Truck blocking the road",
		Location: models.Location{
			Latitude:  27.7172,
			Longitude: 85.324,
			Source:    models.SourceManual,
			Address:   "Thamel, Kathmandu",
		},
		Images: []models.Image{{URL: "https://img.example/1.jpg", PublicID: "1"}},
		Status: models.StatusReported,
	}

	mockService.EXPECT().GetIncident(gomock.Any(), incidentID).Return(incident, nil).Times(1)

	w := makeRequest(router, http.MethodGet, "/api/v1/admin/incidents/"+incidentID.String(), nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Thamel, Kathmandu", resp.Location.Address)
	assert.Equal(t, "manual", resp.Location.Source)
	require.Len(t, resp.Images, 1)
	assert.Equal(t, "reported", resp.Status)
}

func TestGetIncident_NotFound(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().GetIncident(gomock.Any(), incidentID).Return(nil, fmt.Errorf("service: %w", models.ErrNotFound)).Times(1)

	w := makeRequest(router, http.MethodGet, "/api/v1/admin/incidents/"+incidentID.String(), nil, apiKeyHeader)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "incident not found")
}

func TestGetDispatchReport_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	report := &models.DispatchReport{
		IncidentID: incidentID,
		Located:    map[models.Category]int{models.CategoryAmbulance: 1, models.CategoryHospital: 2},
		Attempts: []models.DispatchAttempt{
			{Channel: models.ChannelRealtime, TargetID: "all", Outcome: models.OutcomeDelivered, Attempts: 1},
			{Channel: models.ChannelWhatsApp, Category: models.CategoryAmbulance, TargetID: "amb-1", Outcome: models.OutcomeFailed, Attempts: 3},
			{Channel: models.ChannelWhatsApp, Category: models.CategoryHospital, TargetID: "hosp-1", Outcome: models.OutcomeDelivered, Attempts: 1},
		},
	}

	mockService.EXPECT().GetDispatchReport(gomock.Any(), incidentID).Return(report, nil).Times(1)

	w := makeRequest(router, http.MethodGet, "/api/v1/admin/incidents/"+incidentID.String()+"/dispatch", nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp DispatchReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incidentID, resp.IncidentID)
	assert.Equal(t, 2, resp.Delivered)
	assert.Equal(t, 1, resp.Failed)
	assert.Len(t, resp.Attempts, 3)
	assert.Equal(t, 2, resp.Located[models.CategoryHospital])
}

func TestGetDispatchReport_NotFound(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().GetDispatchReport(gomock.Any(), incidentID).Return(nil, fmt.Errorf("service: %w", models.ErrNotFound)).Times(1)

	w := makeRequest(router, http.MethodGet, "/api/v1/admin/incidents/"+incidentID.String()+"/dispatch", nil, apiKeyHeader)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "dispatch report not found")
}

func TestHealthCheck(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, http.MethodGet, "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
