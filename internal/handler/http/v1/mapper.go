package v1

import "github.com/shenikar/accident_dispatch_system/internal/models"

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	images := make([]ImageResponse, len(model.Images))
	for i, img := range model.Images {
		images[i] = ImageResponse{URL: img.URL, PublicID: img.PublicID, Format: img.Format}
	}
	return &IncidentResponse{
		ID:          model.ID,
		PhoneNumber: model.PhoneNumber,
		Description: model.Description,
		Location: LocationResponse{
			Latitude:  model.Location.Latitude,
			Longitude: model.Location.Longitude,
			Source:    string(model.Location.Source),
			Address:   model.Location.Address,
		},
		Images:    images,
		Status:    string(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

// ModelToStatusResponse возвращает краткую сводку инцидента после смены статуса
func ModelToStatusResponse(model *models.Incident) *IncidentStatusResponse {
	return &IncidentStatusResponse{
		ID:        model.ID,
		Status:    string(model.Status),
		UpdatedAt: model.UpdatedAt,
	}
}

// ModelToDispatchReportResponse преобразует отчет диспетчеризации в DTO
func ModelToDispatchReportResponse(report *models.DispatchReport) *DispatchReportResponse {
	attempts := make([]DispatchAttemptResponse, len(report.Attempts))
	for i, a := range report.Attempts {
		attempts[i] = DispatchAttemptResponse{
			Channel:           string(a.Channel),
			Category:          string(a.Category),
			TargetID:          a.TargetID,
			Outcome:           string(a.Outcome),
			Reason:            a.Reason,
			Attempts:          a.Attempts,
			ProviderMessageID: a.ProviderMessageID,
			Timestamp:         a.Timestamp,
		}
	}
	return &DispatchReportResponse{
		IncidentID: report.IncidentID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Located:    report.Located,
		Delivered:  report.Count(models.OutcomeDelivered),
		Skipped:    report.Count(models.OutcomeSkipped),
		Failed:     report.Count(models.OutcomeFailed),
		Attempts:   attempts,
		Error:      report.Error,
	}
}
