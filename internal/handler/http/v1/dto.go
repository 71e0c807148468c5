package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/models"
)

// UpdateStatusRequest DTO для смены статуса инцидента
// @Description DTO для смены статуса инцидента. Статус можно передать и в query ?status=
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=verified rejected"`
}

// IncidentStatusResponse DTO для ответа на смену статуса
// @Description DTO для ответа на смену статуса
type IncidentStatusResponse struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID          uuid.UUID        `json:"id"`
	PhoneNumber string           `json:"phone_number"`
	Description string           `json:"description"`
	Location    LocationResponse `json:"location"`
	Images      []ImageResponse  `json:"images"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source"`
	Address   string  `json:"address,omitempty"`
}

type ImageResponse struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Format   string `json:"format,omitempty"`
}

// DispatchReportResponse DTO для отчета диспетчеризации
// @Description DTO для отчета диспетчеризации
type DispatchReportResponse struct {
	IncidentID uuid.UUID                 `json:"incident_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Located    map[models.Category]int   `json:"located"`
	Delivered  int                       `json:"delivered"`
	Skipped    int                       `json:"skipped"`
	Failed     int                       `json:"failed"`
	Attempts   []DispatchAttemptResponse `json:"attempts"`
	Error      string                    `json:"error,omitempty"`
}

type DispatchAttemptResponse struct {
	Channel           string    `json:"channel"`
	Category          string    `json:"category,omitempty"`
	TargetID          string    `json:"target_id"`
	Outcome           string    `json:"outcome"`
	Reason            string    `json:"reason,omitempty"`
	Attempts          int       `json:"attempts"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
