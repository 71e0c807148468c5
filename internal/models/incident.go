package models

import (
	"time"

	"github.com/google/uuid"
)

// IncidentStatus - статус инцидента в конечном автомате проверки
type IncidentStatus string

const (
	StatusReported IncidentStatus = "reported"
	StatusVerified IncidentStatus = "verified"
	StatusRejected IncidentStatus = "rejected"
)

// IsTerminal сообщает, что из статуса нет переходов
func (s IncidentStatus) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// IsTransitionTarget сообщает, что оператор может перевести инцидент в этот статус
func (s IncidentStatus) IsTransitionTarget() bool {
	return s.IsTerminal()
}

// LocationSource - источник координат инцидента
type LocationSource string

const (
	SourceGPS    LocationSource = "gps"
	SourceManual LocationSource = "manual"
)

type Location struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Source    LocationSource `json:"source"`
	Address   string         `json:"address,omitempty"`
}

type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Format   string `json:"format,omitempty"`
}

// Incident - сообщение о ДТП. Ядро только читает его и меняет Status.
type Incident struct {
	ID          uuid.UUID      `json:"id"`
	PhoneNumber string         `json:"phone_number"`
	Description string         `json:"description"`
	Location    Location       `json:"location"`
	Images      []Image        `json:"images"`
	Status      IncidentStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
