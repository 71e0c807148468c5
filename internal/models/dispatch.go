package models

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelRealtime Channel = "realtime"
)

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// DispatchAttempt - итог доставки одному адресату
type DispatchAttempt struct {
	IncidentID        uuid.UUID `json:"incident_id"`
	Channel           Channel   `json:"channel"`
	Category          Category  `json:"category,omitempty"`
	TargetID          string    `json:"target_id"`
	Outcome           Outcome   `json:"outcome"`
	Reason            string    `json:"reason,omitempty"`
	Attempts          int       `json:"attempts"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// DispatchReport - сводка одного запуска диспетчеризации
type DispatchReport struct {
	IncidentID uuid.UUID         `json:"incident_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Located    map[Category]int  `json:"located"`
	Attempts   []DispatchAttempt `json:"attempts"`
	Error      string            `json:"error,omitempty"`
}

// Count возвращает число попыток с указанным итогом
func (r DispatchReport) Count(outcome Outcome) int {
	n := 0
	for _, a := range r.Attempts {
		if a.Outcome == outcome {
			n++
		}
	}
	return n
}

// AttemptsFor возвращает попытки по одной категории
func (r DispatchReport) AttemptsFor(c Category) []DispatchAttempt {
	var out []DispatchAttempt
	for _, a := range r.Attempts {
		if a.Category == c {
			out = append(out, a)
		}
	}
	return out
}
