package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/models"
)

// Исходящие события
const (
	EventNewEmergency     = "new-emergency"
	EventIncidentAccepted = "incident-accepted"
	EventError            = "error"
)

// Входящие события от клиентов служб
const (
	EventJoinZone         = "join-zone"
	EventAmbulanceOnline  = "ambulance-online"
	EventAmbulanceOffline = "ambulance-offline"
	EventAcceptIncident   = "accept-incident"
)

// RoomAmbulances объединяет клиентов скорой помощи, отметившихся онлайн
const RoomAmbulances = "ambulances"

// ZoneRoom возвращает имя комнаты зоны
func ZoneRoom(zoneID string) string {
	return "zone-" + zoneID
}

// AmbulanceRoom возвращает персональную комнату машины скорой помощи
func AmbulanceRoom(ambulanceID string) string {
	return "ambulance-" + ambulanceID
}

// Event - исходящее событие. Пустой Room означает всех подключенных клиентов.
type Event struct {
	Name string `json:"event"`
	Room string `json:"-"`
	Data any    `json:"data"`
}

// Message - входящее сообщение клиента
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type NewEmergency struct {
	AccidentID  uuid.UUID       `json:"accidentId"`
	Location    models.Location `json:"location"`
	Description string          `json:"description"`
	Time        time.Time       `json:"time"`
}

type IncidentAccepted struct {
	IncidentID  string `json:"incidentId"`
	ResponderID string `json:"responderId"`
}

// NewEmergencyEvent строит событие new-emergency для всех клиентов
func NewEmergencyEvent(incident models.Incident) Event {
	return Event{
		Name: EventNewEmergency,
		Data: NewEmergency{
			AccidentID:  incident.ID,
			Location:    incident.Location,
			Description: incident.Description,
			Time:        incident.CreatedAt,
		},
	}
}
