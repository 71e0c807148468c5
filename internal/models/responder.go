package models

// Category - вид ответственной службы
type Category string

const (
	CategoryAmbulance     Category = "ambulance"
	CategoryPoliceStation Category = "police_station"
	CategoryHospital      Category = "hospital"
)

// DispatchOrder - порядок оповещения категорий, скорая помощь первой
var DispatchOrder = []Category{CategoryAmbulance, CategoryPoliceStation, CategoryHospital}

// Availability - доступность машины скорой помощи
type Availability string

const (
	AvailabilityAvailable Availability = "AVAILABLE"
	AvailabilityBusy      Availability = "BUSY"
	AvailabilityOffline   Availability = "OFFLINE"
)

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Responder - скорая, полицейский участок или больница.
// Availability заполняется только для скорой помощи.
type Responder struct {
	ID             string       `json:"id"`
	Category       Category     `json:"category"`
	Name           string       `json:"name"`
	Phone          string       `json:"phone"`
	Location       Point        `json:"location"`
	Address        string       `json:"address,omitempty"`
	Availability   Availability `json:"availability,omitempty"`
	DistanceMeters float64      `json:"distance_meters"`
}

// NearbyResponders - результат поиска по трем категориям
type NearbyResponders struct {
	Ambulances     []Responder `json:"ambulances"`
	PoliceStations []Responder `json:"police_stations"`
	Hospitals      []Responder `json:"hospitals"`
}

// ByCategory возвращает найденные службы одной категории
func (n NearbyResponders) ByCategory(c Category) []Responder {
	switch c {
	case CategoryAmbulance:
		return n.Ambulances
	case CategoryPoliceStation:
		return n.PoliceStations
	case CategoryHospital:
		return n.Hospitals
	}
	return nil
}
