package geo

import (
	"math"

	"github.com/shenikar/accident_dispatch_system/internal/models"
)

// earthRadiusMeters - средний радиус Земли (WGS 84)
const earthRadiusMeters = 6371008.8

// Distance возвращает расстояние по большому кругу между двумя точками в метрах
func Distance(a, b models.Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
