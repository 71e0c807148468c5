package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shenikar/accident_dispatch_system/internal/models"
)

// timestampLayout повторяет en-US toLocaleString: 1/2/2006, 3:04:05 PM
const timestampLayout = "1/2/2006, 3:04:05 PM"

// Composer собирает текст оповещения об инциденте.
// Compose - чистая функция: одинаковые поля дают побайтно одинаковый текст.
type Composer struct {
	location *time.Location
}

// NewComposer создает Composer, форматирующий время в часовом поясе loc
func NewComposer(loc *time.Location) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	return &Composer{location: loc}
}

func (c *Composer) Compose(incident models.Incident) string {
	var b strings.Builder
	b.WriteString("\n🚨 Accident Alert\n\n")
	b.WriteString("📍 Location:\n")
	b.WriteString(HumanLocation(incident.Location))
	b.WriteString("\n\n🗺 Google Maps:\n")
	b.WriteString(MapLink(incident.Location))
	b.WriteString("\n\n📝 Description:\n")
	b.WriteString(incident.Description)
	b.WriteString("\n\n⏰ Reported at:\n")
	b.WriteString(incident.CreatedAt.In(c.location).Format(timestampLayout))
	b.WriteString("\n")
	return b.String()
}

// HumanLocation возвращает адрес, а при его отсутствии координаты
func HumanLocation(loc models.Location) string {
	if address := strings.TrimSpace(loc.Address); address != "" {
		return address
	}
	return fmt.Sprintf("Lat %s, Lng %s", formatCoordinate(loc.Latitude), formatCoordinate(loc.Longitude))
}

// MapLink строит ссылку на Google Maps по координатам
func MapLink(loc models.Location) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s", formatCoordinate(loc.Latitude), formatCoordinate(loc.Longitude))
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
