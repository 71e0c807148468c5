package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIncident() models.Incident {
	return models.Incident{
		ID:          uuid.MustParse("6f1c2c1e-8b7a-4d7e-9a55-0c1d2e3f4a5b"),
		PhoneNumber: "9812345678",
		Description: "Bus overturned near the bridge",
		Location: models.Location{
			Latitude:  27.7172,
			Longitude: 85.324,
			Source:    models.SourceGPS,
		},
		Status:    models.StatusVerified,
		CreatedAt: time.Date(2026, 10, 14, 7, 15, 30, 0, time.UTC),
	}
}

func TestCompose_Template(t *testing.T) {
	kathmandu, err := time.LoadLocation("Asia/Kathmandu")
	require.NoError(t, err)
	composer := NewComposer(kathmandu)

	text := composer.Compose(testIncident())

	expected := "\n🚨 Accident Alert\n\n" +
		"📍 Location:\nLat 27.7172, Lng 85.324\n\n" +
		"🗺 Google Maps:\nhttps://www.google.com/maps?q=27.7172,85.324\n\n" +
		"📝 Description:\nBus overturned near the bridge\n\n" +
		"⏰ Reported at:\n10/14/2026, 1:00:30 PM\n"
	assert.Equal(t, expected, text)
}

func TestCompose_PrefersAddress(t *testing.T) {
	incident := testIncident()
	incident.Location.Address = "Thapathali Bridge, Kathmandu"

	text := NewComposer(time.UTC).Compose(incident)

	assert.Contains(t, text, "📍 Location:\nThapathali Bridge, Kathmandu\n")
	assert.Contains(t, text, "https://www.google.com/maps?q=27.7172,85.324")
	assert.Contains(t, text, "10/14/2026, 7:15:30 AM")
}

func TestCompose_Deterministic(t *testing.T) {
	composer := NewComposer(nil)
	first := testIncident()
	second := testIncident()

	assert.Equal(t, composer.Compose(first), composer.Compose(second))
	assert.Equal(t, composer.Compose(first), composer.Compose(first))
}

func TestHumanLocation_BlankAddress(t *testing.T) {
	loc := models.Location{Latitude: -33.5, Longitude: 151, Address: "   "}
	assert.Equal(t, "Lat -33.5, Lng 151", HumanLocation(loc))
}
