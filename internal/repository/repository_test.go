package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearestQuery(t *testing.T) {
	t.Run("ambulance filtered by availability", func(t *testing.T) {
		query, err := nearestQuery(models.CategoryAmbulance)

		require.NoError(t, err)
		assert.Contains(t, query, "FROM ambulances t")
		assert.Contains(t, query, "AND t.status = 'AVAILABLE'")
		assert.Contains(t, query, "ST_DWithin(t.location, origin.point, $3)")
		assert.Contains(t, query, "ORDER BY distance_m")
		assert.Contains(t, query, "LIMIT $4")
	})

	t.Run("police and hospitals without status filter", func(t *testing.T) {
		for category, table := range map[models.Category]string{
			models.CategoryPoliceStation: "police_stations",
			models.CategoryHospital:      "hospitals",
		} {
			query, err := nearestQuery(category)

			require.NoError(t, err)
			assert.Contains(t, query, "FROM "+table+" t")
			assert.NotContains(t, query, "AVAILABLE")
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := nearestQuery(models.Category("fire_station"))
		assert.Error(t, err)
	})
}

func TestIncidentCacheKey(t *testing.T) {
	id := uuid.MustParse("6f1c1f9e-8f2a-4d0e-9b1a-3c2d4e5f6a7b")
	assert.Equal(t, "incident:6f1c1f9e-8f2a-4d0e-9b1a-3c2d4e5f6a7b", incidentCacheKey(id))
}
