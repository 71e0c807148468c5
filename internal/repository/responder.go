package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/accident_dispatch_system/internal/geo"
	"github.com/shenikar/accident_dispatch_system/internal/models"
)

// Таблицы справочника служб по категориям
var responderTables = map[models.Category]string{
	models.CategoryAmbulance:     "ambulances",
	models.CategoryPoliceStation: "police_stations",
	models.CategoryHospital:      "hospitals",
}

// ResponderRepository - справочник служб в PostGIS
type ResponderRepository struct {
	db *pgxpool.Pool
}

func NewResponderRepository(db *pgxpool.Pool) geo.ResponderDirectory {
	return &ResponderRepository{db: db}
}

// Nearest находит ближайшие службы категории в радиусе по геодезическому расстоянию.
// Для скорой помощи учитываются только машины со статусом AVAILABLE.
func (r *ResponderRepository) Nearest(ctx context.Context, q geo.NearbyQuery) ([]models.Responder, error) {
	query, err := nearestQuery(q.Category)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, q.Point.Longitude, q.Point.Latitude, q.RadiusMeters, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest %s: %w", q.Category, err)
	}
	defer rows.Close()

	responders := make([]models.Responder, 0, q.Limit)
	for rows.Next() {
		responder := models.Responder{Category: q.Category}
		var (
			address      *string
			availability *string
		)
		err := rows.Scan(
			&responder.ID,
			&responder.Name,
			&responder.Phone,
			&responder.Location.Latitude,
			&responder.Location.Longitude,
			&address,
			&availability,
			&responder.DistanceMeters,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.Category, err)
		}
		if address != nil {
			responder.Address = *address
		}
		if availability != nil {
			responder.Availability = models.Availability(*availability)
		}
		responders = append(responders, responder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", q.Category, err)
	}
	return responders, nil
}

func nearestQuery(category models.Category) (string, error) {
	table, ok := responderTables[category]
	if !ok {
		return "", fmt.Errorf("unknown responder category %q", category)
	}

	availability := "NULL::text"
	filter := ""
	if category == models.CategoryAmbulance {
		availability = "t.status"
		filter = "AND t.status = 'AVAILABLE'"
	}

	return fmt.Sprintf(`
		WITH origin AS (
			SELECT ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography AS point
		)
		SELECT
			t.id::text,
			t.name,
			t.phone,
			ST_Y(t.location::geometry) AS latitude,
			ST_X(t.location::geometry) AS longitude,
			t.address,
			%s AS availability,
			ST_Distance(t.location, origin.point) AS distance_m
		FROM %s t, origin
		WHERE ST_DWithin(t.location, origin.point, $3)
			%s
		ORDER BY distance_m
		LIMIT $4;
	`, availability, table, filter), nil
}
