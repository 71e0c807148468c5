package geo

import (
	"context"
	"fmt"
	"sort"

	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit - сколько ближайших служб каждой категории возвращает поиск
const DefaultLimit = 3

// NearbyQuery - параметры поиска ближайших служб одной категории
type NearbyQuery struct {
	Category     models.Category
	Point        models.Point
	RadiusMeters float64
	Limit        int
}

// ResponderDirectory - пространственный справочник служб.
// Nearest возвращает службы в радиусе, упорядоченные по расстоянию,
// и заполняет DistanceMeters. Для скорой возвращаются только AVAILABLE.
type ResponderDirectory interface {
	Nearest(ctx context.Context, q NearbyQuery) ([]models.Responder, error)
}

// Locator ищет ближайшие службы по трем категориям параллельно
type Locator struct {
	directory ResponderDirectory
	limit     int
	logger    *logrus.Logger
}

func NewLocator(directory ResponderDirectory, limit int, logger *logrus.Logger) *Locator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Locator{
		directory: directory,
		limit:     limit,
		logger:    logger,
	}
}

// Locate выполняет три независимых запроса ближайших соседей.
// Пустой результат по категории не является ошибкой.
func (l *Locator) Locate(ctx context.Context, longitude, latitude, radiusMeters float64) (models.NearbyResponders, error) {
	log := l.logger.WithFields(logrus.Fields{
		"service":   "locator",
		"method":    "Locate",
		"longitude": longitude,
		"latitude":  latitude,
		"radius_m":  radiusMeters,
	})

	point := models.Point{Latitude: latitude, Longitude: longitude}
	results := make([][]models.Responder, len(models.DispatchOrder))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range models.DispatchOrder {
		g.Go(func() error {
			found, err := l.nearest(gctx, NearbyQuery{
				Category:     category,
				Point:        point,
				RadiusMeters: radiusMeters,
				Limit:        l.limit,
			})
			if err != nil {
				return fmt.Errorf("query %s: %w", category, err)
			}
			results[i] = l.normalize(category, found, radiusMeters)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Responder directory query failed")
		return models.NearbyResponders{}, fmt.Errorf("%w: %w", models.ErrLocatorUnavailable, err)
	}

	nearby := models.NearbyResponders{
		Ambulances:     results[0],
		PoliceStations: results[1],
		Hospitals:      results[2],
	}
	log.WithFields(logrus.Fields{
		"ambulances":      len(nearby.Ambulances),
		"police_stations": len(nearby.PoliceStations),
		"hospitals":       len(nearby.Hospitals),
	}).Info("Nearby responders located")
	return nearby, nil
}

// nearest переводит панику справочника в ошибку запроса
func (l *Locator) nearest(ctx context.Context, q NearbyQuery) (found []models.Responder, err error) {
	defer func() {
		if r := recover(); r != nil {
			found, err = nil, fmt.Errorf("directory panic: %v", r)
		}
	}()
	return l.directory.Nearest(ctx, q)
}

// normalize гарантирует радиус, порядок по расстоянию и лимит независимо от справочника
func (l *Locator) normalize(category models.Category, found []models.Responder, radiusMeters float64) []models.Responder {
	out := make([]models.Responder, 0, len(found))
	for _, r := range found {
		if r.DistanceMeters > radiusMeters {
			continue
		}
		if category == models.CategoryAmbulance && r.Availability != models.AvailabilityAvailable {
			continue
		}
		r.Category = category
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	if len(out) > l.limit {
		out = out[:l.limit]
	}
	return out
}
