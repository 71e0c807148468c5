package geo

import (
	"context"
	"sort"
	"sync"

	"github.com/shenikar/accident_dispatch_system/internal/models"
)

// MemoryDirectory - справочник служб в памяти с полным перебором
type MemoryDirectory struct {
	mu         sync.RWMutex
	responders map[models.Category][]models.Responder
}

func NewMemoryDirectory(responders ...models.Responder) *MemoryDirectory {
	d := &MemoryDirectory{responders: make(map[models.Category][]models.Responder)}
	for _, r := range responders {
		d.Add(r)
	}
	return d
}

// Add добавляет службу в справочник
func (d *MemoryDirectory) Add(r models.Responder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responders[r.Category] = append(d.responders[r.Category], r)
}

func (d *MemoryDirectory) Nearest(ctx context.Context, q NearbyQuery) ([]models.Responder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []models.Responder
	for _, r := range d.responders[q.Category] {
		if q.Category == models.CategoryAmbulance && r.Availability != models.AvailabilityAvailable {
			continue
		}
		r.DistanceMeters = Distance(q.Point, r.Location)
		if r.DistanceMeters <= q.RadiusMeters {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
