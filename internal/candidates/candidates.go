package candidates

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Source produces a proximity-ordered candidate list for one ride request.
// The ordering is an injected ranking; dispatch walks whatever it is handed
// strictly in order.
type Source interface {
	Candidates(ctx context.Context, origin models.Coord, vehicle string, limit int) ([]string, error)
}

// MemorySource keeps driver positions in memory and ranks by haversine
// distance. Used for local runs and tests; production points at Redis.
type MemorySource struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewMemorySource() *MemorySource {
	return &MemorySource{drivers: make(map[string]models.Driver)}
}

func (m *MemorySource) Upsert(d models.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Updated = time.Now()
	m.drivers[d.ID] = d
}

func (m *MemorySource) Remove(driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
}

// naive scan; in prod use geo-hash or H3
func (m *MemorySource) Candidates(_ context.Context, origin models.Coord, vehicle string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type pair struct {
		id   string
		dist float64
	}
	arr := make([]pair, 0, len(m.drivers))
	for _, d := range m.drivers {
		if !d.Online {
			continue
		}
		if vehicle != "" && d.Vehicle != "" && d.Vehicle != vehicle {
			continue
		}
		arr = append(arr, pair{d.ID, Haversine(origin.Lat, origin.Lon, d.Loc.Lat, d.Loc.Lon)})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].id)
	}
	return out, nil
}

// StaticSource returns a fixed ordered list; handy in tests.
type StaticSource []string

func (s StaticSource) Candidates(context.Context, models.Coord, string, int) ([]string, error) {
	return s, nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
