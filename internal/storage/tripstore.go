package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

var ErrNotFound = errors.New("ride not found")

// TripStore defines persistence for rides. BookRide is invoked exactly once
// per ride, only after a driver accepted.
type TripStore interface {
	SaveRide(r *models.Ride) error
	BookRide(rideID, driverID string) error
	UpdateStatus(rideID, status string) error
	Get(rideID string) (*models.Ride, error)
}

type MemoryStore struct {
	mu    sync.RWMutex
	rides map[string]*models.Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]*models.Ride)}
}

func (m *MemoryStore) SaveRide(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) BookRide(rideID, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	r.DriverID = driverID
	r.Status = "booked"
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) UpdateStatus(rideID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Get(rideID string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}
