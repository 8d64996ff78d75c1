package storage

import (
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	m := NewMemoryStore()
	r := &models.Ride{ID: "r1", RiderID: "rider1", Status: "requested", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := m.SaveRide(r); err != nil {
		t.Fatal(err)
	}

	if err := m.BookRide("r1", "d1"); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get("r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.DriverID != "d1" || got.Status != "booked" {
		t.Fatalf("unexpected ride after booking: %+v", got)
	}

	if err := m.UpdateStatus("r1", "completed"); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Get("r1")
	if got.Status != "completed" {
		t.Fatalf("expected completed, got %q", got.Status)
	}
}

func TestMemoryStoreUnknownRide(t *testing.T) {
	m := NewMemoryStore()
	if err := m.BookRide("ghost", "d1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.UpdateStatus("ghost", "completed"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Get("ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	m := NewMemoryStore()
	_ = m.SaveRide(&models.Ride{ID: "r1", Status: "requested"})
	got, _ := m.Get("r1")
	got.Status = "mutated"
	again, _ := m.Get("r1")
	if again.Status != "requested" {
		t.Fatal("Get must not expose internal state")
	}
}
