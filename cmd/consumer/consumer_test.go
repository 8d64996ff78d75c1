package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/redis/go-redis/v9"
)

// fakeUpdater implements GeoUpdater for tests
type fakeUpdater struct {
	failGeo   int // number of times to fail GeoAdd before succeeding
	failMeta  int // number of times to fail SetMeta before succeeding
	geoCalls  int
	metaCalls int
	lastMeta  map[string]interface{}
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	return nil
}

func (f *fakeUpdater) SetMeta(ctx context.Context, driverID string, values map[string]interface{}) error {
	f.metaCalls++
	if f.metaCalls <= f.failMeta {
		return errors.New("meta fail")
	}
	f.lastMeta = values
	return nil
}

func TestUpdateGeoWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failGeo: 1, failMeta: 1}
	d := &models.Driver{ID: "d1", Loc: models.Coord{Lat: 1, Lon: 2}, Rating: 4.5, Vehicle: "xl", Online: true}
	ctx := context.Background()
	start := time.Now()
	if err := updateGeoWithRetry(ctx, f, d, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.metaCalls < 2 {
		t.Fatalf("expected retries, got geo=%d meta=%d", f.geoCalls, f.metaCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if f.lastMeta["vehicle"] != "xl" {
		t.Fatalf("vehicle class not propagated: %v", f.lastMeta)
	}
	if f.lastMeta["online"] != "true" {
		t.Fatalf("online flag must be stored in the form the candidate source filters on: %v", f.lastMeta)
	}
}

func TestUpdateGeoWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failGeo: 5, failMeta: 0}
	d := &models.Driver{ID: "d1", Loc: models.Coord{Lat: 1, Lon: 2}, Rating: 4.5, Online: true}
	ctx := context.Background()
	if err := updateGeoWithRetry(ctx, f, d, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
