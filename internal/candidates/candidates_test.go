package candidates

import (
	"context"
	"testing"

	"github.com/example/ride-dispatch/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestMemorySourceOrdersByDistance(t *testing.T) {
	src := NewMemorySource()
	src.Upsert(models.Driver{ID: "far", Loc: models.Coord{Lat: 40.80, Lon: -74.0}, Online: true})
	src.Upsert(models.Driver{ID: "near", Loc: models.Coord{Lat: 40.712, Lon: -74.0}, Online: true})
	src.Upsert(models.Driver{ID: "mid", Loc: models.Coord{Lat: 40.75, Lon: -74.0}, Online: true})

	got, err := src.Candidates(context.Background(), models.Coord{Lat: 40.71, Lon: -74.0}, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"near", "mid", "far"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMemorySourceSkipsOfflineAndRespectsLimit(t *testing.T) {
	src := NewMemorySource()
	src.Upsert(models.Driver{ID: "d1", Loc: models.Coord{Lat: 1, Lon: 1}, Online: true})
	src.Upsert(models.Driver{ID: "d2", Loc: models.Coord{Lat: 1.1, Lon: 1}, Online: true})
	src.Upsert(models.Driver{ID: "offline", Loc: models.Coord{Lat: 1, Lon: 1}, Online: false})

	got, err := src.Candidates(context.Background(), models.Coord{Lat: 1, Lon: 1}, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "d1" {
		t.Fatalf("expected [d1], got %v", got)
	}
}

func TestMemorySourceVehicleFilter(t *testing.T) {
	src := NewMemorySource()
	src.Upsert(models.Driver{ID: "sedan", Loc: models.Coord{Lat: 1, Lon: 1}, Vehicle: "standard", Online: true})
	src.Upsert(models.Driver{ID: "van", Loc: models.Coord{Lat: 1, Lon: 1}, Vehicle: "xl", Online: true})
	src.Upsert(models.Driver{ID: "untagged", Loc: models.Coord{Lat: 1, Lon: 1}, Online: true})

	got, err := src.Candidates(context.Background(), models.Coord{Lat: 1, Lon: 1}, "xl", 10)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, id := range got {
		seen[id] = true
	}
	if seen["sedan"] {
		t.Fatal("wrong vehicle class must be filtered out")
	}
	if !seen["van"] || !seen["untagged"] {
		t.Fatalf("expected van and untagged, got %v", got)
	}
}

func TestMemorySourceRemove(t *testing.T) {
	src := NewMemorySource()
	src.Upsert(models.Driver{ID: "d1", Loc: models.Coord{Lat: 1, Lon: 1}, Online: true})
	src.Remove("d1")
	got, _ := src.Candidates(context.Background(), models.Coord{Lat: 1, Lon: 1}, "", 10)
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{"a", "b"}
	got, err := src.Candidates(context.Background(), models.Coord{}, "", 10)
	if err != nil || len(got) != 2 || got[0] != "a" {
		t.Fatalf("unexpected result %v err=%v", got, err)
	}
}
