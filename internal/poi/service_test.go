package poi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
)

// origin is the device position used across service tests.
var origin = geo.Point{Lat: 40, Lon: 116.3}

// north returns a point meters due north of origin.
func north(meters float64) geo.Point {
	return geo.Point{Lat: origin.Lat + meters/111195.0, Lon: origin.Lon}
}

type fakePlaces struct {
	places []Place
	err    error
	calls  int
}

func (f *fakePlaces) Source() string { return SourceAMap }

func (f *fakePlaces) PlacesAround(_ context.Context, _ geo.Point, _ int) ([]Place, error) {
	f.calls++
	return f.places, f.err
}

func lookingNorth() Query {
	return Query{Lat: origin.Lat, Lon: origin.Lon, Heading: 0, Radius: 150, FOV: 60}
}

func TestNearby_CacheHit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, p := range []*POI{
		{Name: "north building", Lat: north(80).Lat, Lon: north(80).Lon},
		{Name: "south building", Lat: north(-80).Lat, Lon: north(-80).Lon},
	} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	places := &fakePlaces{}
	svc := NewService(repo, places, logging.Discard())

	m, err := svc.Nearby(ctx, lookingNorth())
	if err != nil {
		t.Fatalf("Nearby() error = %v", err)
	}
	if m == nil || m.POI.Name != "north building" {
		t.Fatalf("Nearby() = %+v, want north building", m)
	}
	if m.Fetched || places.calls != 0 {
		t.Error("cache hit should not query the place source")
	}

	vo := m.VO()
	if vo.Lat == "" || vo.Confidence <= 0 || vo.Confidence > 1 {
		t.Errorf("VO() = %+v", vo)
	}
	if vo.DistanceM < 79 || vo.DistanceM > 81 {
		t.Errorf("DistanceM = %v, want ~80", vo.DistanceM)
	}
}

func TestNearby_FallsBackToPlaceSource(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	places := &fakePlaces{places: []Place{
		{ExternalID: "B001", Name: "教学楼", Location: north(60), Raw: []byte(`{"id":"B001"}`)},
		{ExternalID: "", Name: "no id", Location: north(30)},
	}}
	svc := NewService(repo, places, logging.Discard())

	m, err := svc.Nearby(ctx, lookingNorth())
	if err != nil {
		t.Fatalf("Nearby() error = %v", err)
	}
	if m == nil || m.POI.Name != "教学楼" || !m.Fetched {
		t.Fatalf("Nearby() = %+v, want fetched 教学楼", m)
	}

	// The fetched place is now cached.
	m2, err := svc.Nearby(ctx, lookingNorth())
	if err != nil {
		t.Fatalf("second Nearby() error = %v", err)
	}
	if m2 == nil || m2.Fetched || m2.POI.ID != m.POI.ID {
		t.Errorf("second Nearby() = %+v, want cache hit on id %d", m2, m.POI.ID)
	}
	if places.calls != 1 {
		t.Errorf("place source calls = %d, want 1", places.calls)
	}
}

func TestNearby_NoMatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		places PlaceSource
	}{
		{"no source", nil},
		{"source empty", &fakePlaces{}},
		{"source failing", &fakePlaces{err: errors.New("timeout")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(repo, tt.places, logging.Discard())
			m, err := svc.Nearby(ctx, lookingNorth())
			if err != nil {
				t.Fatalf("Nearby() error = %v", err)
			}
			if m != nil {
				t.Errorf("Nearby() = %+v, want nil", m)
			}
		})
	}
}

func TestQuery_ConeDefaults(t *testing.T) {
	c := Query{Lat: 1, Lon: 2, Heading: -90}.Cone()
	if c.Radius != DefaultRadius || c.FOV != DefaultFOV {
		t.Errorf("Cone() = %+v, want defaults", c)
	}
	if c.Heading != 270 {
		t.Errorf("Heading = %v, want 270", c.Heading)
	}
}

func TestNearby_CrowdedCacheStillFindsPOIAhead(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	behind := make([]POI, 0, 600)
	for i := range 600 {
		p := north(-100 - float64(i%10))
		behind = append(behind, POI{Name: "behind", Lat: p.Lat, Lon: p.Lon,
			Source: SourceAMap, ExternalID: strPtr(fmt.Sprintf("B%04d", i))})
	}
	if _, err := repo.UpsertAll(ctx, behind); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}
	ahead := north(50)
	if err := repo.Create(ctx, &POI{Name: "library", Lat: ahead.Lat, Lon: ahead.Lon}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	svc := NewService(repo, &fakePlaces{}, logging.Discard())
	m, err := svc.Nearby(ctx, lookingNorth())
	if err != nil {
		t.Fatalf("Nearby() error = %v", err)
	}
	if m == nil || m.POI.Name != "library" {
		t.Fatalf("Nearby() = %+v, want library", m)
	}
}
