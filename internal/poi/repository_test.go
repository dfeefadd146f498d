package poi

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/database/dbtest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	return NewSQLiteRepository(dbtest.Open(t))
}

func strPtr(s string) *string { return &s }

func TestCreateGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &POI{Name: "图书馆", Lat: 39.9990, Lon: 116.3100, Address: "校园北路1号"}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Source != SourceManual {
		t.Errorf("Source = %q, want manual", p.Source)
	}

	got, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "图书馆" || got.Lat != 39.9990 || got.ExternalID != nil {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := repo.Get(ctx, 9999); !errors.Is(err, ErrPOINotFound) {
		t.Errorf("Get(missing) error = %v, want ErrPOINotFound", err)
	}
}

func TestUpsertAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertAll(ctx, []POI{
		{Name: "Old Name", Lat: 40, Lon: 116, Source: SourceAMap, ExternalID: strPtr("B0001")},
		{Name: "Gym", Lat: 40.001, Lon: 116, Source: SourceAMap, ExternalID: strPtr("B0002")},
	})
	if err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}
	if len(first) != 2 || first[0].ID == 0 {
		t.Fatalf("UpsertAll() = %+v", first)
	}

	second, err := repo.UpsertAll(ctx, []POI{
		{Name: "New Name", Lat: 40, Lon: 116, Source: SourceAMap, ExternalID: strPtr("B0001"),
			RawJSON: []byte(`{"id":"B0001"}`)},
	})
	if err != nil {
		t.Fatalf("second UpsertAll() error = %v", err)
	}
	if second[0].ID != first[0].ID {
		t.Errorf("upsert changed id: %d -> %d", first[0].ID, second[0].ID)
	}

	got, err := repo.Get(ctx, first[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "New Name" || string(got.RawJSON) != `{"id":"B0001"}` {
		t.Errorf("Get() after upsert = %+v", got)
	}
}

func TestUpsertAll_RequiresExternalID(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.UpsertAll(context.Background(), []POI{{Name: "x", Source: SourceAMap}})
	if err == nil {
		t.Fatal("UpsertAll() without external id should fail")
	}
}

func TestInBox(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, p := range []*POI{
		{Name: "inside", Lat: 40.0005, Lon: 116.3005},
		{Name: "outside", Lat: 40.1, Lon: 116.3},
	} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) error = %v", p.Name, err)
		}
	}

	got, err := repo.InBox(ctx, geo.BoxAround(geo.Point{Lat: 40, Lon: 116.3}, 200))
	if err != nil {
		t.Fatalf("InBox() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "inside" {
		t.Errorf("InBox() = %+v", got)
	}
}

func TestUpsertAll_StampsSecondsUTC(t *testing.T) {
	repo := newTestRepo(t)
	shanghai := time.FixedZone("CST", 8*3600)
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 15, 987654321, shanghai) }

	got, err := repo.UpsertAll(context.Background(), []POI{
		{Name: "Gym", Lat: 40, Lon: 116, Source: SourceAMap, ExternalID: strPtr("B0009")},
	})
	if err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}
	want := time.Date(2026, 3, 1, 1, 30, 15, 0, time.UTC)
	if !got[0].GmtModified.Equal(want) || !got[0].GmtCreate.Equal(want) {
		t.Errorf("stamps = %v / %v, want %v", got[0].GmtCreate, got[0].GmtModified, want)
	}
}

func TestInBox_ReturnsEveryCandidate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const n = 750
	batch := make([]POI, 0, n)
	for i := range n {
		batch = append(batch, POI{
			Name: "stall", Lat: 40 + float64(i%50)*0.00001, Lon: 116.3 + float64(i/50)*0.00001,
			Source: SourceAMap, ExternalID: strPtr(fmt.Sprintf("S%04d", i)),
		})
	}
	if _, err := repo.UpsertAll(ctx, batch); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}

	got, err := repo.InBox(ctx, geo.BoxAround(geo.Point{Lat: 40, Lon: 116.3}, 500))
	if err != nil {
		t.Fatalf("InBox() error = %v", err)
	}
	if len(got) != n {
		t.Errorf("InBox() returned %d rows, want %d", len(got), n)
	}
}
