package route

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/database/dbtest"
)

// setupTestDB returns a migrated database holding one conversation.
func setupTestDB(t *testing.T) (*sql.DB, int64) {
	t.Helper()
	db := dbtest.Open(t)
	res, err := db.Exec(`INSERT INTO conversations (title) VALUES ('route test')`)
	if err != nil {
		t.Fatalf("seeding conversation: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("conversation id: %v", err)
	}
	return db, id
}

func TestSave_Defaults(t *testing.T) {
	db, convID := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	p := &Plan{ConversationID: convID, Locations: "图书馆--食堂"}
	if err := repo.Save(context.Background(), p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if p.ID == 0 || p.RouteType != TypeWalking {
		t.Errorf("Save() = %+v", p)
	}
}

func TestSave_TooFewStops(t *testing.T) {
	db, convID := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	for _, locs := range []string{"", "图书馆", "图书馆-- ", "--"} {
		err := repo.Save(context.Background(), &Plan{ConversationID: convID, Locations: locs})
		if !errors.Is(err, ErrTooFewStops) {
			t.Errorf("Save(%q) error = %v, want ErrTooFewStops", locs, err)
		}
	}
}

func TestSave_UnknownConversation(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.Save(context.Background(), &Plan{ConversationID: 999, Locations: "A--B"})
	if err == nil {
		t.Error("Save() with missing conversation should violate the foreign key")
	}
}

func TestLatest(t *testing.T) {
	db, convID := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.Latest(ctx, convID); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("Latest() on empty = %v, want ErrPlanNotFound", err)
	}

	for _, locs := range []string{"A--B", "A--B--C"} {
		if err := repo.Save(ctx, &Plan{ConversationID: convID, Locations: locs, RouteType: TypeRiding}); err != nil {
			t.Fatalf("Save(%q) error = %v", locs, err)
		}
	}

	got, err := repo.Latest(ctx, convID)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.Locations != "A--B--C" || got.RouteType != TypeRiding {
		t.Errorf("Latest() = %+v", got)
	}
}

func TestDeleteConversation_CascadesPlans(t *testing.T) {
	db, convID := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, &Plan{ConversationID: convID, Locations: "A--B"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := db.Exec(`DELETE FROM conversations WHERE id = ?`, convID); err != nil {
		t.Fatalf("deleting conversation: %v", err)
	}
	if _, err := repo.Latest(ctx, convID); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("Latest() after cascade = %v, want ErrPlanNotFound", err)
	}
}
