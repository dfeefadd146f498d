package audit

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/database/dbtest"
)

func TestCreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{Action: ActionCreate, EntityType: EntityConversation, EntityID: "1", UserID: "u-1", CreatedAt: base},
		{Action: ActionStart, EntityType: EntityNavigation, EntityID: "7", UserID: "u-2", CreatedAt: base.Add(time.Second),
			Details: map[string]any{"route_type": "walking"}},
		{Action: ActionDelete, EntityType: EntityConversation, EntityID: "1", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" || e.Source != "api" {
			t.Errorf("defaults not filled: %+v", e)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Logs) != 3 || all.Limit != defaultLimit {
		t.Fatalf("List() = %+v", all)
	}
	if all.Logs[0].Action != ActionDelete || all.Logs[2].Action != ActionCreate {
		t.Errorf("order = %s, %s, %s", all.Logs[0].Action, all.Logs[1].Action, all.Logs[2].Action)
	}
	if all.Logs[1].Details["route_type"] != "walking" {
		t.Errorf("details = %v", all.Logs[1].Details)
	}
	if !all.Logs[2].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", all.Logs[2].CreatedAt, base)
	}
	if all.Logs[0].UserID != "" {
		t.Errorf("UserID = %q, want empty", all.Logs[0].UserID)
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
	}{
		{"by entity type", Filter{EntityType: EntityConversation}, 2, 2},
		{"by action and id", Filter{Action: ActionCreate, EntityID: "1"}, 1, 1},
		{"by user", Filter{UserID: "u-2"}, 1, 1},
		{"paged", Filter{Limit: 2, Offset: 2}, 3, 1},
		{"limit clamped", Filter{Limit: 1000}, 3, 3},
		{"no match", Filter{Action: ActionActivate}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal || len(res.Logs) != tt.wantLen {
				t.Errorf("total = %d, len = %d, want %d, %d", res.Total, len(res.Logs), tt.wantTotal, tt.wantLen)
			}
			if res.Limit > maxLimit {
				t.Errorf("limit = %d not clamped", res.Limit)
			}
		})
	}
}
