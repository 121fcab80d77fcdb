package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database/dbtest"
)

func TestCreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.OpenSQL(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []*AuditLog{
		{Action: "device.paired", EntityType: EntityDevice, EntityID: "dev_000000000001", Actor: "admin", Source: SourceAPI, CreatedAt: base},
		{Action: "device.renamed", EntityType: EntityDevice, EntityID: "dev_000000000001", Actor: "admin", Source: SourceAPI, Details: map[string]any{"name": "Lobby"}, CreatedAt: base.Add(time.Minute)},
		{Action: "device.paired", EntityType: EntityDevice, EntityID: "dev_000000000002", Source: SourceCLI, CreatedAt: base.Add(2 * time.Minute)},
		{Action: "document.saved", EntityType: EntityDocument, EntityID: "schedule", Actor: "ops", Source: SourceAPI, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if !strings.HasPrefix(e.ID, "aud-") {
			t.Errorf("generated ID = %q", e.ID)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 4 || len(all.Logs) != 4 || all.Limit != 50 {
		t.Fatalf("List() = total %d, %d logs, limit %d", all.Total, len(all.Logs), all.Limit)
	}
	if all.Logs[0].Action != "document.saved" {
		t.Errorf("newest first: got %q", all.Logs[0].Action)
	}
	if !all.Logs[0].CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("CreatedAt = %v", all.Logs[0].CreatedAt)
	}
	renamed := all.Logs[2]
	if renamed.Details["name"] != "Lobby" || renamed.Actor != "admin" {
		t.Errorf("renamed entry = %+v", renamed)
	}
	if all.Logs[1].Actor != "" {
		t.Errorf("empty actor stored as %q", all.Logs[1].Actor)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "by action", filter: Filter{Action: "device.paired"}, want: 2},
		{name: "by entity", filter: Filter{EntityType: EntityDevice, EntityID: "dev_000000000001"}, want: 2},
		{name: "by actor", filter: Filter{Actor: "ops"}, want: 1},
		{name: "no match", filter: Filter{Action: "device.unpaired"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.want || len(res.Logs) != tt.want {
				t.Errorf("List() = total %d, %d logs, want %d", res.Total, len(res.Logs), tt.want)
			}
			if res.Logs == nil {
				t.Error("Logs is nil, want empty slice")
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.OpenSQL(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &AuditLog{Action: "device.renamed", EntityType: EntityDevice, Source: SourceAPI}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || len(page.Logs) != 1 || page.Offset != 4 {
		t.Errorf("page = total %d, %d logs, offset %d", page.Total, len(page.Logs), page.Offset)
	}

	clamped, err := repo.List(ctx, Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatal(err)
	}
	if clamped.Limit != 200 || clamped.Offset != 0 {
		t.Errorf("clamped = limit %d, offset %d", clamped.Limit, clamped.Offset)
	}
}
