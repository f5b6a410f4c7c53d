package migrate_test

import (
	"context"
	"testing"

	"growline/internal/db"
	"growline/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := migrate.Migrate(ctx, conn); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}
	v, err := migrate.Version(ctx, conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 {
		t.Fatalf("schema version = %d, want 1", v)
	}
	for _, table := range []string{"harvest_cycles", "plant_tasks", "work_log_entities"} {
		var n int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil || n != 1 {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
