package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	dbfs "github.com/scalarai/helpdesk/db"
)

var dbSeq int64

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbtest%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	d, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMigrateCreatesSchema(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	for _, table := range []string{"users", "expert_profiles", "conversations", "messages", "expert_assignments", "jobs", "dead_letter_jobs"} {
		var name string
		err := d.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("first run: %v", err)
	}
	var applied int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatal(err)
	}
	if applied == 0 {
		t.Fatal("no migrations recorded")
	}

	if err := Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("second run: %v", err)
	}
	var again int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&again); err != nil {
		t.Fatal(err)
	}
	if again != applied {
		t.Fatalf("re-run changed applied count: %d -> %d", applied, again)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatal(err)
	}
	_, err := d.Exec(ctx, `INSERT INTO messages(conversation_id, sender_id, sender_role, content, created) VALUES(9999, 9999, 'initiator', 'orphan', 0)`)
	if err == nil {
		t.Fatal("expected foreign key violation for orphan message")
	}
}
