package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	dbfs "github.com/scalarai/helpdesk/db"
	dbpkg "github.com/scalarai/helpdesk/internal/db"
	"github.com/scalarai/helpdesk/internal/jobs"
	sqlite "github.com/scalarai/helpdesk/internal/repository/sqlite"
	"github.com/scalarai/helpdesk/pkg/models"
)

func setupQueue(t *testing.T) (*dbpkg.DB, *sqlite.SQLiteRepo) {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:workertest%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	d, err := dbpkg.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d, sqlite.New(d, nil)
}

func enqueue(t *testing.T, repo *sqlite.SQLiteRepo, typ string) int64 {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"n": 1})
	id, err := repo.Enqueue(context.Background(), &models.BackgroundJob{
		Type: typ, Payload: payload, Priority: 100, MaxAttempts: 1, ScheduledAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func jobStatus(t *testing.T, d *dbpkg.DB, id int64) string {
	t.Helper()
	var status string
	err := d.QueryRow(context.Background(), `SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if err != nil {
		t.Fatalf("job %d status: %v", id, err)
	}
	return status
}

func deadLetterCount(t *testing.T, d *dbpkg.DB, jobID int64) int {
	t.Helper()
	var n int
	if err := d.QueryRow(context.Background(), `SELECT COUNT(*) FROM dead_letter_jobs WHERE job_id = ?`, jobID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

func TestWorkerPoolCompletesJob(t *testing.T) {
	d, repo := setupQueue(t)
	ctx := context.Background()

	done := make(chan int64, 1)
	handlers := map[string]jobs.Handler{
		"test.ok": func(ctx context.Context, j *models.BackgroundJob) error {
			done <- j.ID
			return nil
		},
	}

	id := enqueue(t, repo, "test.ok")

	pool := jobs.NewWorkerPool(repo, handlers, nil, 1)
	pool.Start(ctx)
	defer pool.Stop()

	select {
	case got := <-done:
		if got != id {
			t.Fatalf("handler saw job %d, want %d", got, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never processed")
	}
	waitFor(t, func() bool { return jobStatus(t, d, id) == "done" })
}

func TestWorkerPoolDeadLettersFailedJob(t *testing.T) {
	d, repo := setupQueue(t)
	ctx := context.Background()

	handlers := map[string]jobs.Handler{
		"test.fail": func(ctx context.Context, j *models.BackgroundJob) error {
			return errors.New("broken payload")
		},
	}

	id := enqueue(t, repo, "test.fail")

	pool := jobs.NewWorkerPool(repo, handlers, nil, 1)
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, func() bool { return deadLetterCount(t, d, id) == 1 })

	var n int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE id = ?`, id).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("dead-lettered job still on the queue")
	}
	var lastError string
	if err := d.QueryRow(ctx, `SELECT last_error FROM dead_letter_jobs WHERE job_id = ?`, id).Scan(&lastError); err != nil {
		t.Fatal(err)
	}
	if lastError != "broken payload" {
		t.Fatalf("last_error not recorded: %q", lastError)
	}
}

func TestWorkerPoolUnknownTypeGoesToDeadLetter(t *testing.T) {
	d, repo := setupQueue(t)
	ctx := context.Background()

	id := enqueue(t, repo, "test.unknown")

	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{}, nil, 1)
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, func() bool { return deadLetterCount(t, d, id) == 1 })
}
