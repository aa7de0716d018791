package sqlite_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	dbfs "github.com/scalarai/helpdesk/db"
	dbpkg "github.com/scalarai/helpdesk/internal/db"
	sqlite "github.com/scalarai/helpdesk/internal/repository/sqlite"
	"github.com/scalarai/helpdesk/pkg/models"
)

var dbSeq int64

// setupRepo opens a fresh in-memory database with the real migrations
// applied. Each call gets its own database.
func setupRepo(t *testing.T) *sqlite.SQLiteRepo {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	d, err := dbpkg.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return sqlite.New(d, nil)
}

func createUser(t *testing.T, repo *sqlite.SQLiteRepo, username string) int64 {
	t.Helper()
	id, err := repo.CreateUser(context.Background(), &models.User{Username: username, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return id
}

func createConversation(t *testing.T, repo *sqlite.SQLiteRepo, initiatorID int64, title string) int64 {
	t.Helper()
	id, err := repo.CreateConversation(context.Background(), &models.Conversation{InitiatorID: initiatorID, Title: title})
	if err != nil {
		t.Fatalf("CreateConversation(%s): %v", title, err)
	}
	return id
}

func TestUserCRUD(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil user")
	}

	got, err := repo.GetUserByID(ctx, 9999)
	if err != nil {
		t.Fatalf("GetUserByID missing: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing user, got %#v", got)
	}

	got, err = repo.GetUserByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername missing: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing username, got %#v", got)
	}

	id := createUser(t, repo, "alice")
	got, err = repo.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got == nil || got.Username != "alice" {
		t.Fatalf("unexpected user: %#v", got)
	}
	if got.Created == 0 || got.LastActive == 0 {
		t.Fatalf("timestamps not set: %#v", got)
	}

	if _, err := repo.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "x"}); err == nil {
		t.Fatalf("expected unique constraint violation for duplicate username")
	}

	if err := repo.TouchLastActive(ctx, id); err != nil {
		t.Fatalf("TouchLastActive: %v", err)
	}
}

func TestProfileLinksRoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	uid := createUser(t, repo, "bob")
	pid, err := repo.CreateProfile(ctx, &models.ExpertProfile{
		UserID:             uid,
		Bio:                "networking",
		KnowledgeBaseLinks: []string{"https://a.example", "https://b.example"},
	})
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	p, err := repo.GetProfileByUserID(ctx, uid)
	if err != nil {
		t.Fatalf("GetProfileByUserID: %v", err)
	}
	if p == nil || p.ID != pid {
		t.Fatalf("unexpected profile: %#v", p)
	}
	if len(p.KnowledgeBaseLinks) != 2 || p.KnowledgeBaseLinks[0] != "https://a.example" {
		t.Fatalf("links not round-tripped: %#v", p.KnowledgeBaseLinks)
	}

	p.Bio = "updated"
	p.KnowledgeBaseLinks = nil
	if err := repo.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	p, err = repo.GetProfileByID(ctx, pid)
	if err != nil || p == nil {
		t.Fatalf("GetProfileByID: %v %#v", err, p)
	}
	if p.Bio != "updated" || len(p.KnowledgeBaseLinks) != 0 {
		t.Fatalf("update not applied: %#v", p)
	}

	if err := repo.SetExpertFAQ(ctx, pid, "Q: what\nA: that"); err != nil {
		t.Fatalf("SetExpertFAQ: %v", err)
	}
	if err := repo.SetExpertiseSummary(ctx, pid, "knows networking"); err != nil {
		t.Fatalf("SetExpertiseSummary: %v", err)
	}
	p, _ = repo.GetProfileByID(ctx, pid)
	if p.ExpertFAQ == "" || p.ExpertiseSummary == "" {
		t.Fatalf("derived fields not stored: %#v", p)
	}
}

func TestListProfilesFiltersAndOrder(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	u1 := createUser(t, repo, "has-bio")
	u2 := createUser(t, repo, "no-bio")
	u3 := createUser(t, repo, "has-summary")

	if _, err := repo.CreateProfile(ctx, &models.ExpertProfile{UserID: u1, Bio: "databases"}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateProfile(ctx, &models.ExpertProfile{UserID: u2}); err != nil {
		t.Fatal(err)
	}
	p3 := &models.ExpertProfile{UserID: u3, Bio: "also bios", ExpertiseSummary: "go concurrency"}
	if _, err := repo.CreateProfile(ctx, p3); err != nil {
		t.Fatal(err)
	}

	withBio, err := repo.ListProfilesWithBio(ctx)
	if err != nil {
		t.Fatalf("ListProfilesWithBio: %v", err)
	}
	if len(withBio) != 2 {
		t.Fatalf("expected 2 profiles with bio, got %d", len(withBio))
	}
	if withBio[0].UserID != u1 || withBio[1].UserID != u3 {
		t.Fatalf("expected stable id order, got %v, %v", withBio[0].UserID, withBio[1].UserID)
	}
	if withBio[0].Username != "has-bio" {
		t.Fatalf("username not joined: %#v", withBio[0])
	}

	withSummary, err := repo.ListProfilesWithSummary(ctx)
	if err != nil {
		t.Fatalf("ListProfilesWithSummary: %v", err)
	}
	if len(withSummary) != 1 || withSummary[0].UserID != u3 {
		t.Fatalf("expected only summary profile, got %#v", withSummary)
	}
}
