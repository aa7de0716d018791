package jobs_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	dbfs "github.com/scalarai/helpdesk/db"
	"github.com/scalarai/helpdesk/internal/assignment"
	dbpkg "github.com/scalarai/helpdesk/internal/db"
	"github.com/scalarai/helpdesk/internal/jobs"
	sqlite "github.com/scalarai/helpdesk/internal/repository/sqlite"
	"github.com/scalarai/helpdesk/internal/routing"
	"github.com/scalarai/helpdesk/pkg/models"
)

// scriptedStrategy answers with a fixed expert and records calls.
type scriptedStrategy struct {
	expertID int64
	err      error
	calls    int
	lastCtx  routing.Context
}

func (s *scriptedStrategy) SelectExpert(ctx context.Context, rc routing.Context) (int64, error) {
	s.calls++
	s.lastCtx = rc
	return s.expertID, s.err
}

func setupHandlers(t *testing.T) (*sqlite.SQLiteRepo, *scriptedStrategy, map[string]jobs.Handler) {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:handlerstest%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	d, err := dbpkg.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := sqlite.New(d, nil)

	strategy := &scriptedStrategy{}
	handlers := jobs.NewHandlers(jobs.HandlerDeps{
		Convs:       repo,
		Msgs:        repo,
		BioRouter:   strategy,
		SummRouter:  strategy,
		Assignments: assignment.NewService(repo, nil, nil),
	})
	return repo, strategy, handlers
}

func routeJob(t *testing.T, conversationID int64) *models.BackgroundJob {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"conversation_id": conversationID})
	if err != nil {
		t.Fatal(err)
	}
	return &models.BackgroundJob{Type: jobs.TypeAssignExpert, Payload: payload, MaxAttempts: 1}
}

func TestRouteHandlerAssignsSelectedExpert(t *testing.T) {
	repo, strategy, handlers := setupHandlers(t)
	ctx := context.Background()

	asker, _ := repo.CreateUser(ctx, &models.User{Username: "asker", PasswordHash: "x"})
	expert, _ := repo.CreateUser(ctx, &models.User{Username: "expert", PasswordHash: "x"})
	cid, err := repo.CreateConversation(ctx, &models.Conversation{InitiatorID: asker, Title: "help"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateMessage(ctx, &models.Message{ConversationID: cid, SenderID: asker, SenderRole: models.RoleInitiator, Content: "my disk is full"}); err != nil {
		t.Fatal(err)
	}

	strategy.expertID = expert
	if err := handlers[jobs.TypeAssignExpert](ctx, routeJob(t, cid)); err != nil {
		t.Fatalf("handler: %v", err)
	}

	if strategy.lastCtx.FirstMessage != "my disk is full" {
		t.Fatalf("first message not passed to routing: %#v", strategy.lastCtx)
	}
	conv, _ := repo.GetConversation(ctx, cid)
	if conv.AssignedExpertID == nil || *conv.AssignedExpertID != expert {
		t.Fatalf("expert not assigned: %#v", conv)
	}
}

func TestRouteHandlerSkipsAssignedConversation(t *testing.T) {
	repo, strategy, handlers := setupHandlers(t)
	ctx := context.Background()

	asker, _ := repo.CreateUser(ctx, &models.User{Username: "asker", PasswordHash: "x"})
	expert, _ := repo.CreateUser(ctx, &models.User{Username: "expert", PasswordHash: "x"})
	cid, err := repo.CreateConversation(ctx, &models.Conversation{InitiatorID: asker, Title: "help"})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.AssignExpert(ctx, cid, expert); err != nil {
		t.Fatal(err)
	}

	if err := handlers[jobs.TypeAssignExpert](ctx, routeJob(t, cid)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if strategy.calls != 0 {
		t.Fatalf("routing ran for an already assigned conversation")
	}
}

func TestRouteHandlerQuietOnNoMatchAndMissing(t *testing.T) {
	repo, strategy, handlers := setupHandlers(t)
	ctx := context.Background()

	// a vanished conversation ends the job without error
	if err := handlers[jobs.TypeAssignExpert](ctx, routeJob(t, 9999)); err != nil {
		t.Fatalf("missing conversation: %v", err)
	}

	asker, _ := repo.CreateUser(ctx, &models.User{Username: "asker", PasswordHash: "x"})
	cid, err := repo.CreateConversation(ctx, &models.Conversation{InitiatorID: asker, Title: "help"})
	if err != nil {
		t.Fatal(err)
	}
	strategy.err = routing.ErrNoMatch
	if err := handlers[jobs.TypeAssignExpert](ctx, routeJob(t, cid)); err != nil {
		t.Fatalf("no-match routing must not fail the job: %v", err)
	}
	conv, _ := repo.GetConversation(ctx, cid)
	if conv.AssignedExpertID != nil {
		t.Fatalf("conversation assigned despite no match")
	}
}

func TestHandlersRejectBadPayload(t *testing.T) {
	_, _, handlers := setupHandlers(t)
	ctx := context.Background()

	bad := &models.BackgroundJob{Type: jobs.TypeAssignExpert, Payload: json.RawMessage(`{broken`), MaxAttempts: 1}
	if err := handlers[jobs.TypeAssignExpert](ctx, bad); err == nil {
		t.Fatalf("expected error for undecodable payload")
	}
}
