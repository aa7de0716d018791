package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scalarai/helpdesk/api"
	dbfs "github.com/scalarai/helpdesk/db"
	"github.com/scalarai/helpdesk/internal/assignment"
	"github.com/scalarai/helpdesk/internal/chat"
	"github.com/scalarai/helpdesk/internal/config"
	dbpkg "github.com/scalarai/helpdesk/internal/db"
	"github.com/scalarai/helpdesk/internal/jobs"
	sqlite "github.com/scalarai/helpdesk/internal/repository/sqlite"
	"github.com/scalarai/helpdesk/internal/routing"
)

var dbSeq int64

func newTestServer(t *testing.T) (*httptest.Server, *dbpkg.DB) {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	d, err := dbpkg.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := sqlite.New(d, nil)

	cfg := &config.Config{JWTSecret: "test-secret", TokenDuration: time.Hour}
	cache := routing.NewProfileCache(repo.ListProfilesWithBio, time.Minute)
	dispatcher := jobs.NewDispatcher(repo, nil)
	chatSvc := chat.NewService(repo, repo, repo, dispatcher, nil)
	assignSvc := assignment.NewService(repo, dispatcher, nil)

	router, err := api.SetupRoutes(cfg, "test", "now", api.Deps{
		Users:       repo,
		Profiles:    repo,
		Assignments: repo,
		Chat:        chatSvc,
		Assignment:  assignSvc,
		Cache:       cache,
		Dispatcher:  dispatcher,
	})
	if err != nil {
		t.Fatalf("SetupRoutes: %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, d
}

// do issues a JSON request, optionally authenticated, and decodes the
// response body into out when out is non-nil.
func do(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp
}

type authResult struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
}

func register(t *testing.T, srv *httptest.Server, username string) authResult {
	t.Helper()
	var out authResult
	resp := do(t, srv, "POST", "/auth/register", "", map[string]string{"username": username, "password": "hunter22"}, &out)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	if out.Token == "" || out.UserID == 0 {
		t.Fatalf("register %s: incomplete response %+v", username, out)
	}
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	register(t, srv, "alice")

	resp := do(t, srv, "POST", "/auth/register", "", map[string]string{"username": "alice", "password": "other"}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate username: status %d", resp.StatusCode)
	}

	resp = do(t, srv, "POST", "/auth/login", "", map[string]string{"username": "alice", "password": "wrong"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", resp.StatusCode)
	}

	var login authResult
	resp = do(t, srv, "POST", "/auth/login", "", map[string]string{"username": "alice", "password": "hunter22"}, &login)
	if resp.StatusCode != http.StatusOK || login.Token == "" {
		t.Fatalf("login failed: status %d, %+v", resp.StatusCode, login)
	}

	var me struct {
		Username     string `json:"username"`
		PasswordHash string `json:"password_hash"`
	}
	resp = do(t, srv, "GET", "/auth/me", login.Token, nil, &me)
	if resp.StatusCode != http.StatusOK || me.Username != "alice" {
		t.Fatalf("me: status %d, %+v", resp.StatusCode, me)
	}
	if me.PasswordHash != "" {
		t.Fatalf("password hash leaked in /auth/me")
	}
}

func TestRegisterEnqueuesFAQGeneration(t *testing.T) {
	srv, d := newTestServer(t)
	ctx := context.Background()

	alice := register(t, srv, "alice")

	var n int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE type = ?`, jobs.TypeGenerateFAQ).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 FAQ job after registration, got %d", n)
	}

	var payload string
	if err := d.QueryRow(ctx, `SELECT payload FROM jobs WHERE type = ?`, jobs.TypeGenerateFAQ).Scan(&payload); err != nil {
		t.Fatal(err)
	}
	var p struct {
		ProfileID int64 `json:"profile_id"`
	}
	if err := json.Unmarshal([]byte(payload), &p); err != nil || p.ProfileID == 0 {
		t.Fatalf("bad FAQ job payload %q (%v)", payload, err)
	}

	// editing the bio alone must not queue another regeneration
	resp := do(t, srv, "PUT", "/v1/expert/profile", alice.Token, map[string]any{"bio": "storage systems"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile update: status %d", resp.StatusCode)
	}
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE type = ?`, jobs.TypeGenerateFAQ).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("bio-only update queued FAQ regeneration, got %d jobs", n)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/v1/conversations", "/v1/expert/queue", "/auth/me"} {
		resp := do(t, srv, "GET", path, "", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without token: status %d", path, resp.StatusCode)
		}
	}

	resp := do(t, srv, "GET", "/v1/conversations", "not-a-jwt", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", resp.StatusCode)
	}
}

func TestConversationAndMessageFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")

	resp := do(t, srv, "POST", "/v1/conversations", alice.Token, map[string]string{"title": "   "}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("blank title: status %d", resp.StatusCode)
	}

	var conv struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	resp = do(t, srv, "POST", "/v1/conversations", alice.Token, map[string]string{"title": "printer on fire"}, &conv)
	if resp.StatusCode != http.StatusCreated || conv.ID == 0 {
		t.Fatalf("create conversation: status %d, %+v", resp.StatusCode, conv)
	}
	if conv.Status != "waiting" {
		t.Fatalf("new conversation not waiting: %+v", conv)
	}

	var msg struct {
		ID         int64  `json:"id"`
		SenderRole string `json:"sender_role"`
	}
	resp = do(t, srv, "POST", "/v1/messages", alice.Token,
		map[string]any{"conversation_id": conv.ID, "content": "please help"}, &msg)
	if resp.StatusCode != http.StatusCreated || msg.SenderRole != "initiator" {
		t.Fatalf("create message: status %d, %+v", resp.StatusCode, msg)
	}

	resp = do(t, srv, "POST", "/v1/messages", alice.Token, map[string]any{"content": "no conversation"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing conversation_id: status %d", resp.StatusCode)
	}

	var listing struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	resp = do(t, srv, "GET", fmt.Sprintf("/v1/conversations/%d/messages", conv.ID), alice.Token, nil, &listing)
	if resp.StatusCode != http.StatusOK || len(listing.Messages) != 1 {
		t.Fatalf("list messages: status %d, %+v", resp.StatusCode, listing)
	}

	// another participant cannot see the conversation at all
	mallory := register(t, srv, "mallory")
	resp = do(t, srv, "GET", fmt.Sprintf("/v1/conversations/%d", conv.ID), mallory.Token, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("outsider read: status %d", resp.StatusCode)
	}
}

func TestClaimUnclaimFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")
	carol := register(t, srv, "carol")

	var conv struct {
		ID int64 `json:"id"`
	}
	do(t, srv, "POST", "/v1/conversations", alice.Token, map[string]string{"title": "need an expert"}, &conv)

	resp := do(t, srv, "POST", fmt.Sprintf("/v1/expert/conversations/%d/claim", conv.ID), bob.Token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d", resp.StatusCode)
	}
	resp = do(t, srv, "POST", fmt.Sprintf("/v1/expert/conversations/%d/claim", conv.ID), carol.Token, nil, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("losing claim: status %d", resp.StatusCode)
	}
	resp = do(t, srv, "POST", fmt.Sprintf("/v1/expert/conversations/%d/unclaim", conv.ID), carol.Token, nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unclaim by non-assignee: status %d", resp.StatusCode)
	}
	resp = do(t, srv, "POST", fmt.Sprintf("/v1/expert/conversations/%d/unclaim", conv.ID), bob.Token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unclaim: status %d", resp.StatusCode)
	}
	resp = do(t, srv, "POST", "/v1/expert/conversations/9999/claim", bob.Token, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("claim missing conversation: status %d", resp.StatusCode)
	}
}

func TestProfileUpdateValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	bob := register(t, srv, "bob")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"unknown field", map[string]any{"bio": "x", "favorite_color": "green"}},
		{"wrong bio type", map[string]any{"bio": 42}},
		{"wrong links type", map[string]any{"knowledge_base_links": "https://example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, "PUT", "/v1/expert/profile", bob.Token, tc.body, nil)
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Fatalf("status %d", resp.StatusCode)
			}
		})
	}

	var profile struct {
		Bio                string   `json:"bio"`
		KnowledgeBaseLinks []string `json:"knowledge_base_links"`
	}
	resp := do(t, srv, "PUT", "/v1/expert/profile", bob.Token,
		map[string]any{"bio": "kernel tuning", "knowledge_base_links": []string{"https://kb.example.com"}}, &profile)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid update: status %d", resp.StatusCode)
	}
	if profile.Bio != "kernel tuning" || len(profile.KnowledgeBaseLinks) != 1 {
		t.Fatalf("update not persisted: %+v", profile)
	}

	resp = do(t, srv, "GET", "/v1/expert/profile", bob.Token, nil, &profile)
	if resp.StatusCode != http.StatusOK || profile.Bio != "kernel tuning" {
		t.Fatalf("get profile: status %d, %+v", resp.StatusCode, profile)
	}
}

func TestUpdatesEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")

	resp := do(t, srv, "GET", "/v1/updates/conversations?since=yesterday", alice.Token, nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid since: status %d", resp.StatusCode)
	}

	var convUpdates struct {
		Conversations []json.RawMessage `json:"conversations"`
	}
	resp = do(t, srv, "GET", "/v1/updates/conversations?since=0", alice.Token, nil, &convUpdates)
	if resp.StatusCode != http.StatusOK || convUpdates.Conversations == nil {
		t.Fatalf("conversations updates: status %d, nil list", resp.StatusCode)
	}

	var queue struct {
		Waiting  []json.RawMessage `json:"waiting"`
		Assigned []json.RawMessage `json:"assigned"`
	}
	resp = do(t, srv, "GET", "/v1/updates/expert-queue", alice.Token, nil, &queue)
	if resp.StatusCode != http.StatusOK || queue.Waiting == nil || queue.Assigned == nil {
		t.Fatalf("expert queue updates: status %d, %+v", resp.StatusCode, queue)
	}
}

func TestHealthAndVersion(t *testing.T) {
	srv, _ := newTestServer(t)

	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	resp := do(t, srv, "GET", "/health", "", nil, &health)
	if resp.StatusCode != http.StatusOK || health.Status != "ok" || health.Service != "helpdesk" {
		t.Fatalf("health: status %d, %+v", resp.StatusCode, health)
	}

	var version struct {
		Version string `json:"version"`
	}
	resp = do(t, srv, "GET", "/version", "", nil, &version)
	if resp.StatusCode != http.StatusOK || version.Version != "test" {
		t.Fatalf("version: status %d, %+v", resp.StatusCode, version)
	}
}
