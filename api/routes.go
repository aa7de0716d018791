package api

import (
	"github.com/gorilla/mux"

	"github.com/scalarai/helpdesk/internal/assignment"
	"github.com/scalarai/helpdesk/internal/chat"
	"github.com/scalarai/helpdesk/internal/config"
	"github.com/scalarai/helpdesk/internal/events"
	"github.com/scalarai/helpdesk/internal/routing"
	"github.com/scalarai/helpdesk/pkg/repository"
)

// Deps are the shared services the router needs. They are built in main so
// the worker pool and the HTTP layer see the same instances (one profile
// cache, one dispatcher).
type Deps struct {
	Users       repository.UserRepo
	Profiles    repository.ProfileRepo
	Assignments repository.AssignmentRepo
	Chat        *chat.Service
	Assignment  *assignment.Service
	Cache       *routing.ProfileCache
	Dispatcher  events.Dispatcher
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) (*mux.Router, error) {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(SyntheticLLMMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(deps.Users, deps.Profiles, deps.Cache, deps.Dispatcher, cfg.JWTSecret, cfg.TokenDuration)
	conversationsHandler := NewConversationsHandler(deps.Chat)
	messagesHandler := NewMessagesHandler(deps.Chat)
	updatesHandler := NewUpdatesHandler(deps.Chat)
	expertHandler, err := NewExpertHandler(deps.Chat, deps.Assignment, deps.Assignments, deps.Profiles, deps.Cache, deps.Dispatcher)
	if err != nil {
		return nil, err
	}

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Authenticated auth endpoints
	authed := r.PathPrefix("/auth").Subrouter()
	authed.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	authed.HandleFunc("/me", authHandler.Me).Methods("GET")
	authed.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Conversation endpoints
	apiV1.HandleFunc("/conversations", conversationsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/conversations", conversationsHandler.List).Methods("GET")
	apiV1.HandleFunc("/conversations/{id:[0-9]+}", conversationsHandler.Get).Methods("GET")
	apiV1.HandleFunc("/conversations/{id:[0-9]+}/messages", conversationsHandler.ListMessages).Methods("GET")

	// Message endpoints
	apiV1.HandleFunc("/messages", messagesHandler.Create).Methods("POST")
	apiV1.HandleFunc("/messages/{id:[0-9]+}/read", messagesHandler.MarkRead).Methods("PUT")

	// Expert endpoints
	apiV1.HandleFunc("/expert/queue", expertHandler.Queue).Methods("GET")
	apiV1.HandleFunc("/expert/conversations/{id:[0-9]+}/claim", expertHandler.Claim).Methods("POST")
	apiV1.HandleFunc("/expert/conversations/{id:[0-9]+}/unclaim", expertHandler.Unclaim).Methods("POST")
	apiV1.HandleFunc("/expert/profile", expertHandler.GetProfile).Methods("GET")
	apiV1.HandleFunc("/expert/profile", expertHandler.UpdateProfile).Methods("PUT")
	apiV1.HandleFunc("/expert/assignments/history", expertHandler.AssignmentHistory).Methods("GET")

	// Incremental update endpoints
	apiV1.HandleFunc("/updates/conversations", updatesHandler.Conversations).Methods("GET")
	apiV1.HandleFunc("/updates/messages", updatesHandler.Messages).Methods("GET")
	apiV1.HandleFunc("/updates/expert-queue", updatesHandler.ExpertQueue).Methods("GET")

	return r, nil
}
