package models

import (
	"encoding/json"
	"time"
)

// Conversation statuses.
const (
	ConversationWaiting  = "waiting"
	ConversationActive   = "active"
	ConversationResolved = "resolved"
)

// Assignment statuses.
const (
	AssignmentActive   = "active"
	AssignmentResolved = "resolved"
)

// Message sender roles.
const (
	RoleInitiator = "initiator"
	RoleExpert    = "expert"
)

type User struct {
	ID           int64  `json:"id" db:"id"`
	Username     string `json:"username" db:"username" validate:"required"`
	PasswordHash string `json:"password_hash,omitempty" db:"password_hash"`
	Created      int64  `json:"created" db:"created"`
	LastActive   int64  `json:"last_active" db:"last_active"`
}

// ExpertProfile is one-to-one with User. Bio and KnowledgeBaseLinks are
// edited by the owner; ExpertFAQ and ExpertiseSummary are derived fields
// written by background jobs.
type ExpertProfile struct {
	ID                 int64    `json:"id" db:"id"`
	UserID             int64    `json:"user_id" db:"user_id"`
	Bio                string   `json:"bio" db:"bio"`
	KnowledgeBaseLinks []string `json:"knowledge_base_links" db:"knowledge_base_links"`
	ExpertFAQ          string   `json:"expert_faq" db:"expert_faq"`
	ExpertiseSummary   string   `json:"expertise_summary" db:"expertise_summary"`
	Created            int64    `json:"created" db:"created"`
	Updated            int64    `json:"updated" db:"updated"`

	// Username is populated by list queries that join users; not a column.
	Username string `json:"username,omitempty" db:"-"`
}

type Conversation struct {
	ID               int64  `json:"id" db:"id"`
	InitiatorID      int64  `json:"initiator_id" db:"initiator_id"`
	AssignedExpertID *int64 `json:"assigned_expert_id,omitempty" db:"assigned_expert_id"`
	Title            string `json:"title" db:"title" validate:"required"`
	Status           string `json:"status" db:"status"`
	Summary          string `json:"summary,omitempty" db:"summary"`
	LastMessageAt    *int64 `json:"last_message_at,omitempty" db:"last_message_at"`
	Created          int64  `json:"created" db:"created"`
	Updated          int64  `json:"updated" db:"updated"`

	// Usernames populated by joins for API responses; not columns.
	InitiatorUsername      string `json:"initiator_username,omitempty" db:"-"`
	AssignedExpertUsername string `json:"assigned_expert_username,omitempty" db:"-"`
}

type Message struct {
	ID             int64  `json:"id" db:"id"`
	ConversationID int64  `json:"conversation_id" db:"conversation_id"`
	SenderID       int64  `json:"sender_id" db:"sender_id"`
	SenderRole     string `json:"sender_role" db:"sender_role"`
	Content        string `json:"content" db:"content" validate:"required"`
	IsRead         bool   `json:"is_read" db:"is_read"`
	Created        int64  `json:"created" db:"created"`

	// SenderUsername is populated by queries that join users; not a column.
	SenderUsername string `json:"sender_username,omitempty" db:"-"`
}

// ExpertAssignment is the audit record of one expert's tenure on one
// conversation. ResolvedAt is set only when the assignment resolves.
type ExpertAssignment struct {
	ID             int64  `json:"id" db:"id"`
	ConversationID int64  `json:"conversation_id" db:"conversation_id"`
	ExpertID       int64  `json:"expert_id" db:"expert_id"`
	Status         string `json:"status" db:"status"`
	AssignedAt     int64  `json:"assigned_at" db:"assigned_at"`
	ResolvedAt     *int64 `json:"resolved_at,omitempty" db:"resolved_at"`
}

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
