package repository

import (
	"context"
	"errors"

	"github.com/scalarai/helpdesk/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Reads return (nil, nil) when the entity does not exist. Mutations that need
// a distinguishable outcome return the sentinel errors below.

// ErrNotFound is returned by mutations targeting a missing entity.
var ErrNotFound = errors.New("not found")

// ErrAlreadyAssigned is returned when a claim or auto-assign hits a
// conversation that already has an assigned expert.
var ErrAlreadyAssigned = errors.New("conversation already assigned")

// ErrNotAssigned is returned when an unclaim is attempted by an expert that
// is not the conversation's currently assigned expert.
var ErrNotAssigned = errors.New("expert not assigned to conversation")

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastActive(ctx context.Context, id int64) error
}

type ProfileRepo interface {
	CreateProfile(ctx context.Context, p *models.ExpertProfile) (int64, error)
	GetProfileByID(ctx context.Context, id int64) (*models.ExpertProfile, error)
	GetProfileByUserID(ctx context.Context, userID int64) (*models.ExpertProfile, error)
	UpdateProfile(ctx context.Context, p *models.ExpertProfile) error
	SetExpertFAQ(ctx context.Context, profileID int64, faq string) error
	SetExpertiseSummary(ctx context.Context, profileID int64, summary string) error
	ListProfilesWithBio(ctx context.Context) ([]models.ExpertProfile, error)
	ListProfilesWithSummary(ctx context.Context) ([]models.ExpertProfile, error)
}

type ConversationRepo interface {
	CreateConversation(ctx context.Context, c *models.Conversation) (int64, error)
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	// GetConversationForUser applies the visibility rule: the user must be
	// the initiator or the currently assigned expert.
	GetConversationForUser(ctx context.Context, id, userID int64) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error)
	SetSummary(ctx context.Context, id int64, summary string) error

	// AssignExpert performs the claim/auto-assign transition atomically:
	// a compare-and-set on assigned_expert_id IS NULL plus the creation of
	// an active ExpertAssignment. Returns ErrNotFound or ErrAlreadyAssigned.
	AssignExpert(ctx context.Context, conversationID, expertID int64) error
	// ReleaseExpert performs the unclaim transition atomically: clears the
	// assigned expert, sets status waiting, and resolves the matching active
	// assignment. Returns ErrNotFound or ErrNotAssigned.
	ReleaseExpert(ctx context.Context, conversationID, expertID int64) error

	// Incremental update queries; since is inclusive (updated >= since).
	ConversationsSince(ctx context.Context, userID, since int64) ([]models.Conversation, error)
	WaitingSince(ctx context.Context, since int64) ([]models.Conversation, error)
	ActiveForExpertSince(ctx context.Context, expertID, since int64) ([]models.Conversation, error)
}

// MessageCreateResult reports what the message-create transaction observed:
// the stored message plus the conversation's message count after the insert
// and whether the new message is the chronologically-first one. Both are
// computed inside the same transaction that bumps the conversation
// timestamps, so event consumers see a consistent picture.
type MessageCreateResult struct {
	Message models.Message
	Count   int64
	IsFirst bool
}

type MessageRepo interface {
	CreateMessage(ctx context.Context, m *models.Message) (*MessageCreateResult, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	GetMessageForUser(ctx context.Context, id, userID int64) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error)
	FirstMessage(ctx context.Context, conversationID int64) (*models.Message, error)
	FirstMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error)
	MessagesSince(ctx context.Context, userID, since int64) ([]models.Message, error)
	MarkRead(ctx context.Context, id int64) error
}

type AssignmentRepo interface {
	ListByExpert(ctx context.Context, expertID int64) ([]models.ExpertAssignment, error)
	ListResolvedByExpert(ctx context.Context, expertID int64, limit int) ([]models.ExpertAssignment, error)
}

type JobRepo interface {
	Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error)
	FetchNext(ctx context.Context) (*models.BackgroundJob, error)
	UpdateJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
}
