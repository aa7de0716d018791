// Package chat owns conversation and message mutations plus the polling
// read contracts. Mutations emit post-commit events; trigger policy lives
// with the event dispatcher.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scalarai/helpdesk/internal/events"
	"github.com/scalarai/helpdesk/pkg/models"
	"github.com/scalarai/helpdesk/pkg/repository"
)

// ErrNotFound covers both missing and invisible entities: a conversation
// the user cannot see reads as absent, never as forbidden.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned for operations the user may not perform on an
// entity they can see (e.g. marking their own message read).
var ErrForbidden = errors.New("forbidden")

// ErrValidation rejects malformed input (empty title, empty content).
var ErrValidation = errors.New("invalid input")

// Queue is the expert-queue read result: two named lists, not a flat one.
type Queue struct {
	Waiting  []models.Conversation `json:"waiting"`
	Assigned []models.Conversation `json:"assigned"`
}

type Service struct {
	convs      repository.ConversationRepo
	msgs       repository.MessageRepo
	users      repository.UserRepo
	dispatcher events.Dispatcher
	logger     *slog.Logger
}

func NewService(convs repository.ConversationRepo, msgs repository.MessageRepo, users repository.UserRepo, dispatcher events.Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = events.NopDispatcher{}
	}
	return &Service{convs: convs, msgs: msgs, users: users, dispatcher: dispatcher, logger: logger}
}

// CreateConversation opens a new waiting conversation for the initiator.
func (s *Service) CreateConversation(ctx context.Context, initiatorID int64, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	c := &models.Conversation{
		InitiatorID: initiatorID,
		Title:       title,
		Status:      models.ConversationWaiting,
	}
	id, err := s.convs.CreateConversation(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	c.ID = id

	s.dispatcher.Dispatch(ctx, events.ConversationCreated{ConversationID: id})

	return s.convs.GetConversation(ctx, id)
}

// CreateMessage stores a message from a participant. The sender's role is
// derived from their relationship to the conversation at send time; a user
// that is neither initiator nor assigned expert gets not-found.
func (s *Service) CreateMessage(ctx context.Context, conversationID, senderID int64, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}

	conv, err := s.convs.GetConversationForUser(ctx, conversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrNotFound
	}

	role := models.RoleExpert
	if conv.InitiatorID == senderID {
		role = models.RoleInitiator
	}

	res, err := s.msgs.CreateMessage(ctx, &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderRole:     role,
		Content:        content,
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.dispatcher.Dispatch(ctx, events.MessageCreated{
		ConversationID: conversationID,
		MessageID:      res.Message.ID,
		SenderID:       senderID,
		FromInitiator:  role == models.RoleInitiator,
		IsFirst:        res.IsFirst,
		Count:          res.Count,
	})

	return &res.Message, nil
}

// MarkRead flags someone else's message as read.
func (s *Service) MarkRead(ctx context.Context, messageID, userID int64) error {
	msg, err := s.msgs.GetMessageForUser(ctx, messageID, userID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if msg == nil {
		return ErrNotFound
	}
	if msg.SenderID == userID {
		return fmt.Errorf("%w: cannot mark your own messages as read", ErrForbidden)
	}
	return s.msgs.MarkRead(ctx, messageID)
}

// GetConversation applies the visibility rule for the requesting user.
func (s *Service) GetConversation(ctx context.Context, conversationID, userID int64) (*models.Conversation, error) {
	conv, err := s.convs.GetConversationForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrNotFound
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	return s.convs.ListForUser(ctx, userID)
}

// ListMessages lists a conversation's messages oldest-first, only for
// participants.
func (s *Service) ListMessages(ctx context.Context, conversationID, userID int64) ([]models.Message, error) {
	conv, err := s.convs.GetConversationForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrNotFound
	}
	return s.msgs.ListByConversation(ctx, conversationID)
}

// ConversationsSince is the polling read for a user's conversations,
// inclusive of the since boundary, most recently updated first.
func (s *Service) ConversationsSince(ctx context.Context, userID, since int64) ([]models.Conversation, error) {
	return s.convs.ConversationsSince(ctx, userID, since)
}

// MessagesSince is the polling read for messages across all of the user's
// conversations, inclusive, newest first.
func (s *Service) MessagesSince(ctx context.Context, userID, since int64) ([]models.Message, error) {
	return s.msgs.MessagesSince(ctx, userID, since)
}

// QueueSince is the polling read for an expert: waiting conversations
// oldest-first (FIFO claiming fairness) and the expert's active
// conversations most-recently-updated first.
func (s *Service) QueueSince(ctx context.Context, expertID, since int64) (*Queue, error) {
	waiting, err := s.convs.WaitingSince(ctx, since)
	if err != nil {
		return nil, err
	}
	assigned, err := s.convs.ActiveForExpertSince(ctx, expertID, since)
	if err != nil {
		return nil, err
	}
	if waiting == nil {
		waiting = []models.Conversation{}
	}
	if assigned == nil {
		assigned = []models.Conversation{}
	}
	return &Queue{Waiting: waiting, Assigned: assigned}, nil
}
