// Package assignment owns the conversation status state machine:
// waiting -> active via claim or auto-assign, active -> waiting via unclaim.
// At most one active expert per conversation, enforced by compare-and-set
// at the point of update, never last-write-wins.
package assignment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/scalarai/helpdesk/internal/events"
	"github.com/scalarai/helpdesk/pkg/repository"
)

// ErrNotFound means the conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// ErrConflict means the conversation is already assigned to an expert.
var ErrConflict = errors.New("conversation is already assigned to an expert")

// ErrForbidden means the requesting expert is not the assigned one.
var ErrForbidden = errors.New("expert is not assigned to this conversation")

type Service struct {
	convs      repository.ConversationRepo
	dispatcher events.Dispatcher
	logger     *slog.Logger
}

func NewService(convs repository.ConversationRepo, dispatcher events.Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = events.NopDispatcher{}
	}
	return &Service{convs: convs, dispatcher: dispatcher, logger: logger}
}

// Claim assigns the expert to a waiting conversation. A concurrent claim
// loses with ErrConflict and changes nothing.
func (s *Service) Claim(ctx context.Context, conversationID, expertID int64) error {
	err := s.convs.AssignExpert(ctx, conversationID, expertID)
	switch {
	case err == nil:
		s.logger.Info("conversation claimed", "conversation_id", conversationID, "expert_id", expertID)
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrAlreadyAssigned):
		return ErrConflict
	default:
		return err
	}
}

// Unclaim releases the conversation back to waiting and resolves the
// expert's active assignment record. Only the currently assigned expert may
// unclaim.
func (s *Service) Unclaim(ctx context.Context, conversationID, expertID int64) error {
	err := s.convs.ReleaseExpert(ctx, conversationID, expertID)
	switch {
	case err == nil:
		s.logger.Info("conversation unclaimed", "conversation_id", conversationID, "expert_id", expertID)
		s.dispatcher.Dispatch(ctx, events.AssignmentResolved{ExpertID: expertID})
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrNotAssigned):
		return ErrForbidden
	default:
		return err
	}
}

// ApplyAutoAssign applies an asynchronous routing decision. The emptiness
// re-check lives in the same compare-and-set as Claim: if a human claimed
// while the decision was being computed, this is a silent no-op.
func (s *Service) ApplyAutoAssign(ctx context.Context, conversationID, expertID int64) error {
	err := s.convs.AssignExpert(ctx, conversationID, expertID)
	switch {
	case err == nil:
		s.logger.Info("conversation auto-assigned", "conversation_id", conversationID, "expert_id", expertID)
		return nil
	case errors.Is(err, repository.ErrAlreadyAssigned):
		s.logger.Info("auto-assign skipped, already assigned", "conversation_id", conversationID, "expert_id", expertID)
		return nil
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Warn("auto-assign target vanished", "conversation_id", conversationID)
		return nil
	default:
		return err
	}
}
