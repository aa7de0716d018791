// Package events defines the post-commit events emitted by mutations and
// the dispatcher contract that routes them to background handlers. Trigger
// policy (when to summarize, when to route) lives with the dispatcher, not
// with the entities.
package events

import "context"

type Event interface {
	Name() string
}

type ConversationCreated struct {
	ConversationID int64 `json:"conversation_id"`
}

func (ConversationCreated) Name() string { return "conversation.created" }

type MessageCreated struct {
	ConversationID int64 `json:"conversation_id"`
	MessageID      int64 `json:"message_id"`
	SenderID       int64 `json:"sender_id"`
	FromInitiator  bool  `json:"from_initiator"`
	IsFirst        bool  `json:"is_first"`
	Count          int64 `json:"count"`
}

func (MessageCreated) Name() string { return "message.created" }

// AssignmentResolved fires on the edge of an assignment transitioning into
// resolved status, never on repeated saves of an already-resolved record.
type AssignmentResolved struct {
	ExpertID int64 `json:"expert_id"`
}

func (AssignmentResolved) Name() string { return "assignment.resolved" }

type ProfileUpdated struct {
	ProfileID    int64 `json:"profile_id"`
	Created      bool  `json:"created"`
	LinksChanged bool  `json:"links_changed"`
}

func (ProfileUpdated) Name() string { return "profile.updated" }

// Dispatcher consumes post-commit events. Implementations must not block on
// the work the events trigger and must never fail the mutation that emitted
// them.
type Dispatcher interface {
	Dispatch(ctx context.Context, evs ...Event)
}

// NopDispatcher discards all events. Useful in tests.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, ...Event) {}
