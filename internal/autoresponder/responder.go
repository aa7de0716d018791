// Package autoresponder synthesizes an expert-voice reply to the first
// question in a conversation, grounded on the assigned expert's FAQ.
package autoresponder

import (
	"context"
	"log/slog"
	"strings"

	"github.com/scalarai/helpdesk/pkg/llm"
	"github.com/scalarai/helpdesk/pkg/models"
	"github.com/scalarai/helpdesk/pkg/repository"
)

// SkipToken is the exact answer the model must give when the FAQ does not
// cover the question.
const SkipToken = "NO_AUTO_RESPONSE"

// MessageCreator posts the synthesized reply through the normal message
// path, so conversation timestamps bump and downstream events fire.
type MessageCreator interface {
	CreateMessage(ctx context.Context, conversationID, senderID int64, content string) (*models.Message, error)
}

type Responder struct {
	gateway  llm.Gateway
	convs    repository.ConversationRepo
	msgs     repository.MessageRepo
	profiles repository.ProfileRepo
	users    repository.UserRepo
	creator  MessageCreator
	logger   *slog.Logger
}

func New(gateway llm.Gateway, convs repository.ConversationRepo, msgs repository.MessageRepo, profiles repository.ProfileRepo, users repository.UserRepo, creator MessageCreator, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{gateway: gateway, convs: convs, msgs: msgs, profiles: profiles, users: users, creator: creator, logger: logger}
}

// Respond checks whether an auto-reply is applicable for the given message
// and posts one if so. Every failure is logged and swallowed: this path
// never surfaces an error to its caller.
//
// Preconditions, all required: the conversation has an assigned expert,
// that expert has a non-empty generated FAQ, and the triggering message is
// from the initiator and is the chronologically-first message (matched by
// identity, so backfilled data cannot double-fire). An expert-authored
// message can never satisfy the initiator check, so a synthesized reply
// cannot re-trigger this path.
func (r *Responder) Respond(ctx context.Context, messageID int64) {
	msg, err := r.msgs.GetMessage(ctx, messageID)
	if err != nil {
		r.logger.Error("auto-respond: load message", "message_id", messageID, "err", err)
		return
	}
	if msg == nil {
		return
	}

	conv, err := r.convs.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		r.logger.Error("auto-respond: load conversation", "conversation_id", msg.ConversationID, "err", err)
		return
	}
	if conv == nil || conv.AssignedExpertID == nil {
		return
	}
	expertID := *conv.AssignedExpertID

	profile, err := r.profiles.GetProfileByUserID(ctx, expertID)
	if err != nil {
		r.logger.Error("auto-respond: load profile", "expert_id", expertID, "err", err)
		return
	}
	if profile == nil || strings.TrimSpace(profile.ExpertFAQ) == "" {
		return
	}

	if msg.SenderID != conv.InitiatorID {
		return
	}
	first, err := r.msgs.FirstMessage(ctx, msg.ConversationID)
	if err != nil {
		r.logger.Error("auto-respond: load first message", "conversation_id", msg.ConversationID, "err", err)
		return
	}
	if first == nil || first.ID != msg.ID {
		return
	}

	expert, err := r.users.GetUserByID(ctx, expertID)
	if err != nil || expert == nil {
		r.logger.Error("auto-respond: load expert", "expert_id", expertID, "err", err)
		return
	}

	reply, err := r.generateReply(ctx, expert.Username, profile.ExpertFAQ, msg.Content)
	if err != nil {
		r.logger.Error("auto-respond: generate reply", "conversation_id", conv.ID, "err", err)
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" || strings.EqualFold(reply, SkipToken) {
		return
	}

	if _, err := r.creator.CreateMessage(ctx, conv.ID, expertID, reply); err != nil {
		r.logger.Error("auto-respond: post reply", "conversation_id", conv.ID, "err", err)
		return
	}
	r.logger.Info("auto-responded", "conversation_id", conv.ID, "expert_id", expertID)
}

func (r *Responder) generateReply(ctx context.Context, expertUsername, faq, question string) (string, error) {
	systemPrompt := `You are assisting on behalf of expert "` + expertUsername + `".
You have access to their FAQ. Only answer if the FAQ clearly covers the user's question.
If you are not confident the FAQ covers it, respond exactly with "` + SkipToken + `".
Keep answers short (1-3 sentences).`

	userPrompt := "FAQ:\n" + faq + "\n\nUser question:\n" + question

	return r.gateway.Complete(ctx, systemPrompt, userPrompt, 200, 0.2)
}
