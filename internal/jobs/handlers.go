package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scalarai/helpdesk/internal/assignment"
	"github.com/scalarai/helpdesk/internal/autoresponder"
	"github.com/scalarai/helpdesk/internal/faq"
	"github.com/scalarai/helpdesk/internal/routing"
	"github.com/scalarai/helpdesk/internal/summarizer"
	"github.com/scalarai/helpdesk/pkg/models"
	"github.com/scalarai/helpdesk/pkg/repository"
)

// HandlerDeps carries everything the job handlers need. The two routing
// strategies are kept separate on purpose: TypeAssignExpert routes on bios,
// TypeAutoAssign routes on expertise summaries.
type HandlerDeps struct {
	Convs        repository.ConversationRepo
	Msgs         repository.MessageRepo
	BioRouter    routing.Strategy
	SummRouter   routing.Strategy
	Assignments  *assignment.Service
	Responder    *autoresponder.Responder
	ConvSummary  *summarizer.ConversationSummarizer
	ExpSummary   *summarizer.ExpertiseSummarizer
	FAQGenerator *faq.Generator
	Logger       *slog.Logger
}

// NewHandlers builds the handler table for the worker pool.
//
// Routing and LLM failures return nil so they end the job quietly; the
// request that triggered the job already succeeded and there is nobody to
// report to. Only unusable payloads return an error, which sends the job
// to the dead-letter table for inspection.
func NewHandlers(d HandlerDeps) map[string]Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return map[string]Handler{
		TypeAssignExpert:        routeHandler(d, d.BioRouter, logger),
		TypeAutoAssign:          routeHandler(d, d.SummRouter, logger),
		TypeAutoRespond:         autoRespondHandler(d),
		TypeConversationSummary: conversationSummaryHandler(d, logger),
		TypeExpertiseSummary:    expertiseSummaryHandler(d, logger),
		TypeGenerateFAQ:         faqHandler(d, logger),
	}
}

type conversationPayload struct {
	ConversationID int64 `json:"conversation_id"`
}

type messagePayload struct {
	MessageID int64 `json:"message_id"`
}

type expertPayload struct {
	ExpertID int64 `json:"expert_id"`
}

type profilePayload struct {
	ProfileID int64 `json:"profile_id"`
}

func routeHandler(d HandlerDeps, strategy routing.Strategy, logger *slog.Logger) Handler {
	return func(ctx context.Context, j *models.BackgroundJob) error {
		var p conversationPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}

		conv, err := d.Convs.GetConversation(ctx, p.ConversationID)
		if err != nil {
			logger.Error("routing: load conversation", "conversation_id", p.ConversationID, "err", err)
			return nil
		}
		if conv == nil || conv.AssignedExpertID != nil {
			return nil
		}

		rc := routing.Context{ConversationID: conv.ID, Title: conv.Title}
		first, err := d.Msgs.FirstMessage(ctx, conv.ID)
		if err != nil {
			logger.Error("routing: load first message", "conversation_id", conv.ID, "err", err)
			return nil
		}
		if first != nil {
			rc.FirstMessage = first.Content
		}

		expertID, err := strategy.SelectExpert(ctx, rc)
		if err != nil {
			if errors.Is(err, routing.ErrNoMatch) {
				logger.Info("routing: no suitable expert", "conversation_id", conv.ID)
			} else {
				logger.Error("routing: selection failed", "conversation_id", conv.ID, "err", err)
			}
			return nil
		}

		if err := d.Assignments.ApplyAutoAssign(ctx, conv.ID, expertID); err != nil {
			logger.Error("routing: apply assignment", "conversation_id", conv.ID, "expert_id", expertID, "err", err)
		}
		return nil
	}
}

func autoRespondHandler(d HandlerDeps) Handler {
	return func(ctx context.Context, j *models.BackgroundJob) error {
		var p messagePayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		d.Responder.Respond(ctx, p.MessageID)
		return nil
	}
}

func conversationSummaryHandler(d HandlerDeps, logger *slog.Logger) Handler {
	return func(ctx context.Context, j *models.BackgroundJob) error {
		var p conversationPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if err := d.ConvSummary.Summarize(ctx, p.ConversationID); err != nil {
			logger.Error("conversation summary failed", "conversation_id", p.ConversationID, "err", err)
		}
		return nil
	}
}

func expertiseSummaryHandler(d HandlerDeps, logger *slog.Logger) Handler {
	return func(ctx context.Context, j *models.BackgroundJob) error {
		var p expertPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if err := d.ExpSummary.Summarize(ctx, p.ExpertID); err != nil {
			logger.Error("expertise summary failed", "expert_id", p.ExpertID, "err", err)
		}
		return nil
	}
}

func faqHandler(d HandlerDeps, logger *slog.Logger) Handler {
	return func(ctx context.Context, j *models.BackgroundJob) error {
		var p profilePayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if err := d.FAQGenerator.Generate(ctx, p.ProfileID); err != nil {
			logger.Error("FAQ generation failed", "profile_id", p.ProfileID, "err", err)
		}
		return nil
	}
}
