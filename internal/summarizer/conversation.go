// Package summarizer derives short texts from stored conversations: a
// one-line topic summary per conversation and an expertise summary per
// expert. Both run as background work and degrade to fallbacks rather than
// failing.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scalarai/helpdesk/pkg/llm"
	"github.com/scalarai/helpdesk/pkg/repository"
)

const conversationSystemPrompt = "You are a helpful assistant that creates brief summaries of conversations. " +
	"Provide a concise one-sentence summary (max 100 characters) of the main topic or question."

// conversationContextLimit bounds the transcript handed to the model; older
// traffic rarely changes the topic.
const conversationContextLimit = 10

// summaryMaxLen caps the stored summary so it fits list views.
const summaryMaxLen = 150

type ConversationSummarizer struct {
	gateway llm.Gateway
	convs   repository.ConversationRepo
	msgs    repository.MessageRepo
	logger  *slog.Logger
}

func NewConversationSummarizer(gateway llm.Gateway, convs repository.ConversationRepo, msgs repository.MessageRepo, logger *slog.Logger) *ConversationSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationSummarizer{gateway: gateway, convs: convs, msgs: msgs, logger: logger}
}

// Summarize regenerates and stores the conversation's topic summary. A
// conversation with no messages is left untouched. When the model call
// fails the title is stored as the summary so readers always see
// something. Storing the summary does not count as conversation activity.
func (s *ConversationSummarizer) Summarize(ctx context.Context, conversationID int64) error {
	conv, err := s.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil
	}

	msgs, err := s.msgs.FirstMessages(ctx, conversationID, conversationContextLimit)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.SenderUsername)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}

	userPrompt := "Summarize this conversation:\n\n" + sb.String()

	summary := ""
	out, err := s.gateway.Complete(ctx, conversationSystemPrompt, userPrompt, 700, 0.2)
	if err != nil {
		s.logger.Error("conversation summary generation failed, falling back to title",
			"conversation_id", conversationID, "err", err)
		summary = truncate(conv.Title, summaryMaxLen)
	} else {
		summary = truncate(strings.TrimSpace(out), summaryMaxLen)
	}

	if err := s.convs.SetSummary(ctx, conversationID, summary); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	s.logger.Info("conversation summarized", "conversation_id", conversationID)
	return nil
}

// truncate cuts to max characters, never mid-rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
