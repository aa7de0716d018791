package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scalarai/helpdesk/pkg/llm"
	"github.com/scalarai/helpdesk/pkg/repository"
)

const expertiseSystemPrompt = `You are an AI assistant that analyzes an expert's conversation history to generate a concise expertise summary.

Your task is to:
1. Identify the main topics and areas where the expert has helped users
2. Note the types of questions they typically answer
3. Highlight any specializations or patterns in their expertise
4. Keep the summary concise (2-3 sentences maximum)
5. Be specific about technical domains, technologies, or problem types

Focus on technical domains, problem types, and expertise areas, not on communication style.
If the conversation history is very limited, note that the expert is new but mention any visible patterns.`

// NoExpertise is stored when the history gives the model nothing to work
// with, so routing can tell "summarized as empty" apart from "never
// summarized".
const NoExpertise = "No expertise areas"

// expertiseHistoryLimit bounds how far back resolved assignments are read.
const expertiseHistoryLimit = 50

// minSummaryLen guards against the model answering with filler like "OK".
const minSummaryLen = 20

type ExpertiseSummarizer struct {
	gateway     llm.Gateway
	assignments repository.AssignmentRepo
	convs       repository.ConversationRepo
	msgs        repository.MessageRepo
	profiles    repository.ProfileRepo
	users       repository.UserRepo
	logger      *slog.Logger
}

func NewExpertiseSummarizer(gateway llm.Gateway, assignments repository.AssignmentRepo, convs repository.ConversationRepo, msgs repository.MessageRepo, profiles repository.ProfileRepo, users repository.UserRepo, logger *slog.Logger) *ExpertiseSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpertiseSummarizer{
		gateway:     gateway,
		assignments: assignments,
		convs:       convs,
		msgs:        msgs,
		profiles:    profiles,
		users:       users,
		logger:      logger,
	}
}

// Summarize rebuilds the expert's expertise summary from their most recent
// resolved assignments and stores it on the profile. An expert with no
// resolved history keeps whatever summary they have. A failed model call
// stores the empty string so the profile drops out of summary-based
// routing until the next resolve.
func (s *ExpertiseSummarizer) Summarize(ctx context.Context, expertID int64) error {
	profile, err := s.profiles.GetProfileByUserID(ctx, expertID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil
	}

	expert, err := s.users.GetUserByID(ctx, expertID)
	if err != nil {
		return fmt.Errorf("load expert: %w", err)
	}
	if expert == nil {
		return nil
	}

	resolved, err := s.assignments.ListResolvedByExpert(ctx, expertID, expertiseHistoryLimit)
	if err != nil {
		return fmt.Errorf("load resolved assignments: %w", err)
	}
	if len(resolved) == 0 {
		return nil
	}

	var transcripts []string
	for _, a := range resolved {
		conv, err := s.convs.GetConversation(ctx, a.ConversationID)
		if err != nil {
			return fmt.Errorf("load conversation %d: %w", a.ConversationID, err)
		}
		if conv == nil {
			continue
		}
		msgs, err := s.msgs.ListByConversation(ctx, a.ConversationID)
		if err != nil {
			return fmt.Errorf("load messages for conversation %d: %w", a.ConversationID, err)
		}
		if len(msgs) == 0 {
			continue
		}

		var lines []string
		for _, m := range msgs {
			lines = append(lines, m.SenderRole+": "+m.Content)
		}
		transcripts = append(transcripts, fmt.Sprintf("Conversation %d: %s\nMessages:\n%s",
			len(transcripts)+1, conv.Title, strings.Join(lines, "\n")))
	}

	summary := NoExpertise
	if len(transcripts) > 0 {
		summary = s.generate(ctx, expert.Username, strings.Join(transcripts, "\n---\n"))
	}

	if err := s.profiles.SetExpertiseSummary(ctx, profile.ID, summary); err != nil {
		return fmt.Errorf("store expertise summary: %w", err)
	}
	s.logger.Info("expertise summarized", "expert_id", expertID, "profile_id", profile.ID)
	return nil
}

func (s *ExpertiseSummarizer) generate(ctx context.Context, username, history string) string {
	userPrompt := fmt.Sprintf(`Analyze the following conversation history for expert "%s" and generate a brief expertise summary:

%s

Generate a concise 2-3 sentence summary of this expert's areas of expertise based on the conversations above.
Be specific about the types of problems they help with.`, username, history)

	out, err := s.gateway.Complete(ctx, expertiseSystemPrompt, userPrompt, 250, 0.3)
	if err != nil {
		s.logger.Error("expertise summary generation failed", "expert", username, "err", err)
		return ""
	}
	summary := strings.TrimSpace(out)
	if len(summary) < minSummaryLen {
		return NoExpertise
	}
	return summary
}
