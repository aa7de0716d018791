package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/scalarai/helpdesk/pkg/llm"
	"github.com/scalarai/helpdesk/pkg/repository"
)

const summarySystemPrompt = `You are an AI assistant that assigns customer support conversations to the most appropriate expert.

Your task is to:
1. Analyze the conversation title and initial content
2. Review the expertise summaries of available experts
3. Select the best-matching expert OR determine if no expert is appropriate
4. Respond with ONLY the expert number (e.g., "1", "2", "3") or "NONE" if no expert is suitable

Be conservative - only assign if there's a clear match. If the question is too vague or doesn't match any expertise, respond with "NONE".`

// SummaryStrategy routes by matching the conversation against derived
// expertise summaries. Candidates are enumerated 1..N in stable order and
// the model answers with the 1-based index.
type SummaryStrategy struct {
	gateway  llm.Gateway
	profiles repository.ProfileRepo
	logger   *slog.Logger
}

func NewSummaryStrategy(gateway llm.Gateway, profiles repository.ProfileRepo, logger *slog.Logger) *SummaryStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryStrategy{gateway: gateway, profiles: profiles, logger: logger}
}

func (s *SummaryStrategy) SelectExpert(ctx context.Context, rc Context) (int64, error) {
	candidates, err := s.profiles.ListProfilesWithSummary(ctx)
	if err != nil {
		return 0, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, ErrNoMatch
	}

	var sb strings.Builder
	for i, p := range candidates {
		fmt.Fprintf(&sb, "Expert %d: %s\nExpertise Summary: %s\n\n", i+1, p.Username, p.ExpertiseSummary)
	}

	content := rc.FirstMessage
	if content == "" {
		content = "No initial message"
	}

	userPrompt := fmt.Sprintf(`New conversation to assign:
Title: %s
Initial Content: %s

Available experts:
%s

Which expert should handle this conversation? Respond with ONLY the expert number (1, 2, 3, etc.) or "NONE" if no expert is appropriate.`,
		rc.Title, content, sb.String())

	out, err := s.gateway.Complete(ctx, summarySystemPrompt, userPrompt, 10, 0.1)
	if err != nil {
		return 0, fmt.Errorf("routing completion: %w", err)
	}

	idx, ok := parseCandidateIndex(out, len(candidates))
	if !ok {
		return 0, ErrNoMatch
	}

	return candidates[idx-1].UserID, nil
}

// parseCandidateIndex extracts a 1-based candidate index from a model
// answer. A purely numeric answer is used directly; otherwise the first run
// of digits anywhere in the answer is used. Out-of-range means no match.
func parseCandidateIndex(resp string, n int) (int, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(resp))
	if cleaned == "" || cleaned == "NONE" {
		return 0, false
	}

	num := cleaned
	if _, err := strconv.Atoi(cleaned); err != nil {
		num = digitRun.FindString(resp)
		if num == "" {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(num)
	if err != nil || idx < 1 || idx > n {
		return 0, false
	}
	return idx, true
}
