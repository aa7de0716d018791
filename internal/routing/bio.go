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

const bioSystemPrompt = `You are an expert routing assistant for a help desk system.
Your job is to match user questions with the most suitable expert based on their bio.

Rules:
- Only select an expert if their bio clearly indicates expertise relevant to the question
- If no expert is clearly suited, respond with "NONE"
- If an expert is suited, respond with ONLY their expert ID number
- Do not explain your reasoning, just provide the ID or "NONE"`

// BioStrategy routes by matching the conversation against expert bios. The
// model answers with a free-form user id, so the id must be validated
// against existing users with a profile before it is trusted.
type BioStrategy struct {
	gateway  llm.Gateway
	cache    *ProfileCache
	users    repository.UserRepo
	profiles repository.ProfileRepo
	logger   *slog.Logger
}

func NewBioStrategy(gateway llm.Gateway, cache *ProfileCache, users repository.UserRepo, profiles repository.ProfileRepo, logger *slog.Logger) *BioStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &BioStrategy{gateway: gateway, cache: cache, users: users, profiles: profiles, logger: logger}
}

func (s *BioStrategy) SelectExpert(ctx context.Context, rc Context) (int64, error) {
	candidates, err := s.cache.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, ErrNoMatch
	}

	var sb strings.Builder
	for i, p := range candidates {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&sb, "Expert ID: %d\nUsername: %s\nBio: %s", p.UserID, p.Username, p.Bio)
	}

	userPrompt := fmt.Sprintf(`Question Title: %s

Question Content:
%s

Available Experts:
%s

Who is the best expert for this question? Respond with just the expert ID number or "NONE".`,
		rc.Title, rc.FirstMessage, sb.String())

	out, err := s.gateway.Complete(ctx, bioSystemPrompt, userPrompt, 200, 0.3)
	if err != nil {
		return 0, fmt.Errorf("routing completion: %w", err)
	}

	id, ok := parseExpertID(out)
	if !ok {
		return 0, ErrNoMatch
	}

	// the id came from model output: only trust it if it names an existing
	// user that actually has an expert profile
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("validate expert id: %w", err)
	}
	if user == nil {
		return 0, ErrNoMatch
	}
	profile, err := s.profiles.GetProfileByUserID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("validate expert profile: %w", err)
	}
	if profile == nil {
		return 0, ErrNoMatch
	}

	return id, nil
}

// parseExpertID extracts a user id from a model answer. Refusals ("NONE",
// "NO EXPERT ...", "NOT SUITED ...") and digit-free answers are no-match.
// Digits are extracted from the raw answer, not the uppercased copy.
func parseExpertID(resp string) (int64, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(resp))
	if noMatchAnswer(cleaned) {
		return 0, false
	}

	m := digitRun.FindString(resp)
	if m == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
