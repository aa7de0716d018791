// Package faq builds an expert's FAQ from their knowledge-base links: the
// pages are scraped, the text is handed to the model, and the result is
// stored on the profile. Every failure path stores a readable fallback so
// the FAQ column is always presentable.
package faq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scalarai/helpdesk/pkg/llm"
	"github.com/scalarai/helpdesk/pkg/repository"
)

const faqSystemPrompt = `You are an assistant that builds concise, helpful FAQ entries for experts.
Use only the provided source material. Do not invent details.
Present up to 6 Q&A pairs. Keep answers short and actionable (1-3 sentences).`

// Fallbacks stored verbatim when generation cannot proceed.
const (
	NoLinks     = "No knowledge base links provided"
	NoContent   = "Could not retrieve content from knowledge base links"
	Unavailable = "FAQ unavailable"
)

const (
	maxLinks        = 5
	maxContextChars = 12000
	scrapeDepth     = 1
	minFAQLen       = 20
)

// Scraper turns an HTTPS URL into flattened page text.
type Scraper interface {
	Scrape(ctx context.Context, url string, maxDepth int) (string, error)
}

type Generator struct {
	gateway  llm.Gateway
	scraper  Scraper
	profiles repository.ProfileRepo
	users    repository.UserRepo
	logger   *slog.Logger
}

func NewGenerator(gateway llm.Gateway, scraper Scraper, profiles repository.ProfileRepo, users repository.UserRepo, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{gateway: gateway, scraper: scraper, profiles: profiles, users: users, logger: logger}
}

// Generate rebuilds and stores the FAQ for a profile. A missing profile is
// a no-op. Only HTTPS links are considered and only the first few are
// scraped; scraped text is capped before it reaches the model.
func (g *Generator) Generate(ctx context.Context, profileID int64) error {
	profile, err := g.profiles.GetProfileByID(ctx, profileID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil
	}

	faq := g.build(ctx, profile.UserID, profile.KnowledgeBaseLinks)

	if err := g.profiles.SetExpertFAQ(ctx, profileID, faq); err != nil {
		return fmt.Errorf("store FAQ: %w", err)
	}
	g.logger.Info("expert FAQ generated", "profile_id", profileID)
	return nil
}

func (g *Generator) build(ctx context.Context, userID int64, links []string) string {
	var httpsLinks []string
	for _, l := range links {
		if strings.HasPrefix(l, "https://") {
			httpsLinks = append(httpsLinks, l)
		}
	}
	if len(httpsLinks) == 0 {
		return NoLinks
	}
	if len(httpsLinks) > maxLinks {
		httpsLinks = httpsLinks[:maxLinks]
	}

	var chunks []string
	for _, link := range httpsLinks {
		scraped, err := g.scraper.Scrape(ctx, link, scrapeDepth)
		if err != nil {
			g.logger.Warn("failed to scrape knowledge base link", "url", link, "err", err)
			continue
		}
		scraped = strings.TrimSpace(scraped)
		if scraped == "" {
			continue
		}
		chunks = append(chunks, "Source: "+link+"\n"+scraped)
	}
	if len(chunks) == 0 {
		return NoContent
	}

	contextText := strings.Join(chunks, "\n\n")
	if len(contextText) > maxContextChars {
		contextText = contextText[:maxContextChars]
	}

	username := ""
	if user, err := g.users.GetUserByID(ctx, userID); err == nil && user != nil {
		username = user.Username
	}

	userPrompt := fmt.Sprintf(`Build a FAQ for expert "%s" using only the content below.

Content:
%s

Return the FAQ as:
Q: ...
A: ...
(repeat)`, username, contextText)

	out, err := g.gateway.Complete(ctx, faqSystemPrompt, userPrompt, 700, 0.4)
	if err != nil {
		g.logger.Error("FAQ generation failed", "user_id", userID, "err", err)
		return Unavailable
	}
	cleaned := strings.TrimSpace(out)
	if len(cleaned) < minFAQLen {
		return Unavailable
	}
	return cleaned
}
