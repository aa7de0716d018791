// Package routing selects an expert for an unassigned conversation. Two
// independent strategies exist: BioStrategy matches against expert bios and
// answers with a user id, SummaryStrategy matches against derived expertise
// summaries and answers with a 1-based candidate index. Their parsers are
// deliberately separate because the output formats differ.
package routing

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrNoMatch means no suitable expert was found. Callers treat it (and any
// other error from a strategy) as "leave the conversation unassigned".
var ErrNoMatch = errors.New("no suitable expert")

// Context carries the conversation signals a strategy matches against.
type Context struct {
	ConversationID int64
	Title          string
	FirstMessage   string
}

// Strategy picks at most one expert (by user id) for a conversation.
type Strategy interface {
	SelectExpert(ctx context.Context, rc Context) (int64, error)
}

var digitRun = regexp.MustCompile(`\d+`)

// noMatchAnswer reports whether a cleaned (trimmed, uppercased) model answer
// is an explicit refusal.
func noMatchAnswer(cleaned string) bool {
	return cleaned == "" || cleaned == "NONE" ||
		strings.Contains(cleaned, "NO EXPERT") ||
		strings.Contains(cleaned, "NOT SUITED")
}
