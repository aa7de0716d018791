package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/scalarai/helpdesk/pkg/models"
)

// Background job types. All are enqueued with max_attempts = 1: each job is
// single-attempt and independently idempotent-safe to re-run, but the system
// never retries automatically.
const (
	TypeAssignExpert        = "routing.assign_expert" // bio-based routing (first initiator message)
	TypeAutoAssign          = "routing.auto_assign"   // summary-based routing (conversation created)
	TypeAutoRespond         = "chat.auto_respond"
	TypeConversationSummary = "summary.conversation"
	TypeExpertiseSummary    = "summary.expertise"
	TypeGenerateFAQ         = "faq.generate"
)

// Handler is the function that processes a job
type Handler func(ctx context.Context, j *models.BackgroundJob) error

// ErrMaxAttempts indicates the job reached max attempts
var ErrMaxAttempts = errors.New("max attempts reached")

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	// simple exponential: base 2^attempt seconds, capped
	d := time.Duration(1<<uint(attempt)) * time.Second
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}
