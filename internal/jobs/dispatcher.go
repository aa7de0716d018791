package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/scalarai/helpdesk/internal/events"
	"github.com/scalarai/helpdesk/pkg/models"
	"github.com/scalarai/helpdesk/pkg/repository"
)

// Dispatcher maps post-commit events onto background jobs. Enqueue failures
// are logged and swallowed: background work must never fail the request
// that triggered it.
type Dispatcher struct {
	repo   repository.JobRepo
	logger *slog.Logger
}

var _ events.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(repo repository.JobRepo, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{repo: repo, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, evs ...events.Event) {
	for _, ev := range evs {
		switch e := ev.(type) {
		case events.ConversationCreated:
			d.enqueue(ctx, TypeAutoAssign, map[string]any{"conversation_id": e.ConversationID})
		case events.MessageCreated:
			if e.IsFirst && e.FromInitiator {
				d.enqueue(ctx, TypeAssignExpert, map[string]any{"conversation_id": e.ConversationID})
			}
			if e.Count == 1 || e.Count%3 == 0 {
				d.enqueue(ctx, TypeConversationSummary, map[string]any{"conversation_id": e.ConversationID})
			}
			d.enqueue(ctx, TypeAutoRespond, map[string]any{"message_id": e.MessageID})
		case events.AssignmentResolved:
			d.enqueue(ctx, TypeExpertiseSummary, map[string]any{"expert_id": e.ExpertID})
		case events.ProfileUpdated:
			if e.Created || e.LinksChanged {
				d.enqueue(ctx, TypeGenerateFAQ, map[string]any{"profile_id": e.ProfileID})
			}
		default:
			d.logger.Warn("unhandled event", "event", ev.Name())
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, typ string, payload map[string]any) {
	b, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("marshal job payload", "type", typ, "err", err)
		return
	}
	// single-attempt semantics: failed jobs go to the dead-letter table,
	// never back on the queue
	j := &models.BackgroundJob{Type: typ, Payload: b, Priority: 100, MaxAttempts: 1, ScheduledAt: time.Now()}
	if _, err := d.repo.Enqueue(ctx, j); err != nil {
		d.logger.Error("enqueue job", "type", typ, "err", err)
	}
}
