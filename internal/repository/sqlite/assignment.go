package sqlite

import (
	"context"
	"database/sql"

	"github.com/scalarai/helpdesk/pkg/models"
)

const assignmentCols = `id, conversation_id, expert_id, status, assigned_at, resolved_at`

func (r *SQLiteRepo) ListByExpert(ctx context.Context, expertID int64) ([]models.ExpertAssignment, error) {
	q := `SELECT ` + assignmentCols + ` FROM expert_assignments WHERE expert_id = ? ORDER BY assigned_at DESC, id DESC`
	return r.queryAssignments(ctx, q, expertID)
}

func (r *SQLiteRepo) ListResolvedByExpert(ctx context.Context, expertID int64, limit int) ([]models.ExpertAssignment, error) {
	q := `SELECT ` + assignmentCols + ` FROM expert_assignments WHERE expert_id = ? AND status = ? ORDER BY resolved_at DESC, id DESC LIMIT ?`
	return r.queryAssignments(ctx, q, expertID, models.AssignmentResolved, limit)
}

func (r *SQLiteRepo) ActiveByConversation(ctx context.Context, conversationID int64) (*models.ExpertAssignment, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+assignmentCols+` FROM expert_assignments WHERE conversation_id = ? AND status = ? LIMIT 1`, conversationID, models.AssignmentActive)
	var a models.ExpertAssignment
	var resolved sql.NullInt64
	if err := row.Scan(&a.ID, &a.ConversationID, &a.ExpertID, &a.Status, &a.AssignedAt, &resolved); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}
	if resolved.Valid {
		v := resolved.Int64
		a.ResolvedAt = &v
	}

	return &a, nil
}

func (r *SQLiteRepo) queryAssignments(ctx context.Context, q string, args ...any) ([]models.ExpertAssignment, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ExpertAssignment
	for rows.Next() {
		var a models.ExpertAssignment
		var resolved sql.NullInt64
		if err := rows.Scan(&a.ID, &a.ConversationID, &a.ExpertID, &a.Status, &a.AssignedAt, &resolved); err != nil {
			return nil, err
		}
		if resolved.Valid {
			v := resolved.Int64
			a.ResolvedAt = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
