package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scalarai/helpdesk/pkg/models"
	"github.com/scalarai/helpdesk/pkg/repository"
)

const conversationCols = `c.id, c.initiator_id, c.assigned_expert_id, c.title, c.status, c.summary, c.last_message_at, c.created, c.updated,
	iu.username, COALESCE(eu.username, '')`

const conversationJoins = `FROM conversations c
	JOIN users iu ON iu.id = c.initiator_id
	LEFT JOIN users eu ON eu.id = c.assigned_expert_id`

func (r *SQLiteRepo) CreateConversation(ctx context.Context, c *models.Conversation) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("conversation is nil")
	}
	if c.Status == "" {
		c.Status = models.ConversationWaiting
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO conversations (initiator_id, title, status, summary, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		c.InitiatorID, c.Title, c.Status, c.Summary, ts, ts)
	if err != nil {
		return 0, err
	}
	c.Created = ts
	c.Updated = ts

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+conversationCols+` `+conversationJoins+` WHERE c.id = ?`, id)
	return scanConversation(row)
}

func (r *SQLiteRepo) GetConversationForUser(ctx context.Context, id, userID int64) (*models.Conversation, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+conversationCols+` `+conversationJoins+` WHERE c.id = ? AND (c.initiator_id = ? OR c.assigned_expert_id = ?)`, id, userID, userID)
	return scanConversation(row)
}

func (r *SQLiteRepo) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	q := `SELECT ` + conversationCols + ` ` + conversationJoins + ` WHERE c.initiator_id = ? OR c.assigned_expert_id = ? ORDER BY c.updated DESC`
	return r.queryConversations(ctx, q, userID, userID)
}

// SetSummary overwrites the stored summary without bumping the updated
// marker, so summary regeneration does not wake pollers.
func (r *SQLiteRepo) SetSummary(ctx context.Context, id int64, summary string) error {
	_, err := r.conn.Exec(ctx, `UPDATE conversations SET summary = ? WHERE id = ?`, summary, id)
	return err
}

// AssignExpert performs the waiting -> active transition. The WHERE clause
// is the compare-and-set: it only matches while no expert is assigned, so a
// racing claim loses cleanly instead of overwriting. The conversation update
// and the assignment insert commit together.
func (r *SQLiteRepo) AssignExpert(ctx context.Context, conversationID, expertID int64) error {
	tx, err := r.conn.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	ts := now()
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET assigned_expert_id = ?, status = ?, updated = ? WHERE id = ? AND assigned_expert_id IS NULL`,
		expertID, models.ConversationActive, ts, conversationID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n == 0 {
		_ = tx.Rollback()
		// distinguish missing conversation from lost race
		var exists int
		row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM conversations WHERE id = ?`, conversationID)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrAlreadyAssigned
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO expert_assignments (conversation_id, expert_id, status, assigned_at) VALUES (?, ?, ?, ?)`,
		conversationID, expertID, models.AssignmentActive, ts); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// ReleaseExpert performs the active -> waiting transition for the currently
// assigned expert, resolving the matching active assignment record.
func (r *SQLiteRepo) ReleaseExpert(ctx context.Context, conversationID, expertID int64) error {
	tx, err := r.conn.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	ts := now()
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET assigned_expert_id = NULL, status = ?, updated = ? WHERE id = ? AND assigned_expert_id = ?`,
		models.ConversationWaiting, ts, conversationID, expertID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n == 0 {
		_ = tx.Rollback()
		var exists int
		row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM conversations WHERE id = ?`, conversationID)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrNotAssigned
	}

	if _, err := tx.ExecContext(ctx, `UPDATE expert_assignments SET status = ?, resolved_at = ? WHERE conversation_id = ? AND expert_id = ? AND status = ?`,
		models.AssignmentResolved, ts, conversationID, expertID, models.AssignmentActive); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SQLiteRepo) ConversationsSince(ctx context.Context, userID, since int64) ([]models.Conversation, error) {
	q := `SELECT ` + conversationCols + ` ` + conversationJoins + ` WHERE (c.initiator_id = ? OR c.assigned_expert_id = ?) AND c.updated >= ? ORDER BY c.updated DESC`
	return r.queryConversations(ctx, q, userID, userID, since)
}

// WaitingSince lists waiting conversations oldest-first to preserve FIFO
// fairness for claiming.
func (r *SQLiteRepo) WaitingSince(ctx context.Context, since int64) ([]models.Conversation, error) {
	q := `SELECT ` + conversationCols + ` ` + conversationJoins + ` WHERE c.status = ? AND c.updated >= ? ORDER BY c.created ASC, c.id ASC`
	return r.queryConversations(ctx, q, models.ConversationWaiting, since)
}

func (r *SQLiteRepo) ActiveForExpertSince(ctx context.Context, expertID, since int64) ([]models.Conversation, error) {
	q := `SELECT ` + conversationCols + ` ` + conversationJoins + ` WHERE c.assigned_expert_id = ? AND c.status = ? AND c.updated >= ? ORDER BY c.updated DESC`
	return r.queryConversations(ctx, q, expertID, models.ConversationActive, since)
}

func (r *SQLiteRepo) queryConversations(ctx context.Context, q string, args ...any) ([]models.Conversation, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanConversation(row *sql.Row) (*models.Conversation, error) {
	var c models.Conversation
	var expertID sql.NullInt64
	var lastMsg sql.NullInt64
	if err := row.Scan(&c.ID, &c.InitiatorID, &expertID, &c.Title, &c.Status, &c.Summary, &lastMsg, &c.Created, &c.Updated, &c.InitiatorUsername, &c.AssignedExpertUsername); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}
	applyConversationNulls(&c, expertID, lastMsg)

	return &c, nil
}

func scanConversationRow(rows *sql.Rows) (*models.Conversation, error) {
	var c models.Conversation
	var expertID sql.NullInt64
	var lastMsg sql.NullInt64
	if err := rows.Scan(&c.ID, &c.InitiatorID, &expertID, &c.Title, &c.Status, &c.Summary, &lastMsg, &c.Created, &c.Updated, &c.InitiatorUsername, &c.AssignedExpertUsername); err != nil {
		return nil, err
	}
	applyConversationNulls(&c, expertID, lastMsg)
	return &c, nil
}

func applyConversationNulls(c *models.Conversation, expertID, lastMsg sql.NullInt64) {
	if expertID.Valid {
		v := expertID.Int64
		c.AssignedExpertID = &v
	}
	if lastMsg.Valid {
		v := lastMsg.Int64
		c.LastMessageAt = &v
	}
}
