package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scalarai/helpdesk/pkg/models"
	"github.com/scalarai/helpdesk/pkg/repository"
)

const messageCols = `m.id, m.conversation_id, m.sender_id, m.sender_role, m.content, m.is_read, m.created, u.username`

// CreateMessage inserts the message and bumps the parent conversation's
// last_message_at and updated markers in one transaction, so a poller never
// sees the message without the conversation update or vice versa. The
// post-insert message count and first-message identity are read inside the
// same transaction for the event consumers.
func (r *SQLiteRepo) CreateMessage(ctx context.Context, m *models.Message) (*repository.MessageCreateResult, error) {
	if m == nil {
		return nil, fmt.Errorf("message is nil")
	}

	tx, err := r.conn.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	ts := now()
	res, err := tx.ExecContext(ctx, `INSERT INTO messages (conversation_id, sender_id, sender_role, content, is_read, created) VALUES (?, ?, ?, ?, 0, ?)`,
		m.ConversationID, m.SenderID, m.SenderRole, m.Content, ts)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET last_message_at = ?, updated = ? WHERE id = ?`, ts, ts, m.ConversationID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages WHERE conversation_id = ?`, m.ConversationID).Scan(&count); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	var firstID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM messages WHERE conversation_id = ? ORDER BY created ASC, id ASC LIMIT 1`, m.ConversationID).Scan(&firstID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	stored := *m
	stored.ID = id
	stored.IsRead = false
	stored.Created = ts

	return &repository.MessageCreateResult{Message: stored, Count: count, IsFirst: firstID == id}, nil
}

func (r *SQLiteRepo) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+messageCols+` FROM messages m JOIN users u ON u.id = m.sender_id WHERE m.id = ?`, id)
	return scanMessage(row)
}

// GetMessageForUser fetches a message only if the user participates in its
// conversation; invisible messages read as absent.
func (r *SQLiteRepo) GetMessageForUser(ctx context.Context, id, userID int64) (*models.Message, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+messageCols+`
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.id = ? AND (c.initiator_id = ? OR c.assigned_expert_id = ?)`, id, userID, userID)
	return scanMessage(row)
}

func (r *SQLiteRepo) ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	q := `SELECT ` + messageCols + ` FROM messages m JOIN users u ON u.id = m.sender_id WHERE m.conversation_id = ? ORDER BY m.created ASC, m.id ASC`
	return r.queryMessages(ctx, q, conversationID)
}

// FirstMessage returns the chronologically-first message of a conversation,
// ties broken by insertion order.
func (r *SQLiteRepo) FirstMessage(ctx context.Context, conversationID int64) (*models.Message, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+messageCols+` FROM messages m JOIN users u ON u.id = m.sender_id WHERE m.conversation_id = ? ORDER BY m.created ASC, m.id ASC LIMIT 1`, conversationID)
	return scanMessage(row)
}

func (r *SQLiteRepo) FirstMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	q := `SELECT ` + messageCols + ` FROM messages m JOIN users u ON u.id = m.sender_id WHERE m.conversation_id = ? ORDER BY m.created ASC, m.id ASC LIMIT ?`
	return r.queryMessages(ctx, q, conversationID, limit)
}

func (r *SQLiteRepo) MessagesSince(ctx context.Context, userID, since int64) ([]models.Message, error) {
	q := `SELECT ` + messageCols + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		JOIN conversations c ON c.id = m.conversation_id
		WHERE (c.initiator_id = ? OR c.assigned_expert_id = ?) AND m.created >= ?
		ORDER BY m.created DESC, m.id DESC`
	return r.queryMessages(ctx, q, userID, userID, since)
}

func (r *SQLiteRepo) MarkRead(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) queryMessages(ctx context.Context, q string, args ...any) ([]models.Message, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var isRead int
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderRole, &m.Content, &isRead, &m.Created, &m.SenderUsername); err != nil {
			return nil, err
		}
		m.IsRead = isRead != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row *sql.Row) (*models.Message, error) {
	var m models.Message
	var isRead int
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderRole, &m.Content, &isRead, &m.Created, &m.SenderUsername); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}
	m.IsRead = isRead != 0

	return &m, nil
}
