package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scalarai/helpdesk/pkg/models"
)

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO users (username, password_hash, created, last_active) VALUES (?, ?, ?, ?)`, u.Username, u.PasswordHash, ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, username, password_hash, created, last_active FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *SQLiteRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, username, password_hash, created, last_active FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *SQLiteRepo) TouchLastActive(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE users SET last_active = ? WHERE id = ?`, now(), id)
	return err
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Created, &u.LastActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return &u, nil
}
