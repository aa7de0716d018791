package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/scalarai/helpdesk/pkg/models"
)

func (r *SQLiteRepo) CreateProfile(ctx context.Context, p *models.ExpertProfile) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("profile is nil")
	}

	links, err := marshalLinks(p.KnowledgeBaseLinks)
	if err != nil {
		return 0, err
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO expert_profiles (user_id, bio, knowledge_base_links, expert_faq, expertise_summary, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Bio, links, p.ExpertFAQ, p.ExpertiseSummary, ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetProfileByID(ctx context.Context, id int64) (*models.ExpertProfile, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, user_id, bio, knowledge_base_links, expert_faq, expertise_summary, created, updated FROM expert_profiles WHERE id = ?`, id)
	return scanProfile(row)
}

func (r *SQLiteRepo) GetProfileByUserID(ctx context.Context, userID int64) (*models.ExpertProfile, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, user_id, bio, knowledge_base_links, expert_faq, expertise_summary, created, updated FROM expert_profiles WHERE user_id = ?`, userID)
	return scanProfile(row)
}

// UpdateProfile persists the owner-editable fields (bio, links).
func (r *SQLiteRepo) UpdateProfile(ctx context.Context, p *models.ExpertProfile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}

	links, err := marshalLinks(p.KnowledgeBaseLinks)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, `UPDATE expert_profiles SET bio = ?, knowledge_base_links = ?, updated = ? WHERE id = ?`, p.Bio, links, now(), p.ID)
	return err
}

func (r *SQLiteRepo) SetExpertFAQ(ctx context.Context, profileID int64, faq string) error {
	_, err := r.conn.Exec(ctx, `UPDATE expert_profiles SET expert_faq = ?, updated = ? WHERE id = ?`, faq, now(), profileID)
	return err
}

func (r *SQLiteRepo) SetExpertiseSummary(ctx context.Context, profileID int64, summary string) error {
	_, err := r.conn.Exec(ctx, `UPDATE expert_profiles SET expertise_summary = ?, updated = ? WHERE id = ?`, summary, now(), profileID)
	return err
}

func (r *SQLiteRepo) ListProfilesWithBio(ctx context.Context) ([]models.ExpertProfile, error) {
	return r.listProfilesWhere(ctx, `p.bio != ''`)
}

func (r *SQLiteRepo) ListProfilesWithSummary(ctx context.Context) ([]models.ExpertProfile, error) {
	return r.listProfilesWhere(ctx, `p.expertise_summary != ''`)
}

// listProfilesWhere joins users so callers get usernames; ordered by profile
// id so Strategy B's 1-based enumeration is stable across calls.
func (r *SQLiteRepo) listProfilesWhere(ctx context.Context, cond string) ([]models.ExpertProfile, error) {
	q := `SELECT p.id, p.user_id, p.bio, p.knowledge_base_links, p.expert_faq, p.expertise_summary, p.created, p.updated, u.username
		FROM expert_profiles p JOIN users u ON u.id = p.user_id
		WHERE ` + cond + ` ORDER BY p.id ASC`
	rows, err := r.conn.QueryRows(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ExpertProfile
	for rows.Next() {
		var p models.ExpertProfile
		var links string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Bio, &links, &p.ExpertFAQ, &p.ExpertiseSummary, &p.Created, &p.Updated, &p.Username); err != nil {
			return nil, err
		}
		if err := unmarshalLinks(links, &p.KnowledgeBaseLinks); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(row *sql.Row) (*models.ExpertProfile, error) {
	var p models.ExpertProfile
	var links string
	if err := row.Scan(&p.ID, &p.UserID, &p.Bio, &links, &p.ExpertFAQ, &p.ExpertiseSummary, &p.Created, &p.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}
	if err := unmarshalLinks(links, &p.KnowledgeBaseLinks); err != nil {
		return nil, err
	}

	return &p, nil
}

func marshalLinks(links []string) (string, error) {
	if links == nil {
		links = []string{}
	}
	b, err := json.Marshal(links)
	if err != nil {
		return "", fmt.Errorf("marshal links: %w", err)
	}
	return string(b), nil
}

func unmarshalLinks(s string, dst *[]string) error {
	if s == "" {
		*dst = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(s), dst); err != nil {
		return fmt.Errorf("unmarshal links: %w", err)
	}
	return nil
}
