package repo

import (
	"context"
	"database/sql"

	"homeline/internal/domain"
)

func (r Repo) InsertActivityTx(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(id,lead_id,type,outcome,note,created_by,created_at) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.LeadID, a.Type, nullableString(a.Outcome), nullableString(a.Note), a.CreatedBy, a.CreatedAt)
	return err
}

func (r Repo) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	var a domain.Activity
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,lead_id,type,COALESCE(outcome,''),COALESCE(note,''),created_by,created_at FROM activities WHERE id=?`, id).
		Scan(&a.ID, &a.LeadID, &a.Type, &a.Outcome, &a.Note, &a.CreatedBy, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// Activities are immutable; the only write after insert is delete.
func (r Repo) DeleteActivity(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListActivities(ctx context.Context, leadID string, limit int) ([]domain.Activity, error) {
	q := `SELECT id,lead_id,type,COALESCE(outcome,''),COALESCE(note,''),created_by,created_at FROM activities WHERE lead_id=? ORDER BY created_at DESC, id DESC`
	args := []any{leadID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Type, &a.Outcome, &a.Note, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
