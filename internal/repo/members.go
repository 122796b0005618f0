package repo

import (
	"context"
	"database/sql"

	"homeline/internal/domain"
)

const memberColumns = `id,name,COALESCE(email,''),role,COALESCE(channel_handle,''),is_active,created_at,updated_at`

func scanMember(row *sql.Row) (domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Role, &m.ChannelHandle, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) InsertMember(ctx context.Context, m domain.Member) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO members(id,name,email,role,channel_handle,is_active,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.Name, nullableString(m.Email), m.Role, nullableString(m.ChannelHandle), m.IsActive, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMember(ctx context.Context, id string) (domain.Member, error) {
	return scanMember(r.DB.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id=?`, id))
}

func (r Repo) UpdateMember(ctx context.Context, m domain.Member) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE members SET name=?,email=?,role=?,channel_handle=?,is_active=?,updated_at=? WHERE id=?`,
		m.Name, nullableString(m.Email), m.Role, nullableString(m.ChannelHandle), m.IsActive, m.UpdatedAt, m.ID)
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

func (r Repo) ListMembers(ctx context.Context, activeOnly bool) ([]domain.Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members`
	if activeOnly {
		q += ` WHERE is_active=1`
	}
	q += ` ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Role, &m.ChannelHandle, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
