package repo

import (
	"context"
	"database/sql"

	"homeline/internal/domain"
)

const dealColumns = `id,lead_id,status,deal_value,currency,created_at,updated_at`

func scanDeal(row *sql.Row) (domain.Deal, error) {
	var d domain.Deal
	err := row.Scan(&d.ID, &d.LeadID, &d.Status, &d.DealValue, &d.Currency, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) InsertDealTx(ctx context.Context, tx *sql.Tx, d domain.Deal) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO deals(id,lead_id,status,deal_value,currency,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.LeadID, d.Status, d.DealValue, d.Currency, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r Repo) GetDeal(ctx context.Context, id string) (domain.Deal, error) {
	return scanDeal(r.DB.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id=?`, id))
}

// UpdateDealTx rewrites mutable deal fields with the status guard described
// on UpdateLeadTx.
func (r Repo) UpdateDealTx(ctx context.Context, tx *sql.Tx, d domain.Deal, expectStatus string) error {
	res, err := tx.ExecContext(ctx, `UPDATE deals SET status=?,deal_value=?,currency=?,updated_at=? WHERE id=? AND status=?`,
		d.Status, d.DealValue, d.Currency, d.UpdatedAt, d.ID, expectStatus)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r Repo) ListDeals(ctx context.Context, leadID string, limit int) ([]domain.Deal, error) {
	q := `SELECT ` + dealColumns + ` FROM deals`
	var args []any
	if leadID != "" {
		q += ` WHERE lead_id=?`
		args = append(args, leadID)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Deal
	for rows.Next() {
		var d domain.Deal
		if err := rows.Scan(&d.ID, &d.LeadID, &d.Status, &d.DealValue, &d.Currency, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
