package repo

import (
	"context"
	"database/sql"
	"strings"

	"homeline/internal/domain"
)

const leadColumns = `id,first_name,COALESCE(last_name,''),phone,COALESCE(email,''),COALESCE(telegram,''),COALESCE(whatsapp,''),
COALESCE(property_type,''),COALESCE(listing_type,''),budget,bedrooms,COALESCE(districts,''),COALESCE(requirements,''),
COALESCE(source,''),status,priority,assigned_to,COALESCE(notes,''),last_contacted_at,next_follow_up_at,created_at,updated_at`

func scanLeadRow(scan func(dest ...any) error) (domain.Lead, error) {
	var l domain.Lead
	var budget sql.NullInt64
	var bedrooms sql.NullInt64
	var assigned, lastContacted, nextFollowUp sql.NullString
	err := scan(&l.ID, &l.FirstName, &l.LastName, &l.Phone, &l.Email, &l.Telegram, &l.WhatsApp,
		&l.PropertyType, &l.ListingType, &budget, &bedrooms, &l.Districts, &l.Requirements,
		&l.Source, &l.Status, &l.Priority, &assigned, &l.Notes, &lastContacted, &nextFollowUp, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return l, err
	}
	if budget.Valid {
		v := budget.Int64
		l.Budget = &v
	}
	if bedrooms.Valid {
		v := int(bedrooms.Int64)
		l.Bedrooms = &v
	}
	l.AssignedTo = strPtr(assigned)
	l.LastContactedAt = strPtr(lastContacted)
	l.NextFollowUpAt = strPtr(nextFollowUp)
	return l, nil
}

func scanLead(row *sql.Row) (domain.Lead, error) {
	l, err := scanLeadRow(row.Scan)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}

func leadArgs(l domain.Lead, phoneNormalized string) []any {
	var budget, bedrooms any
	if l.Budget != nil {
		budget = *l.Budget
	}
	if l.Bedrooms != nil {
		bedrooms = *l.Bedrooms
	}
	return []any{
		l.FirstName, nullableString(l.LastName), l.Phone, phoneNormalized,
		nullableString(l.Email), nullableString(l.Telegram), nullableString(l.WhatsApp),
		nullableString(l.PropertyType), nullableString(l.ListingType), budget, bedrooms,
		nullableString(l.Districts), nullableString(l.Requirements), nullableString(l.Source),
		l.Status, l.Priority, nullablePtr(l.AssignedTo), nullableString(l.Notes),
		nullablePtr(l.LastContactedAt), nullablePtr(l.NextFollowUpAt),
	}
}

func (r Repo) InsertLeadTx(ctx context.Context, tx *sql.Tx, l domain.Lead, phoneNormalized string) error {
	args := append([]any{l.ID}, leadArgs(l, phoneNormalized)...)
	args = append(args, l.CreatedAt, l.UpdatedAt)
	_, err := tx.ExecContext(ctx, `INSERT INTO leads(id,first_name,last_name,phone,phone_normalized,email,telegram,whatsapp,
property_type,listing_type,budget,bedrooms,districts,requirements,source,status,priority,assigned_to,notes,
last_contacted_at,next_follow_up_at,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, args...)
	return err
}

func (r Repo) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	return scanLead(r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=?`, id))
}

// GetLeadByPhone looks a lead up by its normalized phone, the import dedup key.
func (r Repo) GetLeadByPhone(ctx context.Context, phoneNormalized string) (domain.Lead, error) {
	return scanLead(r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE phone_normalized=?`, phoneNormalized))
}

// UpdateLeadTx rewrites all mutable lead fields. The status guard serializes
// concurrent transitions: if the row's status is not expectStatus anymore the
// update applies to zero rows and ErrStaleStatus is returned.
func (r Repo) UpdateLeadTx(ctx context.Context, tx *sql.Tx, l domain.Lead, phoneNormalized, expectStatus string) error {
	args := leadArgs(l, phoneNormalized)
	args = append(args, l.UpdatedAt, l.ID, expectStatus)
	res, err := tx.ExecContext(ctx, `UPDATE leads SET first_name=?,last_name=?,phone=?,phone_normalized=?,email=?,telegram=?,whatsapp=?,
property_type=?,listing_type=?,budget=?,bedrooms=?,districts=?,requirements=?,source=?,status=?,priority=?,assigned_to=?,notes=?,
last_contacted_at=?,next_follow_up_at=?,updated_at=? WHERE id=? AND status=?`, args...)
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

// LeadFilters narrow ListLeads. All set fields are ANDed.
type LeadFilters struct {
	Status     string
	Priority   string
	Source     string
	AssignedTo string
	Search     string
	Limit      int
}

func (r Repo) ListLeads(ctx context.Context, f LeadFilters) ([]domain.Lead, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		where = append(where, "priority=?")
		args = append(args, f.Priority)
	}
	if f.Source != "" {
		where = append(where, "source=?")
		args = append(args, f.Source)
	}
	if f.AssignedTo != "" {
		where = append(where, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, `(first_name LIKE ? OR last_name LIKE ? OR phone LIKE ? OR email LIKE ? OR districts LIKE ? OR requirements LIKE ? OR notes LIKE ?)`)
		args = append(args, like, like, like, like, like, like, like)
	}
	q := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Lead
	for rows.Next() {
		l, err := scanLeadRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
