package repo

import (
	"context"
	"database/sql"
	"strings"

	"homeline/internal/domain"
)

const taskColumns = `id,title,COALESCE(description,''),type,priority,status,due_date,completed_at,assigned_to,created_by,lead_id,deal_id,last_alert,created_at,updated_at`

func scanTaskRow(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var completed, leadID, dealID sql.NullString
	err := scan(&t.ID, &t.Title, &t.Description, &t.Type, &t.Priority, &t.Status, &t.DueDate,
		&completed, &t.AssignedTo, &t.CreatedBy, &leadID, &dealID, &t.LastAlert, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.CompletedAt = strPtr(completed)
	t.LeadID = strPtr(leadID)
	t.DealID = strPtr(dealID)
	return t, nil
}

func scanTask(row *sql.Row) (domain.Task, error) {
	t, err := scanTaskRow(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,title,description,type,priority,status,due_date,completed_at,assigned_to,created_by,lead_id,deal_id,last_alert,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullableString(t.Description), t.Type, t.Priority, t.Status, t.DueDate,
		nullablePtr(t.CompletedAt), t.AssignedTo, t.CreatedBy, nullablePtr(t.LeadID), nullablePtr(t.DealID),
		t.LastAlert, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

// UpdateTaskTx rewrites mutable task fields with the status guard described
// on UpdateLeadTx.
func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task, expectStatus string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?,description=?,type=?,priority=?,status=?,due_date=?,completed_at=?,assigned_to=?,lead_id=?,deal_id=?,last_alert=?,updated_at=? WHERE id=? AND status=?`,
		t.Title, nullableString(t.Description), t.Type, t.Priority, t.Status, t.DueDate,
		nullablePtr(t.CompletedAt), t.AssignedTo, nullablePtr(t.LeadID), nullablePtr(t.DealID),
		t.LastAlert, t.UpdatedAt, t.ID, expectStatus)
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

// SetTaskAlertTx records the scanner's last notified classification.
func (r Repo) SetTaskAlertTx(ctx context.Context, tx *sql.Tx, taskID, alert string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET last_alert=? WHERE id=?`, alert, taskID)
	return err
}

// ListOpenTasks returns tasks that still count for due-date scanning.
func (r Repo) ListOpenTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status NOT IN (?,?) ORDER BY due_date ASC`,
		domain.TaskCompleted, domain.TaskCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TaskFilters narrow ListTasks. All set fields are ANDed.
type TaskFilters struct {
	Status     string
	AssignedTo string
	LeadID     string
	DealID     string
	Limit      int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.AssignedTo != "" {
		where = append(where, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.LeadID != "" {
		where = append(where, "lead_id=?")
		args = append(args, f.LeadID)
	}
	if f.DealID != "" {
		where = append(where, "deal_id=?")
		args = append(args, f.DealID)
	}
	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY due_date ASC, id ASC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
