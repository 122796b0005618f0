package repo

import (
	"context"
	"database/sql"

	"homeline/internal/domain"
)

const notificationColumns = `id,recipient,type,title,message,ref_kind,ref_id,is_read,created_at`

func scanNotificationRow(scan func(dest ...any) error) (domain.Notification, error) {
	var n domain.Notification
	var refKind, refID sql.NullString
	err := scan(&n.ID, &n.Recipient, &n.Type, &n.Title, &n.Message, &refKind, &refID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	if refKind.Valid {
		n.Ref = domain.NotificationRef{Kind: refKind.String, ID: refID.String}
	}
	return n, nil
}

func (r Repo) InsertNotificationTx(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	var refKind, refID any
	if n.Ref.Kind != "" {
		refKind, refID = n.Ref.Kind, n.Ref.ID
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,recipient,type,title,message,ref_kind,ref_id,is_read,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ID, n.Recipient, n.Type, n.Title, n.Message, refKind, refID, n.IsRead, n.CreatedAt)
	return err
}

func (r Repo) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	n, err := scanNotificationRow(r.DB.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	return n, err
}

// MarkNotificationRead is idempotent: marking an already-read notification
// changes nothing and is not an error.
func (r Repo) MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error) {
	if _, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=?`, id); err != nil {
		return domain.Notification{}, err
	}
	return r.GetNotification(ctx, id)
}

// MarkAllNotificationsRead flips every unread notification for the recipient
// in one statement, so readers never observe a partial application.
func (r Repo) MarkAllNotificationsRead(ctx context.Context, recipient string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE recipient=? AND is_read=0`, recipient)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) DeleteNotification(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notifications WHERE id=?`, id)
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

func (r Repo) CountUnread(ctx context.Context, recipient string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient=? AND is_read=0`, recipient).Scan(&n)
	return n, err
}

// NotificationFilters narrow ListNotifications.
type NotificationFilters struct {
	Recipient  string
	UnreadOnly bool
	Type       string
	Limit      int
}

func (r Repo) ListNotifications(ctx context.Context, f NotificationFilters) ([]domain.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient=?`
	args := []any{f.Recipient}
	if f.UnreadOnly {
		q += ` AND is_read=0`
	}
	if f.Type != "" {
		q += ` AND type=?`
		args = append(args, f.Type)
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
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotificationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}
