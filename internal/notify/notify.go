package notify

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"

	"homeline/internal/domain"
	"homeline/internal/repo"
)

// Event is one fan-out trigger. Exactly one of Task, Lead, Deal may be set;
// it becomes the notification's deep-link reference.
type Event struct {
	Type      string
	Recipient domain.Member
	Task      *domain.Task
	Lead      *domain.Lead
	Deal      *domain.Deal
	Detail    string
}

// Engine creates the in-app notification record and best-effort delivers a
// copy to the recipient's external channel. The in-app record is the source
// of truth for "was the user notified"; external delivery never fails the
// triggering command.
type Engine struct {
	Repo     repo.Repo
	Channel  Channel
	LinkBase string
	Now      func() time.Time
	Logger   *log.Logger
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// Create writes the in-app notification inside the caller's transaction, so
// it commits (or rolls back) with the triggering mutation. External dispatch
// is a separate post-commit step; see SendExternal.
func (e Engine) Create(ctx context.Context, tx *sql.Tx, ev Event) (domain.Notification, error) {
	title, message := render(ev, e.LinkBase)
	n := domain.Notification{
		ID:        "ntf-" + uuid.NewString(),
		Recipient: ev.Recipient.ID,
		Type:      ev.Type,
		Title:     title,
		Message:   message,
		Ref:       refFor(ev),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertNotificationTx(ctx, tx, n); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

// SendExternal pushes the notification text to the recipient's external
// channel. Failures and timeouts are logged and swallowed; there is no retry.
// Call only after the transaction that created n has committed.
func (e Engine) SendExternal(ctx context.Context, recipient domain.Member, n domain.Notification) {
	if e.Channel == nil || recipient.ChannelHandle == "" {
		return
	}
	if err := e.Channel.Send(ctx, recipient.ChannelHandle, n.Title+"\n"+n.Message); err != nil {
		e.logger().Printf("notify: external dispatch to %s failed: %v", recipient.ChannelHandle, err)
	}
}

func refFor(ev Event) domain.NotificationRef {
	switch {
	case ev.Task != nil:
		return domain.NotificationRef{Kind: "task", ID: ev.Task.ID}
	case ev.Lead != nil:
		return domain.NotificationRef{Kind: "lead", ID: ev.Lead.ID}
	case ev.Deal != nil:
		// Deal notifications deep-link to their lead; there is no deal page.
		return domain.NotificationRef{Kind: "lead", ID: ev.Deal.LeadID}
	}
	return domain.NotificationRef{}
}
