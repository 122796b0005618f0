package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"homeline/internal/config"
	"homeline/internal/domain"
	"homeline/internal/events"
	"homeline/internal/notify"
	"homeline/internal/repo"
)

// Engine applies commands: it validates input and status transitions, writes
// the entity store and the events ledger in one transaction, and hands
// notifications to the fan-out engine.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Notifier notify.Engine
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, channel notify.Channel) Engine {
	r := repo.Repo{DB: db}
	linkBase := ""
	if cfg != nil {
		linkBase = cfg.Server.LinkBase
	}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db},
		Notifier: notify.Engine{
			Repo:     r,
			Channel:  channel,
			LinkBase: linkBase,
		},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// pendingDispatch is an external delivery deferred until after commit.
type pendingDispatch struct {
	recipient    domain.Member
	notification domain.Notification
}

// fanout creates the in-app notification inside tx and returns the external
// dispatch to run post-commit.
func (e Engine) fanout(ctx context.Context, tx *sql.Tx, ev notify.Event) (pendingDispatch, error) {
	notifier := e.Notifier
	if notifier.Now == nil {
		notifier.Now = e.Now
	}
	n, err := notifier.Create(ctx, tx, ev)
	if err != nil {
		return pendingDispatch{}, err
	}
	return pendingDispatch{recipient: ev.Recipient, notification: n}, nil
}

// sendAll runs deferred external dispatches. Best effort only.
func (e Engine) sendAll(ctx context.Context, dispatches []pendingDispatch) {
	for _, d := range dispatches {
		e.Notifier.SendExternal(ctx, d.recipient, d.notification)
	}
}
