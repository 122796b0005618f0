package engine

import (
	"context"
	"errors"
	"fmt"

	"homeline/internal/domain"
	"homeline/internal/events"
)

// ActivityCreateOptions are parameters for logging a lead interaction.
type ActivityCreateOptions struct {
	LeadID  string
	Type    string
	Outcome string
	Note    string
	ActorID string
}

// CreateActivity appends an immutable log entry to a lead. Contact-type
// activities stamp the lead's lastContactedAt.
func (e Engine) CreateActivity(ctx context.Context, opts ActivityCreateOptions) (domain.Activity, error) {
	if !domain.ValidActivityType(opts.Type) {
		return domain.Activity{}, fmt.Errorf("unknown activity type %q", opts.Type)
	}
	if opts.Outcome != "" {
		if opts.Type != "call" {
			return domain.Activity{}, errors.New("outcome applies to call activities only")
		}
		if !domain.ValidCallOutcome(opts.Outcome) {
			return domain.Activity{}, fmt.Errorf("unknown call outcome %q", opts.Outcome)
		}
	}
	l, err := e.Repo.GetLead(ctx, opts.LeadID)
	if err != nil {
		return domain.Activity{}, err
	}
	now := e.nowString()
	a := domain.Activity{
		ID:        newID("act"),
		LeadID:    l.ID,
		Type:      opts.Type,
		Outcome:   opts.Outcome,
		Note:      opts.Note,
		CreatedBy: opts.ActorID,
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertActivityTx(ctx, tx, a); err != nil {
		return a, fmt.Errorf("insert activity: %w", err)
	}
	if domain.ContactActivity(a.Type) {
		l.LastContactedAt = &now
		l.UpdatedAt = now
		if err := e.Repo.UpdateLeadTx(ctx, tx, l, domain.NormalizePhone(l.Phone), l.Status); err != nil {
			return a, err
		}
	}
	if err := e.Events.Append(ctx, tx, "activity.created", "activity", a.ID, opts.ActorID, events.EventPayload{
		"lead_id": a.LeadID,
		"type":    a.Type,
	}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

// DeleteActivity removes a log entry; activities are never edited.
func (e Engine) DeleteActivity(ctx context.Context, activityID, actorID string) error {
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteActivity(ctx, a.ID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "activity.deleted", "activity", a.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
