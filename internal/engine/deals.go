package engine

import (
	"context"
	"errors"
	"fmt"

	"homeline/internal/domain"
	"homeline/internal/events"
	"homeline/internal/notify"
)

// DealCreateOptions are parameters for creating a deal from a lead.
type DealCreateOptions struct {
	LeadID    string
	DealValue float64
	Currency  string
	ActorID   string
}

func (e Engine) CreateDeal(ctx context.Context, opts DealCreateOptions) (domain.Deal, error) {
	if opts.LeadID == "" {
		return domain.Deal{}, errors.New("lead is required")
	}
	if opts.DealValue < 0 {
		return domain.Deal{}, errors.New("deal value must not be negative")
	}
	if _, err := e.Repo.GetLead(ctx, opts.LeadID); err != nil {
		return domain.Deal{}, fmt.Errorf("lead %s: %w", opts.LeadID, err)
	}
	currency := opts.Currency
	if currency == "" {
		currency = "AED"
	}
	now := e.nowString()
	d := domain.Deal{
		ID:        newID("deal"),
		LeadID:    opts.LeadID,
		Status:    domain.DealNegotiation,
		DealValue: opts.DealValue,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDealTx(ctx, tx, d); err != nil {
		return d, fmt.Errorf("insert deal: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "deal.created", "deal", d.ID, opts.ActorID, events.EventPayload{"lead_id": d.LeadID}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	return d, nil
}

// TransitionDeal moves a deal strictly forward through the funnel, or to
// CANCELLED from any non-terminal state.
func (e Engine) TransitionDeal(ctx context.Context, dealID, target, actorID string) (domain.Deal, error) {
	if !domain.ValidDealStatus(target) {
		return domain.Deal{}, fmt.Errorf("unknown deal status %q", target)
	}
	d, err := e.Repo.GetDeal(ctx, dealID)
	if err != nil {
		return d, err
	}
	from := d.Status
	if err := ensureDealTransition(from, target); err != nil {
		return d, err
	}
	d.Status = target
	d.UpdatedAt = e.nowString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateDealTx(ctx, tx, d, from); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, "deal.status", "deal", d.ID, actorID, events.EventPayload{
		"from_status": from,
		"to_status":   target,
	}); err != nil {
		return d, err
	}
	var dispatches []pendingDispatch
	if lead, err := e.Repo.GetLead(ctx, d.LeadID); err == nil && lead.AssignedTo != nil && *lead.AssignedTo != actorID {
		if assignee, err := e.Repo.GetMember(ctx, *lead.AssignedTo); err == nil {
			disp, err := e.fanout(ctx, tx, notify.Event{
				Type:      domain.NotifyDealStatusChange,
				Recipient: assignee,
				Deal:      &d,
				Detail:    fmt.Sprintf("%s -> %s", from, target),
			})
			if err != nil {
				return d, err
			}
			dispatches = append(dispatches, disp)
		}
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	e.sendAll(ctx, dispatches)
	return d, nil
}
