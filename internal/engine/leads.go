package engine

import (
	"context"
	"errors"
	"fmt"

	"homeline/internal/domain"
	"homeline/internal/events"
	"homeline/internal/notify"
	"homeline/internal/repo"
)

// LeadCreateOptions are parameters for creating a lead.
type LeadCreateOptions struct {
	FirstName      string
	LastName       string
	Phone          string
	Email          string
	Telegram       string
	WhatsApp       string
	PropertyType   string
	ListingType    string
	Budget         *int64
	Bedrooms       *int
	Districts      string
	Requirements   string
	Source         string
	Priority       string
	Notes          string
	AssignedTo     string
	NextFollowUpAt string
	ActorID        string
}

func validateLeadEnums(propertyType, listingType, source, priority string) error {
	if propertyType != "" && !domain.ValidPropertyType(propertyType) {
		return fmt.Errorf("unknown PropertyType %q", propertyType)
	}
	if listingType != "" && !domain.ValidListingType(listingType) {
		return fmt.Errorf("unknown ListingType %q", listingType)
	}
	if source != "" && !domain.ValidLeadSource(source) {
		return fmt.Errorf("unknown Source %q", source)
	}
	if priority != "" && !domain.ValidPriority(priority) {
		return fmt.Errorf("unknown Priority %q", priority)
	}
	return nil
}

func (e Engine) CreateLead(ctx context.Context, opts LeadCreateOptions) (domain.Lead, error) {
	if opts.FirstName == "" {
		return domain.Lead{}, errors.New("first name is required")
	}
	phone := domain.NormalizePhone(opts.Phone)
	if len(phone) < 5 {
		return domain.Lead{}, fmt.Errorf("invalid phone %q", opts.Phone)
	}
	if err := validateLeadEnums(opts.PropertyType, opts.ListingType, opts.Source, opts.Priority); err != nil {
		return domain.Lead{}, err
	}
	if _, err := e.Repo.GetLeadByPhone(ctx, phone); err == nil {
		return domain.Lead{}, fmt.Errorf("lead with phone %s already exists", opts.Phone)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Lead{}, err
	}
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	now := e.nowString()
	l := domain.Lead{
		ID:           newID("lead"),
		FirstName:    opts.FirstName,
		LastName:     opts.LastName,
		Phone:        opts.Phone,
		Email:        opts.Email,
		Telegram:     opts.Telegram,
		WhatsApp:     opts.WhatsApp,
		PropertyType: opts.PropertyType,
		ListingType:  opts.ListingType,
		Budget:       opts.Budget,
		Bedrooms:     opts.Bedrooms,
		Districts:    opts.Districts,
		Requirements: opts.Requirements,
		Source:       opts.Source,
		Status:       domain.LeadNew,
		Priority:     priority,
		Notes:        opts.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if opts.NextFollowUpAt != "" {
		v := opts.NextFollowUpAt
		l.NextFollowUpAt = &v
	}
	var assignee domain.Member
	if opts.AssignedTo != "" {
		var err error
		assignee, err = e.assignableMember(ctx, opts.AssignedTo)
		if err != nil {
			return domain.Lead{}, err
		}
		l.AssignedTo = &assignee.ID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertLeadTx(ctx, tx, l, phone); err != nil {
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "lead.created", "lead", l.ID, opts.ActorID, events.EventPayload{"status": l.Status}); err != nil {
		return domain.Lead{}, err
	}
	var dispatches []pendingDispatch
	if l.AssignedTo != nil && assignee.ID != opts.ActorID {
		d, err := e.fanout(ctx, tx, notify.Event{
			Type:      domain.NotifyLeadAssigned,
			Recipient: assignee,
			Lead:      &l,
		})
		if err != nil {
			return domain.Lead{}, err
		}
		dispatches = append(dispatches, d)
	}
	if err := tx.Commit(); err != nil {
		return domain.Lead{}, err
	}
	e.sendAll(ctx, dispatches)
	return l, nil
}

// LeadUpdateOptions carry partial updates; nil pointers leave fields alone.
// Status and assignment have their own commands.
type LeadUpdateOptions struct {
	ID             string
	FirstName      *string
	LastName       *string
	Email          *string
	Telegram       *string
	WhatsApp       *string
	PropertyType   *string
	ListingType    *string
	Budget         *int64
	Bedrooms       *int
	Districts      *string
	Requirements   *string
	Priority       *string
	Notes          *string
	NextFollowUpAt *string
	ActorID        string
}

func (e Engine) UpdateLead(ctx context.Context, opts LeadUpdateOptions) (domain.Lead, error) {
	l, err := e.Repo.GetLead(ctx, opts.ID)
	if err != nil {
		return l, err
	}
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setStr(&l.FirstName, opts.FirstName)
	setStr(&l.LastName, opts.LastName)
	setStr(&l.Email, opts.Email)
	setStr(&l.Telegram, opts.Telegram)
	setStr(&l.WhatsApp, opts.WhatsApp)
	setStr(&l.PropertyType, opts.PropertyType)
	setStr(&l.ListingType, opts.ListingType)
	setStr(&l.Districts, opts.Districts)
	setStr(&l.Requirements, opts.Requirements)
	setStr(&l.Notes, opts.Notes)
	if opts.Priority != nil {
		l.Priority = *opts.Priority
	}
	if opts.Budget != nil {
		l.Budget = opts.Budget
	}
	if opts.Bedrooms != nil {
		l.Bedrooms = opts.Bedrooms
	}
	if opts.NextFollowUpAt != nil {
		if *opts.NextFollowUpAt == "" {
			l.NextFollowUpAt = nil
		} else {
			l.NextFollowUpAt = opts.NextFollowUpAt
		}
	}
	if err := validateLeadEnums(l.PropertyType, l.ListingType, l.Source, l.Priority); err != nil {
		return l, err
	}
	if l.FirstName == "" {
		return l, errors.New("first name is required")
	}
	l.UpdatedAt = e.nowString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateLeadTx(ctx, tx, l, domain.NormalizePhone(l.Phone), l.Status); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "lead.updated", "lead", l.ID, opts.ActorID, nil); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	return l, nil
}

// TransitionLead moves a lead along the funnel graph. Privileged actors may
// jump from NEW to any status; everyone else follows the chain. The lead is
// unchanged when the edge is rejected.
func (e Engine) TransitionLead(ctx context.Context, leadID, target, actorID string) (domain.Lead, error) {
	if !domain.ValidLeadStatus(target) {
		return domain.Lead{}, fmt.Errorf("unknown lead status %q", target)
	}
	l, err := e.Repo.GetLead(ctx, leadID)
	if err != nil {
		return l, err
	}
	from := l.Status
	role := e.actorRole(ctx, actorID)
	if err := ensureLeadTransition(from, target, role); err != nil {
		if ue, ok := err.(*UnauthorizedError); ok {
			ue.Actor = actorID
		}
		return l, err
	}

	now := e.nowString()
	l.Status = target
	l.UpdatedAt = now
	if target == domain.LeadContacted {
		l.LastContactedAt = &now
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateLeadTx(ctx, tx, l, domain.NormalizePhone(l.Phone), from); err != nil {
		return l, err
	}
	act := domain.Activity{
		ID:        newID("act"),
		LeadID:    l.ID,
		Type:      "status_change",
		Note:      fmt.Sprintf("%s -> %s", from, target),
		CreatedBy: actorID,
		CreatedAt: now,
	}
	if err := e.Repo.InsertActivityTx(ctx, tx, act); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "lead.status", "lead", l.ID, actorID, events.EventPayload{
		"from_status": from,
		"to_status":   target,
	}); err != nil {
		return l, err
	}
	var dispatches []pendingDispatch
	if l.AssignedTo != nil && *l.AssignedTo != actorID {
		if assignee, err := e.Repo.GetMember(ctx, *l.AssignedTo); err == nil {
			d, err := e.fanout(ctx, tx, notify.Event{
				Type:      domain.NotifyLeadStatusChange,
				Recipient: assignee,
				Lead:      &l,
				Detail:    fmt.Sprintf("%s -> %s", from, target),
			})
			if err != nil {
				return l, err
			}
			dispatches = append(dispatches, d)
		}
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	e.sendAll(ctx, dispatches)
	return l, nil
}

// AssignLead hands a lead to an active member and notifies them.
func (e Engine) AssignLead(ctx context.Context, leadID, memberID, actorID string) (domain.Lead, error) {
	l, err := e.Repo.GetLead(ctx, leadID)
	if err != nil {
		return l, err
	}
	assignee, err := e.assignableMember(ctx, memberID)
	if err != nil {
		return l, err
	}
	l.AssignedTo = &assignee.ID
	l.UpdatedAt = e.nowString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateLeadTx(ctx, tx, l, domain.NormalizePhone(l.Phone), l.Status); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "lead.assigned", "lead", l.ID, actorID, events.EventPayload{"assigned_to": assignee.ID}); err != nil {
		return l, err
	}
	var dispatches []pendingDispatch
	if assignee.ID != actorID {
		d, err := e.fanout(ctx, tx, notify.Event{
			Type:      domain.NotifyLeadAssigned,
			Recipient: assignee,
			Lead:      &l,
		})
		if err != nil {
			return l, err
		}
		dispatches = append(dispatches, d)
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	e.sendAll(ctx, dispatches)
	return l, nil
}

func (e Engine) assignableMember(ctx context.Context, memberID string) (domain.Member, error) {
	m, err := e.Repo.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return m, fmt.Errorf("member %s not found", memberID)
		}
		return m, err
	}
	if !m.IsActive {
		return m, fmt.Errorf("member %s is not active", memberID)
	}
	return m, nil
}

// actorRole returns the acting member's role, or empty when the actor is not
// a member record (CLI local user, service account).
func (e Engine) actorRole(ctx context.Context, actorID string) string {
	m, err := e.Repo.GetMember(ctx, actorID)
	if err != nil {
		return ""
	}
	return m.Role
}
