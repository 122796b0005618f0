package engine

import (
	"context"
	"errors"
	"fmt"

	"homeline/internal/domain"
	"homeline/internal/events"
)

// MemberCreateOptions are parameters for adding a team member.
type MemberCreateOptions struct {
	ID            string
	Name          string
	Email         string
	Role          string
	ChannelHandle string
	ActorID       string
}

func (e Engine) CreateMember(ctx context.Context, opts MemberCreateOptions) (domain.Member, error) {
	if opts.Name == "" {
		return domain.Member{}, errors.New("name is required")
	}
	if !domain.ValidRole(opts.Role) {
		return domain.Member{}, fmt.Errorf("unknown role %q", opts.Role)
	}
	id := opts.ID
	if id == "" {
		id = newID("mem")
	}
	now := e.nowString()
	m := domain.Member{
		ID:            id,
		Name:          opts.Name,
		Email:         opts.Email,
		Role:          opts.Role,
		ChannelHandle: opts.ChannelHandle,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.Repo.InsertMember(ctx, m); err != nil {
		return m, fmt.Errorf("insert member: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "member.created", "member", m.ID, opts.ActorID, events.EventPayload{"role": m.Role}); err != nil {
		return m, err
	}
	return m, tx.Commit()
}

// SetMemberActive gates assignment eligibility. Deactivation keeps historical
// leads and tasks visible; it only blocks new assignments.
func (e Engine) SetMemberActive(ctx context.Context, memberID string, active bool, actorID string) (domain.Member, error) {
	m, err := e.Repo.GetMember(ctx, memberID)
	if err != nil {
		return m, err
	}
	m.IsActive = active
	m.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateMember(ctx, m); err != nil {
		return m, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "member.active", "member", m.ID, actorID, events.EventPayload{"is_active": active}); err != nil {
		return m, err
	}
	return m, tx.Commit()
}

// SetMemberChannel updates the external channel handle used by fan-out.
func (e Engine) SetMemberChannel(ctx context.Context, memberID, handle, actorID string) (domain.Member, error) {
	m, err := e.Repo.GetMember(ctx, memberID)
	if err != nil {
		return m, err
	}
	m.ChannelHandle = handle
	m.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateMember(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}
