package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeline/internal/domain"
	"homeline/internal/events"
	"homeline/internal/notify"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	Type        string
	Priority    string
	DueDate     string
	AssignedTo  string
	LeadID      string
	DealID      string
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.AssignedTo == "" {
		return domain.Task{}, errors.New("assignee is required")
	}
	if opts.DueDate == "" {
		return domain.Task{}, errors.New("due date is required")
	}
	if _, err := time.Parse(time.RFC3339, opts.DueDate); err != nil {
		return domain.Task{}, fmt.Errorf("due date: %w", err)
	}
	taskType := opts.Type
	if taskType == "" {
		taskType = "follow_up"
	}
	if !domain.ValidTaskType(taskType) {
		return domain.Task{}, fmt.Errorf("unknown task type %q", taskType)
	}
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return domain.Task{}, fmt.Errorf("unknown Priority %q", priority)
	}
	assignee, err := e.assignableMember(ctx, opts.AssignedTo)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.nowString()
	t := domain.Task{
		ID:          newID("task"),
		Title:       opts.Title,
		Description: opts.Description,
		Type:        taskType,
		Priority:    priority,
		Status:      domain.TaskPending,
		DueDate:     opts.DueDate,
		AssignedTo:  assignee.ID,
		CreatedBy:   opts.ActorID,
		LastAlert:   domain.AlertNone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.LeadID != "" {
		if _, err := e.Repo.GetLead(ctx, opts.LeadID); err != nil {
			return t, fmt.Errorf("lead %s: %w", opts.LeadID, err)
		}
		v := opts.LeadID
		t.LeadID = &v
	}
	if opts.DealID != "" {
		if _, err := e.Repo.GetDeal(ctx, opts.DealID); err != nil {
			return t, fmt.Errorf("deal %s: %w", opts.DealID, err)
		}
		v := opts.DealID
		t.DealID = &v
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return t, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, opts.ActorID, events.EventPayload{"assigned_to": t.AssignedTo}); err != nil {
		return t, err
	}
	var dispatches []pendingDispatch
	if assignee.ID != opts.ActorID {
		d, err := e.fanout(ctx, tx, notify.Event{
			Type:      domain.NotifyTaskAssigned,
			Recipient: assignee,
			Task:      &t,
		})
		if err != nil {
			return t, err
		}
		dispatches = append(dispatches, d)
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	e.sendAll(ctx, dispatches)
	return t, nil
}

// TransitionTask moves a task along its graph. COMPLETED stamps completedAt;
// COMPLETED and CANCELLED are terminal.
func (e Engine) TransitionTask(ctx context.Context, taskID, target, actorID string) (domain.Task, error) {
	if !domain.ValidTaskStatus(target) {
		return domain.Task{}, fmt.Errorf("unknown task status %q", target)
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return t, err
	}
	from := t.Status
	if err := ensureTaskTransition(from, target); err != nil {
		return t, err
	}
	now := e.nowString()
	t.Status = target
	t.UpdatedAt = now
	if target == domain.TaskCompleted {
		t.CompletedAt = &now
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskTx(ctx, tx, t, from); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.status", "task", t.ID, actorID, events.EventPayload{
		"from_status": from,
		"to_status":   target,
	}); err != nil {
		return t, err
	}
	var dispatches []pendingDispatch
	if target == domain.TaskCompleted && t.CreatedBy != actorID {
		if creator, err := e.Repo.GetMember(ctx, t.CreatedBy); err == nil {
			d, err := e.fanout(ctx, tx, notify.Event{
				Type:      domain.NotifyTaskCompleted,
				Recipient: creator,
				Task:      &t,
				Detail:    fmt.Sprintf("Completed by %s.", actorID),
			})
			if err != nil {
				return t, err
			}
			dispatches = append(dispatches, d)
		}
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	e.sendAll(ctx, dispatches)
	return t, nil
}

// CompleteTask is shorthand for the COMPLETED transition.
func (e Engine) CompleteTask(ctx context.Context, taskID, actorID string) (domain.Task, error) {
	return e.TransitionTask(ctx, taskID, domain.TaskCompleted, actorID)
}

// TaskUpdateOptions carry partial updates. Status has its own command.
type TaskUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Priority    *string
	DueDate     *string
	AssignedTo  *string
	ActorID     string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	if domain.TerminalTaskStatus(t.Status) {
		return t, fmt.Errorf("task %s is %s", t.ID, t.Status)
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return t, errors.New("title is required")
		}
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Priority != nil {
		if !domain.ValidPriority(*opts.Priority) {
			return t, fmt.Errorf("unknown Priority %q", *opts.Priority)
		}
		t.Priority = *opts.Priority
	}
	if opts.DueDate != nil && *opts.DueDate != t.DueDate {
		if _, err := time.Parse(time.RFC3339, *opts.DueDate); err != nil {
			return t, fmt.Errorf("due date: %w", err)
		}
		t.DueDate = *opts.DueDate
	}
	reassigned := false
	var assignee domain.Member
	if opts.AssignedTo != nil && *opts.AssignedTo != t.AssignedTo {
		assignee, err = e.assignableMember(ctx, *opts.AssignedTo)
		if err != nil {
			return t, err
		}
		t.AssignedTo = assignee.ID
		reassigned = true
	}
	t.UpdatedAt = e.nowString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskTx(ctx, tx, t, t.Status); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", "task", t.ID, opts.ActorID, nil); err != nil {
		return t, err
	}
	var dispatches []pendingDispatch
	if reassigned && assignee.ID != opts.ActorID {
		d, err := e.fanout(ctx, tx, notify.Event{
			Type:      domain.NotifyTaskAssigned,
			Recipient: assignee,
			Task:      &t,
		})
		if err != nil {
			return t, err
		}
		dispatches = append(dispatches, d)
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	e.sendAll(ctx, dispatches)
	return t, nil
}
