package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"homeline/internal/domain"
	"homeline/internal/engine"
	"homeline/internal/repo"
)

type taskOut struct {
	Body domain.Task
}

type tasksOut struct {
	Body struct {
		Tasks []domain.Task `json:"tasks"`
	}
}

func registerTasks(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "task-create",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a task",
	}, func(ctx context.Context, in *struct {
		Body struct {
			Title       string `json:"title" minLength:"1"`
			Description string `json:"description,omitempty"`
			Type        string `json:"type,omitempty" enum:"follow_up,viewing,call,document,meeting,other,"`
			Priority    string `json:"priority,omitempty" enum:"low,medium,high,urgent,"`
			DueDate     string `json:"due_date" format:"date-time"`
			AssignedTo  string `json:"assigned_to" minLength:"1"`
			LeadID      string `json:"lead_id,omitempty"`
			DealID      string `json:"deal_id,omitempty"`
		}
	}) (*taskOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		t, err := eng.CreateTask(ctx, engine.TaskCreateOptions{
			Title:       in.Body.Title,
			Description: in.Body.Description,
			Type:        in.Body.Type,
			Priority:    in.Body.Priority,
			DueDate:     in.Body.DueDate,
			AssignedTo:  in.Body.AssignedTo,
			LeadID:      in.Body.LeadID,
			DealID:      in.Body.DealID,
			ActorID:     p.MemberID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOut{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-list",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, in *struct {
		Status     string `query:"status" enum:"pending,in_progress,completed,cancelled,"`
		AssignedTo string `query:"assigned_to"`
		LeadID     string `query:"lead_id"`
		DealID     string `query:"deal_id"`
		Limit      int    `query:"limit" default:"50" maximum:"500"`
	}) (*tasksOut, error) {
		tasks, err := eng.Repo.ListTasks(ctx, repo.TaskFilters{
			Status:     in.Status,
			AssignedTo: in.AssignedTo,
			LeadID:     in.LeadID,
			DealID:     in.DealID,
			Limit:      normalizeLimit(in.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := &tasksOut{}
		out.Body.Tasks = tasks
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-get",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task",
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*taskOut, error) {
		t, err := eng.Repo.GetTask(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOut{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-update",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task fields",
		Description: "Partial update of a non-terminal task. Status has a dedicated operation.",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			Title       *string `json:"title,omitempty"`
			Description *string `json:"description,omitempty"`
			Priority    *string `json:"priority,omitempty"`
			DueDate     *string `json:"due_date,omitempty"`
			AssignedTo  *string `json:"assigned_to,omitempty"`
		}
	}) (*taskOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		t, err := eng.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:          in.ID,
			Title:       in.Body.Title,
			Description: in.Body.Description,
			Priority:    in.Body.Priority,
			DueDate:     in.Body.DueDate,
			AssignedTo:  in.Body.AssignedTo,
			ActorID:     p.MemberID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOut{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-status",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/status",
		Summary:     "Transition a task's status",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			Status string `json:"status" enum:"pending,in_progress,completed,cancelled"`
		}
	}) (*taskOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		t, err := eng.TransitionTask(ctx, in.ID, in.Body.Status, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOut{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-complete",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/complete",
		Summary:     "Complete a task",
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*taskOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		t, err := eng.CompleteTask(ctx, in.ID, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOut{Body: t}, nil
	})
}
