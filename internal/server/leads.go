package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"homeline/internal/domain"
	"homeline/internal/engine"
	"homeline/internal/repo"
)

type leadOut struct {
	Body domain.Lead
}

type leadsOut struct {
	Body struct {
		Leads []domain.Lead `json:"leads"`
	}
}

func registerLeads(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "lead-create",
		Method:      http.MethodPost,
		Path:        "/leads",
		Summary:     "Create a lead",
	}, func(ctx context.Context, in *struct {
		Body struct {
			FirstName      string `json:"first_name" minLength:"1"`
			LastName       string `json:"last_name,omitempty"`
			Phone          string `json:"phone" minLength:"5"`
			Email          string `json:"email,omitempty"`
			Telegram       string `json:"telegram,omitempty"`
			WhatsApp       string `json:"whatsapp,omitempty"`
			PropertyType   string `json:"property_type,omitempty"`
			ListingType    string `json:"listing_type,omitempty"`
			Budget         *int64 `json:"budget,omitempty"`
			Bedrooms       *int   `json:"bedrooms,omitempty"`
			Districts      string `json:"districts,omitempty"`
			Requirements   string `json:"requirements,omitempty"`
			Source         string `json:"source,omitempty"`
			Priority       string `json:"priority,omitempty"`
			Notes          string `json:"notes,omitempty"`
			AssignedTo     string `json:"assigned_to,omitempty"`
			NextFollowUpAt string `json:"next_follow_up_at,omitempty" format:"date-time"`
		}
	}) (*leadOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		l, err := eng.CreateLead(ctx, engine.LeadCreateOptions{
			FirstName:      in.Body.FirstName,
			LastName:       in.Body.LastName,
			Phone:          in.Body.Phone,
			Email:          in.Body.Email,
			Telegram:       in.Body.Telegram,
			WhatsApp:       in.Body.WhatsApp,
			PropertyType:   in.Body.PropertyType,
			ListingType:    in.Body.ListingType,
			Budget:         in.Body.Budget,
			Bedrooms:       in.Body.Bedrooms,
			Districts:      in.Body.Districts,
			Requirements:   in.Body.Requirements,
			Source:         in.Body.Source,
			Priority:       in.Body.Priority,
			Notes:          in.Body.Notes,
			AssignedTo:     in.Body.AssignedTo,
			NextFollowUpAt: in.Body.NextFollowUpAt,
			ActorID:        p.MemberID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &leadOut{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lead-list",
		Method:      http.MethodGet,
		Path:        "/leads",
		Summary:     "List leads",
	}, func(ctx context.Context, in *struct {
		Status     string `query:"status" enum:"new,contacted,qualified,negotiating,converted,lost,"`
		Priority   string `query:"priority" enum:"low,medium,high,urgent,"`
		Source     string `query:"source"`
		AssignedTo string `query:"assigned_to"`
		Search     string `query:"search" doc:"Substring match over names, phone, email and districts"`
		Limit      int    `query:"limit" default:"50" maximum:"500"`
	}) (*leadsOut, error) {
		leads, err := eng.Repo.ListLeads(ctx, repo.LeadFilters{
			Status:     in.Status,
			Priority:   in.Priority,
			Source:     in.Source,
			AssignedTo: in.AssignedTo,
			Search:     in.Search,
			Limit:      normalizeLimit(in.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := &leadsOut{}
		out.Body.Leads = leads
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lead-get",
		Method:      http.MethodGet,
		Path:        "/leads/{id}",
		Summary:     "Get a lead",
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*leadOut, error) {
		l, err := eng.Repo.GetLead(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &leadOut{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lead-update",
		Method:      http.MethodPatch,
		Path:        "/leads/{id}",
		Summary:     "Update lead fields",
		Description: "Partial update. Status and assignment have dedicated operations.",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			FirstName      *string `json:"first_name,omitempty"`
			LastName       *string `json:"last_name,omitempty"`
			Email          *string `json:"email,omitempty"`
			Telegram       *string `json:"telegram,omitempty"`
			WhatsApp       *string `json:"whatsapp,omitempty"`
			PropertyType   *string `json:"property_type,omitempty"`
			ListingType    *string `json:"listing_type,omitempty"`
			Budget         *int64  `json:"budget,omitempty"`
			Bedrooms       *int    `json:"bedrooms,omitempty"`
			Districts      *string `json:"districts,omitempty"`
			Requirements   *string `json:"requirements,omitempty"`
			Priority       *string `json:"priority,omitempty"`
			Notes          *string `json:"notes,omitempty"`
			NextFollowUpAt *string `json:"next_follow_up_at,omitempty"`
		}
	}) (*leadOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		l, err := eng.UpdateLead(ctx, engine.LeadUpdateOptions{
			ID:             in.ID,
			FirstName:      in.Body.FirstName,
			LastName:       in.Body.LastName,
			Email:          in.Body.Email,
			Telegram:       in.Body.Telegram,
			WhatsApp:       in.Body.WhatsApp,
			PropertyType:   in.Body.PropertyType,
			ListingType:    in.Body.ListingType,
			Budget:         in.Body.Budget,
			Bedrooms:       in.Body.Bedrooms,
			Districts:      in.Body.Districts,
			Requirements:   in.Body.Requirements,
			Priority:       in.Body.Priority,
			Notes:          in.Body.Notes,
			NextFollowUpAt: in.Body.NextFollowUpAt,
			ActorID:        p.MemberID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &leadOut{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lead-status",
		Method:      http.MethodPost,
		Path:        "/leads/{id}/status",
		Summary:     "Transition a lead's status",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			Status string `json:"status" enum:"new,contacted,qualified,negotiating,converted,lost"`
		}
	}) (*leadOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		l, err := eng.TransitionLead(ctx, in.ID, in.Body.Status, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &leadOut{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lead-assign",
		Method:      http.MethodPost,
		Path:        "/leads/{id}/assign",
		Summary:     "Assign a lead to a member",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			MemberID string `json:"member_id" minLength:"1"`
		}
	}) (*leadOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		l, err := eng.AssignLead(ctx, in.ID, in.Body.MemberID, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &leadOut{Body: l}, nil
	})

	registerActivities(api, eng)
}

func registerActivities(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "activity-create",
		Method:      http.MethodPost,
		Path:        "/leads/{id}/activities",
		Summary:     "Log an interaction on a lead",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			Type    string `json:"type" enum:"call,telegram,whatsapp,email,meeting,viewing,note"`
			Outcome string `json:"outcome,omitempty" enum:"answered,no_answer,voicemail,busy,"`
			Note    string `json:"note,omitempty"`
		}
	}) (*struct {
		Body domain.Activity
	}, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		a, err := eng.CreateActivity(ctx, engine.ActivityCreateOptions{
			LeadID:  in.ID,
			Type:    in.Body.Type,
			Outcome: in.Body.Outcome,
			Note:    in.Body.Note,
			ActorID: p.MemberID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activity-list",
		Method:      http.MethodGet,
		Path:        "/leads/{id}/activities",
		Summary:     "List a lead's activity log",
	}, func(ctx context.Context, in *struct {
		ID    string `path:"id"`
		Limit int    `query:"limit" default:"50" maximum:"500"`
	}) (*struct {
		Body struct {
			Activities []domain.Activity `json:"activities"`
		}
	}, error) {
		if _, err := eng.Repo.GetLead(ctx, in.ID); err != nil {
			return nil, handleError(err)
		}
		activities, err := eng.Repo.ListActivities(ctx, in.ID, normalizeLimit(in.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Activities []domain.Activity `json:"activities"`
			}
		}{}
		out.Body.Activities = activities
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activity-delete",
		Method:      http.MethodDelete,
		Path:        "/activities/{id}",
		Summary:     "Delete an activity log entry",
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		if err := eng.DeleteActivity(ctx, in.ID, p.MemberID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
