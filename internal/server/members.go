package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"homeline/internal/domain"
	"homeline/internal/engine"
)

type memberOut struct {
	Body domain.Member
}

type membersOut struct {
	Body struct {
		Members []domain.Member `json:"members"`
	}
}

func registerMembers(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "member-create",
		Method:      http.MethodPost,
		Path:        "/members",
		Summary:     "Add a team member",
	}, func(ctx context.Context, in *struct {
		Body struct {
			ID            string `json:"id,omitempty"`
			Name          string `json:"name" minLength:"1"`
			Email         string `json:"email,omitempty"`
			Role          string `json:"role" enum:"owner,admin,senior_agent,agent,coordinator"`
			ChannelHandle string `json:"channel_handle,omitempty"`
		}
	}) (*memberOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		if herr := adminOnly(p); herr != nil {
			return nil, herr
		}
		m, err := eng.CreateMember(ctx, engine.MemberCreateOptions{
			ID:            in.Body.ID,
			Name:          in.Body.Name,
			Email:         in.Body.Email,
			Role:          in.Body.Role,
			ChannelHandle: in.Body.ChannelHandle,
			ActorID:       p.MemberID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &memberOut{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "member-list",
		Method:      http.MethodGet,
		Path:        "/members",
		Summary:     "List team members",
	}, func(ctx context.Context, in *struct {
		Active bool `query:"active" doc:"Only active members"`
	}) (*membersOut, error) {
		members, err := eng.Repo.ListMembers(ctx, in.Active)
		if err != nil {
			return nil, handleError(err)
		}
		out := &membersOut{}
		out.Body.Members = members
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "member-get",
		Method:      http.MethodGet,
		Path:        "/members/{id}",
		Summary:     "Get a member",
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*memberOut, error) {
		m, err := eng.Repo.GetMember(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &memberOut{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "member-set-active",
		Method:      http.MethodPost,
		Path:        "/members/{id}/active",
		Summary:     "Activate or deactivate a member",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			Active bool `json:"active"`
		}
	}) (*memberOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		if herr := adminOnly(p); herr != nil {
			return nil, herr
		}
		m, err := eng.SetMemberActive(ctx, in.ID, in.Body.Active, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &memberOut{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "member-set-channel",
		Method:      http.MethodPost,
		Path:        "/members/{id}/channel",
		Summary:     "Set the member's external channel handle",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			Handle string `json:"handle"`
		}
	}) (*memberOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		m, err := eng.SetMemberChannel(ctx, in.ID, in.Body.Handle, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &memberOut{Body: m}, nil
	})
}
