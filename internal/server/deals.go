package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"homeline/internal/domain"
	"homeline/internal/engine"
)

type dealOut struct {
	Body domain.Deal
}

func registerDeals(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "deal-create",
		Method:      http.MethodPost,
		Path:        "/deals",
		Summary:     "Open a deal from a lead",
	}, func(ctx context.Context, in *struct {
		Body struct {
			LeadID    string  `json:"lead_id" minLength:"1"`
			DealValue float64 `json:"deal_value" minimum:"0"`
			Currency  string  `json:"currency,omitempty"`
		}
	}) (*dealOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		d, err := eng.CreateDeal(ctx, engine.DealCreateOptions{
			LeadID:    in.Body.LeadID,
			DealValue: in.Body.DealValue,
			Currency:  in.Body.Currency,
			ActorID:   p.MemberID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &dealOut{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deal-list",
		Method:      http.MethodGet,
		Path:        "/deals",
		Summary:     "List deals",
	}, func(ctx context.Context, in *struct {
		LeadID string `query:"lead_id"`
		Limit  int    `query:"limit" default:"50" maximum:"500"`
	}) (*struct {
		Body struct {
			Deals []domain.Deal `json:"deals"`
		}
	}, error) {
		deals, err := eng.Repo.ListDeals(ctx, in.LeadID, normalizeLimit(in.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Deals []domain.Deal `json:"deals"`
			}
		}{}
		out.Body.Deals = deals
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deal-get",
		Method:      http.MethodGet,
		Path:        "/deals/{id}",
		Summary:     "Get a deal",
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*dealOut, error) {
		d, err := eng.Repo.GetDeal(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &dealOut{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deal-status",
		Method:      http.MethodPost,
		Path:        "/deals/{id}/status",
		Summary:     "Transition a deal's status",
	}, func(ctx context.Context, in *struct {
		ID   string `path:"id"`
		Body struct {
			Status string `json:"status" enum:"negotiation,contract_signed,deposit_received,payment_in_progress,completed,cancelled"`
		}
	}) (*dealOut, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		d, err := eng.TransitionDeal(ctx, in.ID, in.Body.Status, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &dealOut{Body: d}, nil
	})
}
