package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"homeline/internal/domain"
	"homeline/internal/engine"
)

// registerEvents exposes the append-only change feed with cursor pagination.
func registerEvents(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "events-list",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Read the change feed",
		Description: "Events are returned oldest first from the cursor. The last event's id is the next cursor.",
	}, func(ctx context.Context, in *struct {
		After string `query:"after" doc:"Cursor: only events with id greater than this"`
		Limit int    `query:"limit" default:"100" maximum:"1000"`
	}) (*struct {
		Body struct {
			Events []domain.Event `json:"events"`
			Next   string         `json:"next,omitempty"`
		}
	}, error) {
		var afterID int64
		if in.After != "" {
			var err error
			afterID, err = strconv.ParseInt(in.After, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "after must be an integer cursor", nil)
			}
		}
		limit := in.Limit
		if limit <= 0 {
			limit = 100
		}
		if limit > 1000 {
			limit = 1000
		}
		list, err := eng.Repo.EventsAfter(ctx, limit, afterID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Events []domain.Event `json:"events"`
				Next   string         `json:"next,omitempty"`
			}
		}{}
		out.Body.Events = list
		if len(list) == limit {
			out.Body.Next = strconv.FormatInt(list[len(list)-1].ID, 10)
		}
		return out, nil
	})
}
