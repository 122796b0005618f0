package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"homeline/internal/engine"
	"homeline/internal/repo"
)

// registerTransfer wires CSV bulk import and export.
func registerTransfer(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "lead-import",
		Method:      http.MethodPost,
		Path:        "/leads/import",
		Summary:     "Bulk import leads from CSV",
		Description: "Body is the raw CSV payload. Rows are applied in file order; bad rows are reported, never abort the batch.",
	}, func(ctx context.Context, in *struct {
		DuplicatePolicy string `query:"duplicate_policy" enum:"skip,update,error,"`
		RawBody         []byte `contentType:"text/csv"`
	}) (*struct {
		Body engine.ImportReport
	}, error) {
		p, herr := actorFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		report, err := eng.ImportLeads(ctx, in.RawBody, in.DuplicatePolicy, p.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ImportReport
		}{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lead-export",
		Method:      http.MethodGet,
		Path:        "/leads/export",
		Summary:     "Export leads as CSV",
	}, func(ctx context.Context, in *struct {
		Status     string `query:"status" enum:"new,contacted,qualified,negotiating,converted,lost,"`
		Priority   string `query:"priority" enum:"low,medium,high,urgent,"`
		Source     string `query:"source"`
		AssignedTo string `query:"assigned_to"`
		Search     string `query:"search"`
	}) (*struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}, error) {
		if _, herr := actorFromContext(ctx); herr != nil {
			return nil, herr
		}
		filename, data, err := eng.ExportLeads(ctx, repo.LeadFilters{
			Status:     in.Status,
			Priority:   in.Priority,
			Source:     in.Source,
			AssignedTo: in.AssignedTo,
			Search:     in.Search,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ContentType        string `header:"Content-Type"`
			ContentDisposition string `header:"Content-Disposition"`
			Body               []byte
		}{
			ContentType:        "text/csv",
			ContentDisposition: `attachment; filename="` + filename + `"`,
			Body:               data,
		}, nil
	})
}
