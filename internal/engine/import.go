package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"homeline/internal/domain"
	"homeline/internal/events"
	"homeline/internal/leadcsv"
	"homeline/internal/repo"
)

// Duplicate policies for bulk import, keyed by normalized phone.
const (
	DuplicateSkip   = "skip"
	DuplicateUpdate = "update"
	DuplicateError  = "error"
)

// RowError describes one rejected import row, numbered to match the file.
type RowError struct {
	Row   int    `json:"row"`
	Raw   string `json:"raw,omitempty"`
	Error string `json:"error"`
}

// ImportReport is the per-row outcome summary of one bulk import.
type ImportReport struct {
	Success  int        `json:"success"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
	Imported []string   `json:"imported"`
}

// ImportLeads parses rawCSV and applies it row by row in input order. A bad
// row is recorded and never aborts the batch; each row commits independently
// so one row's failure cannot corrupt another's outcome. The report is
// deterministic for a given input, existing-data snapshot and policy.
func (e Engine) ImportLeads(ctx context.Context, rawCSV []byte, duplicatePolicy, actorID string) (ImportReport, error) {
	report := ImportReport{Errors: []RowError{}, Imported: []string{}}
	policy := duplicatePolicy
	if policy == "" && e.Config != nil {
		policy = e.Config.Import.DefaultDuplicatePolicy
	}
	if policy == "" {
		policy = DuplicateSkip
	}
	switch policy {
	case DuplicateSkip, DuplicateUpdate, DuplicateError:
	default:
		return report, fmt.Errorf("unknown duplicate policy %q", duplicatePolicy)
	}
	rows, err := leadcsv.Parse(bytes.NewReader(rawCSV))
	if err != nil {
		return report, err
	}
	for _, row := range rows {
		if !row.Valid() {
			report.Failed++
			report.Errors = append(report.Errors, RowError{
				Row:   row.Number,
				Raw:   strings.Join(row.Record, ","),
				Error: row.Err.Error(),
			})
			continue
		}
		phone := domain.NormalizePhone(row.Lead.Phone)
		existing, err := e.Repo.GetLeadByPhone(ctx, phone)
		switch {
		case err == nil:
			switch policy {
			case DuplicateSkip:
				report.Skipped++
			case DuplicateError:
				report.Failed++
				report.Errors = append(report.Errors, RowError{
					Row:   row.Number,
					Raw:   strings.Join(row.Record, ","),
					Error: fmt.Sprintf("duplicate phone %s", row.Lead.Phone),
				})
			case DuplicateUpdate:
				if err := e.overwriteImported(ctx, existing, row.Lead, actorID); err != nil {
					report.Failed++
					report.Errors = append(report.Errors, RowError{Row: row.Number, Error: err.Error()})
					continue
				}
				report.Success++
			}
		case errors.Is(err, repo.ErrNotFound):
			id, err := e.insertImported(ctx, row.Lead, phone, actorID)
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, RowError{Row: row.Number, Error: err.Error()})
				continue
			}
			report.Success++
			report.Imported = append(report.Imported, id)
		default:
			return report, err
		}
	}
	return report, nil
}

func (e Engine) insertImported(ctx context.Context, l domain.Lead, phoneNormalized, actorID string) (string, error) {
	now := e.nowString()
	l.ID = newID("lead")
	if l.Source == "" {
		l.Source = "import"
	}
	l.CreatedAt = now
	l.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertLeadTx(ctx, tx, l, phoneNormalized); err != nil {
		return "", fmt.Errorf("insert lead: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "lead.imported", "lead", l.ID, actorID, events.EventPayload{"phone": l.Phone}); err != nil {
		return "", err
	}
	return l.ID, tx.Commit()
}

// overwriteImported applies the CSV row's mutable fields onto an existing
// lead. Status, assignment and contact timestamps are preserved.
func (e Engine) overwriteImported(ctx context.Context, existing, incoming domain.Lead, actorID string) error {
	existing.FirstName = incoming.FirstName
	existing.LastName = incoming.LastName
	existing.Email = incoming.Email
	existing.Telegram = incoming.Telegram
	existing.WhatsApp = incoming.WhatsApp
	existing.PropertyType = incoming.PropertyType
	existing.ListingType = incoming.ListingType
	existing.Budget = incoming.Budget
	existing.Bedrooms = incoming.Bedrooms
	existing.Districts = incoming.Districts
	existing.Requirements = incoming.Requirements
	existing.Priority = incoming.Priority
	existing.Notes = incoming.Notes
	existing.UpdatedAt = e.nowString()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateLeadTx(ctx, tx, existing, domain.NormalizePhone(existing.Phone), existing.Status); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "lead.import_updated", "lead", existing.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ExportLeads serializes leads matching the filter. Pure read; the filename
// carries the status filter and a timestamp.
func (e Engine) ExportLeads(ctx context.Context, f repo.LeadFilters) (string, []byte, error) {
	leads, err := e.Repo.ListLeads(ctx, f)
	if err != nil {
		return "", nil, fmt.Errorf("query leads: %w", err)
	}
	var buf bytes.Buffer
	if err := leadcsv.Serialize(&buf, leads); err != nil {
		return "", nil, err
	}
	scope := f.Status
	if scope == "" {
		scope = "all"
	}
	filename := fmt.Sprintf("leads_%s_%s.csv", scope, e.now().UTC().Format("20060102-150405"))
	return filename, buf.Bytes(), nil
}
