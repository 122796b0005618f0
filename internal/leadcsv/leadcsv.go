// Package leadcsv parses and serializes the lead bulk-transfer CSV format.
// It is pure: duplicate resolution and persistence happen in the engine.
package leadcsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"homeline/internal/domain"
)

// Header is the fixed column schema. Import rejects files whose header does
// not match; export always emits it.
var Header = []string{
	"FirstName", "LastName", "Phone", "Email", "Telegram", "WhatsApp",
	"PropertyType", "ListingType", "Budget", "Bedrooms", "Districts",
	"Requirements", "Source", "Status", "Priority", "Notes",
}

// Row is one parsed data row. Number is 1-based over data rows (the header
// is not counted) so it matches user-facing spreadsheet diagnostics.
type Row struct {
	Number int
	Record []string
	Lead   domain.Lead
	Err    error
}

// Valid reports whether the row passed validation.
func (r Row) Valid() bool { return r.Err == nil }

// Parse reads the whole payload. A malformed header fails the call; malformed
// or invalid data rows are returned with Err set and never abort the batch.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}
	var rows []Row
	num := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		num++
		row := Row{Number: num, Record: record}
		if err != nil {
			row.Err = err
			rows = append(rows, row)
			continue
		}
		row.Lead, row.Err = parseRecord(record)
		rows = append(rows, row)
	}
	return rows, nil
}

func checkHeader(header []string) error {
	if len(header) != len(Header) {
		return fmt.Errorf("expected %d columns, got %d", len(Header), len(header))
	}
	for i, want := range Header {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("column %d: expected %s, got %s", i+1, want, header[i])
		}
	}
	return nil
}

func parseRecord(record []string) (domain.Lead, error) {
	var l domain.Lead
	if len(record) != len(Header) {
		return l, fmt.Errorf("expected %d fields, got %d", len(Header), len(record))
	}
	field := func(i int) string { return strings.TrimSpace(record[i]) }
	l.FirstName = field(0)
	l.LastName = field(1)
	l.Phone = field(2)
	l.Email = field(3)
	l.Telegram = field(4)
	l.WhatsApp = field(5)
	l.PropertyType = strings.ToLower(field(6))
	l.ListingType = strings.ToLower(field(7))
	l.Districts = field(10)
	l.Requirements = field(11)
	l.Source = strings.ToLower(field(12))
	l.Status = strings.ToLower(field(13))
	l.Priority = strings.ToLower(field(14))
	l.Notes = field(15)

	if l.FirstName == "" {
		return l, fmt.Errorf("FirstName is required")
	}
	if len(domain.NormalizePhone(l.Phone)) < 5 {
		return l, fmt.Errorf("Phone %q is not a valid phone number", l.Phone)
	}
	if v := field(8); v != "" {
		budget, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64)
		if err != nil {
			return l, fmt.Errorf("Budget %q is not a number", v)
		}
		l.Budget = &budget
	}
	if v := field(9); v != "" {
		bedrooms, err := strconv.Atoi(v)
		if err != nil {
			return l, fmt.Errorf("Bedrooms %q is not a number", v)
		}
		l.Bedrooms = &bedrooms
	}
	if l.PropertyType != "" && !domain.ValidPropertyType(l.PropertyType) {
		return l, fmt.Errorf("unknown PropertyType %q", l.PropertyType)
	}
	if l.ListingType != "" && !domain.ValidListingType(l.ListingType) {
		return l, fmt.Errorf("unknown ListingType %q", l.ListingType)
	}
	if l.Source != "" && !domain.ValidLeadSource(l.Source) {
		return l, fmt.Errorf("unknown Source %q", l.Source)
	}
	if l.Status == "" {
		l.Status = domain.LeadNew
	} else if !domain.ValidLeadStatus(l.Status) {
		return l, fmt.Errorf("unknown Status %q", l.Status)
	}
	if l.Priority == "" {
		l.Priority = domain.PriorityMedium
	} else if !domain.ValidPriority(l.Priority) {
		return l, fmt.Errorf("unknown Priority %q", l.Priority)
	}
	return l, nil
}

// Serialize writes leads in the fixed schema, header first. encoding/csv
// quotes fields containing commas (multi-district lists).
func Serialize(w io.Writer, leads []domain.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, l := range leads {
		budget := ""
		if l.Budget != nil {
			budget = strconv.FormatInt(*l.Budget, 10)
		}
		bedrooms := ""
		if l.Bedrooms != nil {
			bedrooms = strconv.Itoa(*l.Bedrooms)
		}
		record := []string{
			l.FirstName, l.LastName, l.Phone, l.Email, l.Telegram, l.WhatsApp,
			l.PropertyType, l.ListingType, budget, bedrooms, l.Districts,
			l.Requirements, l.Source, l.Status, l.Priority, l.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
