package leadcsv_test

import (
	"bytes"
	"strings"
	"testing"

	"homeline/internal/domain"
	"homeline/internal/leadcsv"
)

func header() string {
	return strings.Join(leadcsv.Header, ",")
}

func TestParseValidRow(t *testing.T) {
	data := header() + "\n" +
		"Dana,Khalil,+971 50 111 1111,dana@example.com,@dana,,apartment,rent,90000,1,\"Marina, JBR\",near metro,website,contacted,high,warm\n"
	rows, err := leadcsv.Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if !r.Valid() {
		t.Fatalf("row invalid: %v", r.Err)
	}
	if r.Number != 1 {
		t.Fatalf("row number = %d", r.Number)
	}
	l := r.Lead
	if l.FirstName != "Dana" || l.Phone != "+971 50 111 1111" || l.Districts != "Marina, JBR" {
		t.Fatalf("lead = %+v", l)
	}
	if l.Budget == nil || *l.Budget != 90000 {
		t.Fatalf("budget = %v", l.Budget)
	}
	if l.Bedrooms == nil || *l.Bedrooms != 1 {
		t.Fatalf("bedrooms = %v", l.Bedrooms)
	}
	if l.Status != "contacted" || l.Priority != "high" {
		t.Fatalf("enums: %+v", l)
	}
}

func TestParseDefaults(t *testing.T) {
	data := header() + "\nLina,,+971502222222,,,,,,,,,,,,,\n"
	rows, err := leadcsv.Parse(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	l := rows[0].Lead
	if l.Status != domain.LeadNew || l.Priority != domain.PriorityMedium {
		t.Fatalf("defaults: status=%s priority=%s", l.Status, l.Priority)
	}
}

func TestParseBadRowsDoNotAbort(t *testing.T) {
	data := header() + "\n" +
		",NoFirst,+971501111111,,,,,,,,,,,,,\n" +
		"Omar,,12,,,,,,,,,,,,,\n" + // phone too short
		"Zara,,+971503333333,,,,castle,,,,,,,,,\n" + // bad property type
		"Ok,,+971504444444,,,,,,,,,,,,,\n"
	rows, err := leadcsv.Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse should not fail on bad rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d", len(rows))
	}
	wantValid := []bool{false, false, false, true}
	for i, r := range rows {
		if r.Valid() != wantValid[i] {
			t.Errorf("row %d valid = %v (err %v)", r.Number, r.Valid(), r.Err)
		}
		if r.Number != i+1 {
			t.Errorf("row number = %d, want %d", r.Number, i+1)
		}
	}
}

func TestParseRejectsBadHeader(t *testing.T) {
	data := "FirstName,Phone\nDana,+971501111111\n"
	if _, err := leadcsv.Parse(strings.NewReader(data)); err == nil {
		t.Fatal("mismatched header should fail the call")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	budget := int64(250000)
	bedrooms := 2
	leads := []domain.Lead{
		{
			FirstName: "Dana", LastName: "Khalil", Phone: "+971501111111",
			PropertyType: "villa", ListingType: "sale",
			Budget: &budget, Bedrooms: &bedrooms,
			Districts: "Palm, Hills Estate", Source: "referral",
			Status: "qualified", Priority: "urgent", Notes: `said "call after 6"`,
		},
	}
	var buf bytes.Buffer
	if err := leadcsv.Serialize(&buf, leads); err != nil {
		t.Fatal(err)
	}
	rows, err := leadcsv.Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].Valid() {
		t.Fatalf("rows = %+v", rows)
	}
	got := rows[0].Lead
	if got.Districts != "Palm, Hills Estate" {
		t.Fatalf("districts = %q", got.Districts)
	}
	if got.Notes != `said "call after 6"` {
		t.Fatalf("notes = %q", got.Notes)
	}
	if got.Budget == nil || *got.Budget != budget {
		t.Fatalf("budget = %v", got.Budget)
	}
	if got.Status != "qualified" || got.Priority != "urgent" {
		t.Fatalf("enums: %+v", got)
	}
}
