package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

func TestParseStatementAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1.234,56", "1234.56", true},
		{"1234,56", "1234.56", true},
		{"1234.56", "1234.56", true},
		{"12.345.678,90", "12345678.9", true},
		{"1 234,56", "1234.56", true},
		{"500", "500", true},
		{"", "0", false},
		{"-", "0", false},
		{"abc", "0", false},
	}
	for _, tc := range cases {
		got, ok := parseStatementAmount(tc.in)
		if ok != tc.ok {
			t.Errorf("parseStatementAmount(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got.String() != tc.want {
			t.Errorf("parseStatementAmount(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseStatementDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"15.03.2024", "2024-03-15", true},
		{"2024-03-15", "2024-03-15", true},
		{"15/03/2024", "2024-03-15", true},
		{"15-03-2024", "2024-03-15", true},
		{"not a date", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := parseStatementDate(tc.in)
		if ok != tc.ok {
			t.Errorf("parseStatementDate(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got.Format("2006-01-02") != tc.want {
			t.Errorf("parseStatementDate(%q) = %s, want %s", tc.in, got.Format("2006-01-02"), tc.want)
		}
	}
}

func TestExtractPayer(t *testing.T) {
	description := "TRANSFER INTERBANCAR;CONSTRUCT TOTAL SRL;RO49BTRL0130120456789012;C.I.F.: RO14356782;plata factura HSL-000042"
	name, taxId, iban := extractPayer(description)
	if name != "CONSTRUCT TOTAL SRL" {
		t.Errorf("payer name = %q, want CONSTRUCT TOTAL SRL", name)
	}
	if taxId != "14356782" {
		t.Errorf("tax id = %q, want 14356782", taxId)
	}
	if iban != "RO49BTRL0130120456789012" {
		t.Errorf("iban = %q, want RO49BTRL0130120456789012", iban)
	}
}

func TestExtractPayerLooseTaxId(t *testing.T) {
	_, taxId, _ := extractPayer("plata conform contract CUI 9834521")
	if taxId != "9834521" {
		t.Errorf("tax id = %q, want 9834521", taxId)
	}
}

func TestExtractPayerLegalSuffixFallback(t *testing.T) {
	name, _, _ := extractPayer("incasare de la ELECTRO PLUS SA pentru lucrari")
	if name == "" {
		t.Fatal("expected a payer name from the legal suffix fallback")
	}
}

func TestExtractPayerSkipsTaxIdSegments(t *testing.T) {
	name, taxId, _ := extractPayer("CUI RO9834521;PLATA AVANS")
	if taxId != "9834521" {
		t.Errorf("tax id = %q, want 9834521", taxId)
	}
	if name != "PLATA AVANS" {
		t.Errorf("payer name = %q, want PLATA AVANS (tax id segments are not names)", name)
	}
}

func TestParseStatementRowsWithHeader(t *testing.T) {
	records := [][]string{
		{"Extras de cont", "", "", "", "", ""},
		{"Data", "Descriere", "Referinta", "Debit", "Credit", "Sold"},
		{"15.03.2024", "TRANSFER;CLIENT UNU SRL;RO49BTRL0000000000000001;C.I.F.: RO1234567", "REF1", "", "1.234,56", "10.000,00"},
		{"16.03.2024", "COMISION", "REF2", "12,00", "", "9.988,00"},
	}
	rows := parseStatementRows(records)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (debit rows must be skipped)", len(rows))
	}
	if !rows[0].Amount.Equal(decimal.NewFromFloat(1234.56)) {
		t.Errorf("amount = %s, want 1234.56", rows[0].Amount)
	}
	if rows[0].PayerTaxId != "1234567" {
		t.Errorf("tax id = %q, want 1234567", rows[0].PayerTaxId)
	}
}

func TestParseStatementRowsHeaderless(t *testing.T) {
	records := [][]string{
		{"15.03.2024", "TRANSFER;CLIENT DOI SRL;RO49BTRL0000000000000002", "REF1", "", "500,00", "500,00"},
	}
	rows := parseStatementRows(records)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (headerless files use the default layout)", len(rows))
	}
	if rows[0].Reference != "REF1" {
		t.Errorf("reference = %q, want REF1", rows[0].Reference)
	}
}

func TestParseBankCSVLatin1(t *testing.T) {
	csvText := "Data,Descriere,Referinta,Debit,Credit,Sold\n" +
		"15.03.2024,TRANSFER;SOCIETATEA GENERALĂ SRL;RO49BTRL0000000000000003,R1,,\"2.500,00\",\"2.500,00\"\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(csvText))
	if err != nil {
		// Ă is not representable in latin-1; encode losslessly instead.
		encoded = []byte(csvText)
	}
	rows, err := ParseBankCSV(encoded)
	if err != nil {
		t.Fatalf("ParseBankCSV: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
}

func TestDedupRefStable(t *testing.T) {
	date, _ := parseStatementDate("15.03.2024")
	row := StatementRow{Date: date, Amount: decimal.NewFromFloat(1234.56)}
	if got := row.DedupRef(3); got != "BT-20240315-1234.56-3" {
		t.Errorf("DedupRef = %q, want BT-20240315-1234.56-3", got)
	}
}

func TestNamesSimilar(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"CONSTRUCT TOTAL SRL", "Construct Total S.R.L", true},
		{"CONSTRUCT TOTAL SRL", "CONSTRUCT TOTAL", true},
		{"ELECTRO PLUS SA", "MOBILA DESIGN SRL", false},
		{"SRL", "SA", false},
	}
	for _, tc := range cases {
		if got := namesSimilar(tc.a, tc.b); got != tc.want {
			t.Errorf("namesSimilar(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestWeightedAverageCost(t *testing.T) {
	cases := []struct {
		q1, c1, q2, c2 string
		want           string
	}{
		{"10", "5", "10", "7", "6"},
		{"0", "0", "10", "5", "5"},
		{"30", "2", "10", "6", "3"},
	}
	for _, tc := range cases {
		got := weightedAverageCost(
			decimal.RequireFromString(tc.q1), decimal.RequireFromString(tc.c1),
			decimal.RequireFromString(tc.q2), decimal.RequireFromString(tc.c2))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("weightedAverageCost(%s@%s + %s@%s) = %s, want %s", tc.q1, tc.c1, tc.q2, tc.c2, got, tc.want)
		}
	}
}
