package workflow

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var errNoCreditRows = fmt.Errorf("no credit transactions found in statement")

// StatementRow is one credit transaction extracted from a bank export,
// before it becomes an IncomingPayment.
type StatementRow struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Reference   string
	PayerName   string
	PayerTaxId  string
	PayerIban   string
}

// DedupRef builds the stable identity of a statement row. The bank's
// own reference wins when the statement carries one; otherwise the
// identity is synthesized, with the row index keeping same-day
// same-amount rows apart within one file.
func (r *StatementRow) DedupRef(index int) string {
	if ref := strings.TrimSpace(r.Reference); ref != "" {
		return "BT-" + ref
	}
	return fmt.Sprintf("BT-%s-%s-%d", r.Date.Format("20060102"), r.Amount.StringFixed(2), index)
}

var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"01/02/2006",
}

func parseStatementDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseStatementAmount accepts the amount spellings Romanian bank
// exports mix freely: 1.234,56 / 1234,56 / 1234.56.
func parseStatementAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "-" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") {
		// comma is the decimal separator, dots are thousands
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else if strings.Count(s, ".") > 1 {
		// dotted thousands with no decimals
		s = strings.ReplaceAll(s, ".", "")
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

type statementLayout struct {
	date, description, reference, debit, credit int
}

// defaultLayout is the Banca Transilvania export column order:
// data, descriere, referinta, debit, credit, sold.
var defaultLayout = statementLayout{date: 0, description: 1, reference: 2, debit: 3, credit: 4}

var headerNames = map[string]string{
	"data":                "date",
	"date":                "date",
	"data tranzactie":     "date",
	"data tranzactiei":    "date",
	"descriere":           "description",
	"descrierea":          "description",
	"description":         "description",
	"detalii":             "description",
	"detalii tranzactie":  "description",
	"referinta":           "reference",
	"referinta tranzactie": "reference",
	"reference":           "reference",
	"debit":               "debit",
	"suma debit":          "debit",
	"credit":              "credit",
	"suma credit":         "credit",
	"incasari":            "credit",
}

func detectLayout(record []string) (statementLayout, bool) {
	layout := statementLayout{date: -1, description: -1, reference: -1, debit: -1, credit: -1}
	matched := 0
	for i, cell := range record {
		key := strings.ToLower(strings.TrimSpace(cell))
		switch headerNames[key] {
		case "date":
			layout.date = i
			matched++
		case "description":
			layout.description = i
			matched++
		case "reference":
			layout.reference = i
			matched++
		case "debit":
			layout.debit = i
			matched++
		case "credit":
			layout.credit = i
			matched++
		}
	}
	if layout.date >= 0 && layout.credit >= 0 && matched >= 3 {
		return layout, true
	}
	return statementLayout{}, false
}

func cellAt(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// parseStatementRows walks decoded CSV records and keeps credit rows.
// The header row, when present, names the columns; otherwise the first
// row whose first column parses as a date triggers the default layout.
func parseStatementRows(records [][]string) []StatementRow {
	layout := defaultLayout
	haveLayout := false
	var rows []StatementRow

	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		if !haveLayout {
			if detected, ok := detectLayout(record); ok {
				layout = detected
				haveLayout = true
				continue
			}
			if _, ok := parseStatementDate(cellAt(record, 0)); ok {
				haveLayout = true
				// fall through, this record is already data
			} else {
				continue
			}
		}

		date, ok := parseStatementDate(cellAt(record, layout.date))
		if !ok {
			continue
		}
		credit, ok := parseStatementAmount(cellAt(record, layout.credit))
		if !ok || !credit.IsPositive() {
			continue
		}
		description := cellAt(record, layout.description)
		row := StatementRow{
			Date:        date,
			Amount:      credit,
			Description: description,
			Reference:   cellAt(record, layout.reference),
		}
		row.PayerName, row.PayerTaxId, row.PayerIban = extractPayer(description)
		rows = append(rows, row)
	}
	return rows
}

// ParseBankCSV decodes a raw bank export. Banks emit UTF-8, Latin-1 or
// CP1250 files depending on the export channel, so each encoding is
// tried in that order and the first one yielding credit rows wins.
func ParseBankCSV(raw []byte) ([]StatementRow, error) {
	decoders := []*charmap.Charmap{nil, charmap.ISO8859_1, charmap.Windows1250}
	var firstErr error
	for _, cm := range decoders {
		text, err := decodeStatement(raw, cm)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		records, err := readCSVRecords(text)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if rows := parseStatementRows(records); len(rows) > 0 {
			return rows, nil
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, errNoCreditRows
}

func decodeStatement(raw []byte, cm *charmap.Charmap) (string, error) {
	if cm == nil {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("statement is not valid utf-8")
		}
		return string(bytes.TrimPrefix(raw, []byte{0xef, 0xbb, 0xbf})), nil
	}
	var decoder *encoding.Decoder = cm.NewDecoder()
	decoded, err := decoder.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func readCSVRecords(text string) ([][]string, error) {
	separator := ','
	if strings.Count(text, ";") > strings.Count(text, ",") {
		separator = ';'
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = separator
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

var (
	taxIdStrictRe  = regexp.MustCompile(`(?i)C\.I\.F\.:\s*(?:RO)?(\d{6,10})`)
	taxIdLooseRe   = regexp.MustCompile(`(?i)(?:CUI|CIF|cod fiscal)[:\s]*(?:RO)?(\d{6,10})`)
	ibanSegmentRe  = regexp.MustCompile(`^RO\d{2}[A-Z]{4}`)
	taxIdSegmentRe = regexp.MustCompile(`(?i)^(?:C\.I\.F\.:|CUI|CIF|cod fiscal)?[:\s]*(?:RO)?\d{6,10}$`)
	upperWordRe    = regexp.MustCompile(`(?i)[A-Z]{2,}`)
	legalSuffixRe  = regexp.MustCompile(`(?i)\b\S+(?:\s+\S+){0,4}\s+(?:SRL|S\.R\.L|SA|S\.A|PFA|SCS|II|ASOCIATI)\b`)
	lettersRe      = regexp.MustCompile(`[A-Za-z]`)
)

// extractPayer pulls payer name, tax id and IBAN out of a free-text
// transaction description. BT descriptions are semicolon separated
// segments; the payer name conventionally sits right before the IBAN.
func extractPayer(description string) (name, taxId, iban string) {
	if m := taxIdStrictRe.FindStringSubmatch(description); m != nil {
		taxId = m[1]
	} else if m := taxIdLooseRe.FindStringSubmatch(description); m != nil {
		taxId = m[1]
	}

	segments := strings.Split(description, ";")
	for i, segment := range segments {
		segment = strings.TrimSpace(segment)
		if !ibanSegmentRe.MatchString(segment) {
			continue
		}
		iban = segment
		if i > 0 {
			candidate := strings.TrimSpace(segments[i-1])
			if upperWordRe.MatchString(candidate) && !strings.HasPrefix(candidate, "C.I.F") {
				name = candidate
			}
		}
		break
	}

	if name == "" {
		if m := legalSuffixRe.FindString(description); m != "" {
			name = strings.TrimSpace(m)
		}
	}
	if name == "" {
		for _, segment := range segments {
			segment = strings.TrimSpace(segment)
			if ibanSegmentRe.MatchString(segment) || taxIdSegmentRe.MatchString(segment) {
				continue
			}
			if len(lettersRe.FindAllString(segment, -1)) >= 3 {
				name = segment
				break
			}
		}
	}
	if name == "" {
		name = description
		if len(name) > 80 {
			name = name[:80]
		}
		name = strings.TrimSpace(name)
	}
	return name, taxId, iban
}
