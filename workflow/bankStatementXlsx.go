package workflow

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// ParseBankXLSX reads a bank export workbook and feeds its first sheet
// through the same layout detection as the CSV path.
func ParseBankXLSX(raw []byte) ([]StatementRow, error) {
	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	sheets := file.GetSheetList()
	for _, sheet := range sheets {
		records, err := file.GetRows(sheet)
		if err != nil {
			return nil, err
		}
		if rows := parseStatementRows(records); len(rows) > 0 {
			return rows, nil
		}
	}
	return nil, errNoCreditRows
}
