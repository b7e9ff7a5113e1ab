// Package dataset loads the debates spreadsheet into Row records. The first
// sheet row is the header; later rows become domain.Row values with
// normalized column names and a stable UID.
package dataset

import (
	"fmt"
	"strings"

	"github.com/HansardGraph/hansard-mvp/engine/domain"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name Hansard exports use.
const DefaultSheet = "Sheet1"

// headerRenames normalizes export column names to the engine's field names.
var headerRenames = map[string]string{
	"Corporate Author": domain.FieldCorporateAuthor,
}

// Load reads one sheet of a debates workbook.
func Load(path, sheet string) ([]domain.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = DefaultSheet
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("dataset: sheet %s: %w", sheet, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: sheet %s is empty", sheet)
	}
	return FromRecords(records[0], records[1:]), nil
}

// FromRecords builds rows from a header record and data records. Cells past
// the header width are dropped; short records leave trailing columns absent.
// Rows without a usable UID cell get a deterministic minted one.
func FromRecords(header []string, records [][]string) []domain.Row {
	fields := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if renamed, ok := headerRenames[h]; ok {
			h = renamed
		}
		fields[i] = h
	}

	rows := make([]domain.Row, 0, len(records))
	for i, record := range records {
		m := make(map[string]string, len(fields))
		for j, field := range fields {
			if field == "" || j >= len(record) {
				continue
			}
			m[field] = record[j]
		}
		if domain.IsMissing(m[domain.FieldUID]) {
			m[domain.FieldUID] = MintUID(i, m)
		}
		rows = append(rows, domain.NewRow(m))
	}
	return rows
}
