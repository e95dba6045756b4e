package workbook

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
)

// recognizedSheets are the taxonomy-level sheet names the parser is
// willing to process. Matching is trimmed and case-insensitive.
var recognizedSheets = map[string]struct{}{
	"vegetables": {},
	"herbs":      {},
	"flowers":    {},
	"fruits":     {},
}

func sheetRecognized(name string) bool {
	_, ok := recognizedSheets[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

type Workbook struct {
	f *excelize.File
}

func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	return &Workbook{f: f}, nil
}

func OpenReader(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	return &Workbook{f: f}, nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

// SheetNames returns the recognized sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	var names []string
	for _, name := range w.f.GetSheetList() {
		if sheetRecognized(name) {
			names = append(names, name)
		}
	}
	return names
}

// ParseSheet turns every non-blank data row of one sheet into an
// ImportRow. Row numbers are 1-based source positions, the header is
// row 1.
func (w *Workbook) ParseSheet(name string) ([]*importrow.ImportRow, error) {
	rows, err := w.f.GetRows(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", name)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	headers := rows[0]
	columns := mapHeaders(headers)

	var parsed []*importrow.ImportRow
	for i, cells := range rows[1:] {
		if rowBlank(cells) {
			continue
		}
		parsed = append(parsed, extractRow(name, i+2, headers, cells, columns))
	}
	return parsed, nil
}

func rowBlank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func getCell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func extractRow(sheetName string, rowNumber int, headers []string, cells []string, columns map[Field]int) *importrow.ImportRow {
	row := &importrow.ImportRow{
		SheetName:     sheetName,
		RowNumber:     rowNumber,
		MappingStatus: importrow.MappingUnmapped,
		RawData:       make(map[string]string, len(headers)),
	}

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}
		row.RawData[header] = getCell(cells, i)
	}

	var warnings []string

	row.VarietyName = getCell(cells, columnIndex(columns, FieldVariety))
	row.SeedSourceName = getCell(cells, columnIndex(columns, FieldSource))
	row.LotNumber = getCell(cells, columnIndex(columns, FieldLot))
	row.Quantity = getCell(cells, columnIndex(columns, FieldQuantity))
	row.Notes = getCell(cells, columnIndex(columns, FieldNotes))

	rawYear := getCell(cells, columnIndex(columns, FieldYear))
	row.RawDateValue = rawYear
	year, yearWarnings := parseYear(rawYear)
	row.YearPurchased = year
	warnings = append(warnings, yearWarnings...)

	rawGermination := getCell(cells, columnIndex(columns, FieldGermination))
	row.RawGerminationValue = rawGermination
	rate, germWarnings := parseGermination(rawGermination)
	row.GerminationRate = rate
	warnings = append(warnings, germWarnings...)

	row.Cost = parseCost(getCell(cells, columnIndex(columns, FieldCost)))

	if detectUsedUp(cells) {
		row.DetectedUsedUp = true
		row.HasGrayText = true
	}

	row.ParseWarnings = warnings
	return row
}

func columnIndex(columns map[Field]int, field Field) int {
	if idx, ok := columns[field]; ok {
		return idx
	}
	return -1
}

// depletionVocabulary marks a row's stock as exhausted. Scanning row
// content stands in for the strikethrough/gray styling of the source
// spreadsheets, which cell values do not carry.
var depletionVocabulary = []string{
	"used up",
	"depleted",
	"gone",
	"empty",
	"finished",
	"out of",
	"no more",
}

func detectUsedUp(cells []string) bool {
	joined := strings.ToLower(strings.Join(cells, " "))
	for _, word := range depletionVocabulary {
		if strings.Contains(joined, word) {
			return true
		}
	}
	return false
}
