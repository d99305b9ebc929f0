package importer

import (
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type CellKind int

const (
	KindEmpty CellKind = iota
	KindText
	KindNumber
	KindDate
	KindBool
)

// CellValue is one decoded spreadsheet cell. Exactly one of Text, Number and
// Date carries content, selected by Kind.
type CellValue struct {
	Kind   CellKind
	Text   string
	Number decimal.Decimal
	Date   time.Time
}

// Number formats flagged as dates by the xlsx spec. Custom formats are
// matched by token below.
var builtinDateNumFmts = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	45: true, 46: true, 47: true,
}

func isDateFormatToken(format string) bool {
	cleaned := strings.ToLower(format)
	for _, token := range []string{"yy", "dd", "mmm", "hh", "ss"} {
		if strings.Contains(cleaned, token) {
			return true
		}
	}
	return false
}

func isDateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if builtinDateNumFmts[style.NumFmt] {
		return true
	}
	if style.CustomNumFmt != nil && isDateFormatToken(*style.CustomNumFmt) {
		return true
	}
	return false
}

func decodeCell(f *excelize.File, sheet string, col int, row int, raw string) CellValue {
	if strings.TrimSpace(raw) == "" {
		return CellValue{Kind: KindEmpty}
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return CellValue{Kind: KindText, Text: raw}
	}

	cellType, err := f.GetCellType(sheet, axis)
	if err != nil {
		return CellValue{Kind: KindText, Text: raw}
	}

	switch cellType {
	case excelize.CellTypeBool:
		return CellValue{Kind: KindBool, Text: raw}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		number, parseErr := decimal.NewFromString(strings.TrimSpace(raw))
		if parseErr != nil {
			return CellValue{Kind: KindText, Text: raw}
		}
		styleID, styleErr := f.GetCellStyle(sheet, axis)
		if styleErr == nil && isDateStyle(f, styleID) {
			serial, _ := number.Float64()
			date, dateErr := excelize.ExcelDateToTime(serial, false)
			if dateErr == nil {
				return CellValue{Kind: KindDate, Date: date, Number: number}
			}
		}
		return CellValue{Kind: KindNumber, Number: number}
	default:
		return CellValue{Kind: KindText, Text: raw}
	}
}

// ReadSheet decodes the first sheet of an xlsx stream into typed cells, one
// slice per row in file order.
func ReadSheet(reader io.Reader) ([][]CellValue, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, excelize.ErrSheetNotExist{SheetName: ""}
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	rows := make([][]CellValue, len(raw))
	for r, rawRow := range raw {
		cells := make([]CellValue, len(rawRow))
		for c, rawCell := range rawRow {
			cells[c] = decodeCell(f, sheet, c, r, rawCell)
		}
		rows[r] = cells
	}
	return rows, nil
}

func cellAt(row []CellValue, index int) (CellValue, bool) {
	if index < 0 || index >= len(row) {
		return CellValue{}, false
	}
	if row[index].Kind == KindEmpty {
		return CellValue{}, false
	}
	return row[index], true
}

// ExtractString returns the cell's textual content; numeric cells are
// stringified through their exact decimal form. "" when absent.
func ExtractString(row []CellValue, index int) string {
	cell, ok := cellAt(row, index)
	if !ok {
		return ""
	}
	switch cell.Kind {
	case KindNumber:
		return cell.Number.String()
	case KindDate:
		return cell.Date.Format("2006-01-02")
	default:
		return strings.TrimSpace(cell.Text)
	}
}

// ExtractNumber parses the cell as a number, attempting a best-effort parse
// on text cells. nil when absent or unparseable.
func ExtractNumber(row []CellValue, index int) *decimal.Decimal {
	cell, ok := cellAt(row, index)
	if !ok {
		return nil
	}
	switch cell.Kind {
	case KindNumber, KindDate:
		number := cell.Number
		return &number
	case KindText:
		cleaned := strings.ReplaceAll(strings.TrimSpace(cell.Text), ",", "")
		number, err := decimal.NewFromString(cleaned)
		if err != nil {
			return nil
		}
		return &number
	default:
		return nil
	}
}

// ExtractContractNumber normalizes identifier cells. Numeric content goes
// through exact decimal representation so wide contract numbers never pick up
// scientific notation or lose trailing digits; a trailing ".0" is stripped.
func ExtractContractNumber(row []CellValue, index int) string {
	cell, ok := cellAt(row, index)
	if !ok {
		return ""
	}
	var text string
	switch cell.Kind {
	case KindNumber:
		text = cell.Number.String()
	default:
		text = strings.TrimSpace(cell.Text)
	}
	text = strings.TrimSuffix(text, ".0")
	return text
}

// ExtractDate returns the cell's timestamp only when the source flags the
// cell as date formatted. Plain numbers are never guessed into dates.
func ExtractDate(row []CellValue, index int) *time.Time {
	cell, ok := cellAt(row, index)
	if !ok || cell.Kind != KindDate {
		return nil
	}
	date := cell.Date
	return &date
}
