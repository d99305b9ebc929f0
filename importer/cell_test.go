package importer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func numberCell(raw string) CellValue {
	return CellValue{Kind: KindNumber, Number: decimal.RequireFromString(raw)}
}

func textCell(text string) CellValue {
	return CellValue{Kind: KindText, Text: text}
}

func TestExtractContractNumber_WideNumberKeepsAllDigits(t *testing.T) {
	// Spreadsheets hand back wide identifiers in scientific notation. The
	// normalizer must restore every digit.
	row := []CellValue{numberCell("1.23456789012345E14")}

	got := ExtractContractNumber(row, 0)
	if got != "123456789012345" {
		t.Fatalf("expected 123456789012345, got %q", got)
	}
}

func TestExtractContractNumber_StripsTrailingPointZero(t *testing.T) {
	row := []CellValue{textCell("20993.0")}

	if got := ExtractContractNumber(row, 0); got != "20993" {
		t.Fatalf("expected 20993, got %q", got)
	}
}

func TestExtractContractNumber_AbsentCell(t *testing.T) {
	row := []CellValue{textCell("x")}

	if got := ExtractContractNumber(row, 5); got != "" {
		t.Fatalf("expected empty string for out-of-range column, got %q", got)
	}
	if got := ExtractContractNumber([]CellValue{{Kind: KindEmpty}}, 0); got != "" {
		t.Fatalf("expected empty string for empty cell, got %q", got)
	}
}

func TestExtractNumber_BestEffortTextParse(t *testing.T) {
	row := []CellValue{textCell(" 1,234.50 "), textCell("not a number"), numberCell("7")}

	first := ExtractNumber(row, 0)
	if first == nil || !first.Equal(decimal.RequireFromString("1234.50")) {
		t.Fatalf("expected 1234.50, got %v", first)
	}
	if got := ExtractNumber(row, 1); got != nil {
		t.Fatalf("expected nil for unparseable text, got %v", got)
	}
	third := ExtractNumber(row, 2)
	if third == nil || !third.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected 7, got %v", third)
	}
}

func TestExtractDate_NeverGuessesFromPlainNumbers(t *testing.T) {
	// 45000 is a plausible date serial but the cell is not date formatted.
	row := []CellValue{numberCell("45000")}

	if got := ExtractDate(row, 0); got != nil {
		t.Fatalf("expected nil for a plain number cell, got %v", got)
	}
}

func TestExtractString_StringifiesNumbers(t *testing.T) {
	row := []CellValue{numberCell("42.5"), textCell("  hello  ")}

	if got := ExtractString(row, 0); got != "42.5" {
		t.Fatalf("expected 42.5, got %q", got)
	}
	if got := ExtractString(row, 1); got != "hello" {
		t.Fatalf("expected trimmed text, got %q", got)
	}
}

func TestReadSheet_DecodesTypedCells(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	file := buildWorkbook(t, [][]interface{}{
		{"contract", "amount", "from"},
		{"20993", 1500.25, start},
	})

	rows, err := ReadSheet(file)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	data := rows[1]
	if got := ExtractContractNumber(data, 0); got != "20993" {
		t.Errorf("contract number: expected 20993, got %q", got)
	}
	amount := ExtractNumber(data, 1)
	if amount == nil || !amount.Equal(decimal.RequireFromString("1500.25")) {
		t.Errorf("amount: expected 1500.25, got %v", amount)
	}
	date := ExtractDate(data, 2)
	if date == nil {
		t.Fatalf("expected a date from a date-formatted cell")
	}
	if date.Year() != 2026 || date.Month() != time.March || date.Day() != 1 {
		t.Errorf("date: expected 2026-03-01, got %v", date)
	}
}
