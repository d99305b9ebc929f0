package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"github.com/shopspring/decimal"
)

var positionalHeaderRow = []interface{}{
	"contract", "customer", "agent", "vehicle type", "branch",
	"from", "to", "amount", "status", "contract type",
}

func dealRow(contract string, customer string, agent string, amount float64, status string) []interface{} {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	return []interface{}{contract, customer, agent, "compact", "airport", from, to, amount, status, "standard"}
}

func runExcelImport(t *testing.T, stores *fakeStores, rows [][]interface{}) *ImportResult {
	t.Helper()
	deps := newTestDeps(stores)
	params := validParams(bytes.NewReader(workbookBytes(t, rows)))
	return RunImport(context.Background(), deps, params)
}

func hebrewMonthlyRows() [][]interface{} {
	return [][]interface{}{
		positionalHeaderRow,
		dealRow("20993", "אבי כהן", "dana", 1000, "פתוח"),
		dealRow("20994", "רות לוי", "dana", 1000, "שולם"),
		dealRow("20995", "יוסי מזרחי", "dana", 1000, "פתוח"),
	}
}

func TestExcelImport_CreatesDealsAndHeader(t *testing.T) {
	stores := newFakeStores()

	result := runExcelImport(t, stores, hebrewMonthlyRows())

	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.CreatedCount != 3 || result.UpdatedCount != 0 || result.SkippedCount != 0 || result.ErrorCount != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.TotalRowsInFile != 3 || result.ProcessedRows != 3 {
		t.Fatalf("expected 3 rows counted, got total=%d processed=%d", result.TotalRowsInFile, result.ProcessedRows)
	}

	if len(stores.headers) != 1 {
		t.Fatalf("expected one header group, got %d", len(stores.headers))
	}
	for _, header := range stores.headers {
		if !header.TotalAmount.Equal(decimal.NewFromInt(3000)) {
			t.Errorf("expected header total 3000, got %s", header.TotalAmount)
		}
		if !header.TotalCommission.Equal(decimal.NewFromInt(210)) {
			t.Errorf("expected header commission 210 at 7%%, got %s", header.TotalCommission)
		}
		if header.AgentName != "dana" || header.ContractType != "standard" {
			t.Errorf("unexpected header group: %+v", header)
		}
	}

	for _, deal := range stores.deals {
		if deal.MonthlyHeaderId == 0 {
			t.Errorf("deal %s must reference its header", deal.ContractNumber)
		}
	}

	if len(stores.entries) != 3 {
		t.Fatalf("expected one audit entry per row, got %d", len(stores.entries))
	}
	for i, entry := range stores.entries {
		if entry.RowNumber != i+2 {
			t.Errorf("entries must be written in row order: entry %d has row %d", i, entry.RowNumber)
		}
		if entry.Action != models.EntryActionCreated {
			t.Errorf("expected CREATED, got %s", entry.Action)
		}
		if entry.ReservationId == nil {
			t.Errorf("expected the entry to reference the synced reservation")
		}
	}

	if len(stores.reservations) != 3 {
		t.Fatalf("expected 3 reservations, got %d", len(stores.reservations))
	}
	if got := stores.reservations[dealKey(1, "20994")].Status; got != models.ReservationPaid {
		t.Errorf("expected PAID from a Hebrew paid status, got %s", got)
	}
}

func TestExcelImport_MixedFileEndToEnd(t *testing.T) {
	rows := [][]interface{}{
		positionalHeaderRow,
		dealRow("A1", "אבי כהן", "dana", 1000, "פתוח"),
		dealRow("A2", "רות לוי", "dana", 2000, "paid"),
		dealRow("", "No Contract", "dana", 500, "open"),
	}

	stores := newFakeStores()
	result := runExcelImport(t, stores, rows)

	if !result.Success {
		t.Fatalf("a partially bad file must still succeed: %v", result.Errors)
	}
	if result.CreatedCount != 2 || result.UpdatedCount != 0 || result.SkippedCount != 0 || result.ErrorCount != 1 {
		t.Fatalf("unexpected counters: %+v", result)
	}

	if len(stores.headers) != 1 {
		t.Fatalf("expected one header, got %d", len(stores.headers))
	}
	for _, header := range stores.headers {
		if !header.TotalAmount.Equal(decimal.NewFromInt(3000)) {
			t.Errorf("the rejected row must not count into the header total: got %s", header.TotalAmount)
		}
	}

	if got := stores.reservations[dealKey(1, "A1")].Status; got != models.ReservationConfirmed {
		t.Errorf("expected CONFIRMED for A1, got %s", got)
	}
	if got := stores.reservations[dealKey(1, "A2")].Status; got != models.ReservationPaid {
		t.Errorf("expected PAID for A2, got %s", got)
	}
}

func TestExcelImport_ReimportIsNoOp(t *testing.T) {
	stores := newFakeStores()

	first := runExcelImport(t, stores, hebrewMonthlyRows())
	if !first.Success || first.CreatedCount != 3 {
		t.Fatalf("first import failed: %+v", first)
	}

	second := runExcelImport(t, stores, hebrewMonthlyRows())
	if !second.Success {
		t.Fatalf("second import failed: %v", second.Errors)
	}
	if second.CreatedCount != 0 || second.UpdatedCount != 0 || second.SkippedCount != 3 {
		t.Fatalf("re-import of an unchanged file must be a no-op: %+v", second)
	}
}

func TestExcelImport_ChangedRowIsUpdated(t *testing.T) {
	stores := newFakeStores()

	if result := runExcelImport(t, stores, hebrewMonthlyRows()); !result.Success {
		t.Fatalf("first import failed: %v", result.Errors)
	}

	changed := hebrewMonthlyRows()
	changed[1] = dealRow("20993", "אבי כהן", "dana", 1500, "פתוח")
	result := runExcelImport(t, stores, changed)

	if !result.Success {
		t.Fatalf("second import failed: %v", result.Errors)
	}
	if result.UpdatedCount != 1 || result.SkippedCount != 2 || result.CreatedCount != 0 {
		t.Fatalf("expected exactly the changed row to update: %+v", result)
	}
	if got := stores.deals[dealKey(1, "20993")].TotalAmount; !got.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected the stored amount to refresh, got %s", got)
	}
}

func TestExcelImport_RowErrorDoesNotAbortBatch(t *testing.T) {
	rows := [][]interface{}{positionalHeaderRow}
	for i := 0; i < 9; i++ {
		rows = append(rows, dealRow(string(rune('a'+i))+"100", "Avi Cohen", "dana", 1000, "open"))
	}
	rows = append(rows, dealRow("", "No Contract", "dana", 500, "open"))

	stores := newFakeStores()
	result := runExcelImport(t, stores, rows)

	if !result.Success {
		t.Fatalf("row errors must not fail the run: %v", result.Errors)
	}
	if result.CreatedCount != 9 || result.ErrorCount != 1 {
		t.Fatalf("expected 9 created and 1 error, got %+v", result)
	}
	if result.ProcessedRows != 9 {
		t.Fatalf("processed rows must exclude errors, got %d", result.ProcessedRows)
	}

	var errorEntries int
	for _, entry := range stores.entries {
		if entry.Action == models.EntryActionError {
			errorEntries++
			if !strings.Contains(entry.Notes, "contract number") {
				t.Errorf("expected a note naming the missing field, got %q", entry.Notes)
			}
		}
	}
	if errorEntries != 1 {
		t.Fatalf("expected exactly one ERROR entry, got %d", errorEntries)
	}
}

func TestExcelImport_ZeroValidRowsIsFatal(t *testing.T) {
	rows := [][]interface{}{
		positionalHeaderRow,
		dealRow("", "First", "dana", 100, "open"),
		dealRow("", "Second", "dana", 200, "open"),
	}

	stores := newFakeStores()
	result := runExcelImport(t, stores, rows)

	if result.Success {
		t.Fatalf("a file with no valid rows must fail the run")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "no valid deal rows") {
		t.Fatalf("expected a zero-valid-rows error, got %v", result.Errors)
	}
	if len(stores.entries) != 2 {
		t.Fatalf("the rejected rows still get audit entries, got %d", len(stores.entries))
	}
	if len(stores.deals) != 0 || len(stores.headers) != 0 {
		t.Fatalf("nothing must be persisted for a fatal run")
	}
}

func TestExcelImport_GroupsHeadersByAgentAndContractType(t *testing.T) {
	rows := [][]interface{}{
		positionalHeaderRow,
		dealRow("30001", "Avi Cohen", "dana", 1000, "open"),
		dealRow("30002", "Rut Levi", "yossi", 2000, "open"),
		dealRow("30003", "Dan Peretz", "dana", 500, "open"),
	}

	stores := newFakeStores()
	result := runExcelImport(t, stores, rows)

	if !result.Success {
		t.Fatalf("import failed: %v", result.Errors)
	}
	if len(stores.headers) != 2 {
		t.Fatalf("expected a header per (agent, contract type), got %d", len(stores.headers))
	}

	danaHeader := stores.headers[headerKey(&models.MonthlyHeader{SupplierId: 1, AgentName: "dana", ContractType: "standard", Year: 2026, Month: 2})]
	if danaHeader == nil || !danaHeader.TotalAmount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected dana's header total 1500, got %+v", danaHeader)
	}
}

func TestExcelImport_CancelledRowsAreCounted(t *testing.T) {
	rows := [][]interface{}{
		positionalHeaderRow,
		dealRow("40001", "Avi Cohen", "dana", 1000, "open"),
		dealRow("40002", "Rut Levi", "dana", 1000, "בוטל"),
	}

	stores := newFakeStores()
	result := runExcelImport(t, stores, rows)

	if !result.Success {
		t.Fatalf("import failed: %v", result.Errors)
	}
	if result.CancelledCount != 1 {
		t.Fatalf("expected one cancelled row, got %d", result.CancelledCount)
	}
	if got := stores.reservations[dealKey(1, "40002")].Status; got != models.ReservationCancelled {
		t.Errorf("expected the cancelled deal's reservation CANCELLED, got %s", got)
	}
}

func TestExcelImport_TemplateMappingResolvesColumns(t *testing.T) {
	fee := decimal.NewFromInt(5)
	stores := newFakeStores()
	stores.mapping = &models.TemplateMapping{
		CommissionPercent: &fee,
		Header: map[string]string{
			"Agent": models.FieldAgentName, "Type": models.FieldContractType,
			"Sum": models.FieldTotalAmount, "Fees": models.FieldTotalCommission,
		},
		Deals: map[string]string{
			"Contract No": models.FieldContractNumber,
			"Client":      models.FieldCustomerName,
			"Agent":       models.FieldAgentName,
			"Sum":         models.FieldTotalAmount,
			"Fee":         models.FieldCommissionAmount,
		},
	}

	rows := [][]interface{}{
		{"Contract No", "Client", "Agent", "Sum", "Fee"},
		{"50001", "Avi Cohen", "dana", 2000.0, 90.0},
	}
	result := runExcelImport(t, stores, rows)

	if !result.Success {
		t.Fatalf("import failed: %v", result.Errors)
	}
	deal := stores.deals[dealKey(1, "50001")]
	if deal == nil {
		t.Fatalf("expected the deal to be stored")
	}
	if deal.CustomerName != "Avi Cohen" || !deal.TotalAmount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("template columns were not applied: %+v", deal)
	}
	if !deal.CommissionAmount.Equal(decimal.NewFromInt(90)) {
		t.Errorf("a mapped commission column must win over the derived value, got %s", deal.CommissionAmount)
	}
}

func TestExcelImport_TemplateColumnMissingFromFileIsFatal(t *testing.T) {
	stores := newFakeStores()
	stores.mapping = &models.TemplateMapping{
		Header: map[string]string{"Agent": models.FieldAgentName},
		Deals: map[string]string{
			"Contract No": models.FieldContractNumber,
			"Missing":     models.FieldTotalAmount,
		},
	}

	rows := [][]interface{}{
		{"Contract No", "Client"},
		{"60001", "Avi Cohen"},
	}
	result := runExcelImport(t, stores, rows)

	if result.Success {
		t.Fatalf("a mapped column absent from the file must fail the run")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "Missing") {
		t.Fatalf("expected the error to name the missing column, got %v", result.Errors)
	}
}
