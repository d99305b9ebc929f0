package importer

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/shopspring/decimal"
)

// Column positions used when the supplier has no active template.
var positionalDealColumns = map[string]int{
	models.FieldContractNumber:   0,
	models.FieldCustomerName:     1,
	models.FieldAgentName:        2,
	models.FieldVehicleType:      3,
	models.FieldBranch:           4,
	models.FieldDateFrom:         5,
	models.FieldDateTo:           6,
	models.FieldTotalAmount:      7,
	models.FieldStatus:           8,
	models.FieldContractType:     9,
	models.FieldCommissionAmount: -1,
}

const defaultContractType = "standard"
const unknownLiteral = "unknown"

// dealCandidate is one parsed source row plus the audit entry to be written
// for it. Entries are buffered and flushed in row order at the end of the
// run so the audit log stays a faithful trace even though reconciliation
// backfills reservation ids.
type dealCandidate struct {
	rowNumber      int
	contractNumber string
	deal           *models.MonthlyDeal
	group          groupKey
	action         models.EntryAction
	reservationId  *int
	notes          string
}

type groupKey struct {
	agentName    string
	contractType string
}

type groupTotals struct {
	totalAmount     decimal.Decimal
	totalCommission decimal.Decimal
}

// resolveDealColumns maps canonical field names to column indexes, either
// from the supplier's active template matched against the header-label row,
// or from the positional defaults. -1 means the field has no column.
func resolveDealColumns(mapping *models.TemplateMapping, headerRow []CellValue) (map[string]int, error) {
	if mapping == nil {
		columns := make(map[string]int, len(positionalDealColumns))
		for field, index := range positionalDealColumns {
			columns[field] = index
		}
		return columns, nil
	}

	labelIndex := make(map[string]int, len(headerRow))
	for i := range headerRow {
		label := utils.NormalizeName(ExtractString(headerRow, i))
		if label != "" {
			labelIndex[label] = i
		}
	}

	columns := make(map[string]int)
	for label, field := range mapping.Deals {
		index, found := labelIndex[utils.NormalizeName(label)]
		if !found {
			return nil, fmt.Errorf("mapped column %q was not found in the file's header row", label)
		}
		columns[field] = index
	}
	for _, field := range []string{models.FieldVehicleType, models.FieldBranch, models.FieldDateFrom,
		models.FieldDateTo, models.FieldStatus, models.FieldContractType} {
		if _, found := columns[field]; !found {
			columns[field] = -1
		}
	}
	return columns, nil
}

func columnString(row []CellValue, columns map[string]int, field string) string {
	index, found := columns[field]
	if !found || index < 0 {
		return ""
	}
	return ExtractString(row, index)
}

func columnNumber(row []CellValue, columns map[string]int, field string) *decimal.Decimal {
	index, found := columns[field]
	if !found || index < 0 {
		return nil
	}
	return ExtractNumber(row, index)
}

func columnDate(row []CellValue, columns map[string]int, field string) *time.Time {
	index, found := columns[field]
	if !found || index < 0 {
		return nil
	}
	return ExtractDate(row, index)
}

func stringOrDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// runExcelTabular is the reference extraction strategy: one header-label row
// followed by one deal per row. It parses everything first, then upserts
// headers, then deals, then reconciles, then flushes the audit entries.
func runExcelTabular(ctx context.Context, deps *Deps, params RunParams, run *models.ImportRun) *ImportResult {
	logger := deps.Logger
	result := newImportResult()

	rows, err := ReadSheet(params.File)
	if err != nil {
		config.LogError(logger, "importer", "runExcelTabular", "open spreadsheet", params.FileName, err)
		result.Errors = append(result.Errors, "the file could not be read as a spreadsheet")
		return result
	}
	if len(rows) < 2 {
		result.Errors = append(result.Errors, "the file has no data rows")
		return result
	}
	result.TotalRowsInFile = len(rows) - 1

	mapping, err := deps.Templates.ActiveMapping(ctx, params.UserUid, params.SupplierId)
	if err != nil {
		config.LogError(logger, "importer", "runExcelTabular", "load template", params.FileName, err)
		result.Errors = append(result.Errors, "the supplier's column template could not be loaded")
		return result
	}
	columns, err := resolveDealColumns(mapping, rows[0])
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	commissionPct := mapping.Commission()

	candidates := make([]*dealCandidate, 0, len(rows)-1)
	groups := make(map[groupKey]*groupTotals)
	groupOrder := make([]groupKey, 0)

	for r := 1; r < len(rows); r++ {
		row := rows[r]
		rowNumber := r + 1

		contractNumber := ExtractContractNumber(row, columns[models.FieldContractNumber])
		if contractNumber == "" {
			candidates = append(candidates, &dealCandidate{
				rowNumber: rowNumber,
				action:    models.EntryActionError,
				notes:     "missing contract number",
			})
			result.ErrorCount++
			continue
		}

		amount := utils.DereferencePtr(columnNumber(row, columns, models.FieldTotalAmount), decimal.Zero)
		commissionAmount := columnNumber(row, columns, models.FieldCommissionAmount)
		if commissionAmount == nil {
			derived := amount.Mul(commissionPct).Div(decimal.NewFromInt(100))
			commissionAmount = &derived
		}

		agentName := stringOrDefault(columnString(row, columns, models.FieldAgentName), unknownLiteral)
		status := stringOrDefault(columnString(row, columns, models.FieldStatus), unknownLiteral)
		contractType := stringOrDefault(columnString(row, columns, models.FieldContractType), defaultContractType)
		dateFrom := columnDate(row, columns, models.FieldDateFrom)
		dateTo := columnDate(row, columns, models.FieldDateTo)

		deal := &models.MonthlyDeal{
			SupplierId:       params.SupplierId,
			ContractNumber:   contractNumber,
			CustomerName:     stringOrDefault(columnString(row, columns, models.FieldCustomerName), unknownLiteral),
			AgentName:        agentName,
			VehicleType:      columnString(row, columns, models.FieldVehicleType),
			Branch:           columnString(row, columns, models.FieldBranch),
			TotalAmount:      amount,
			CommissionPct:    commissionPct,
			CommissionAmount: *commissionAmount,
			DateFrom:         dateFrom,
			DateTo:           dateTo,
			StatusText:       status,
			Fingerprint: RowFingerprint(params.SupplierId, contractNumber, dateFrom, dateTo,
				amount, status, agentName),
		}
		key := groupKey{agentName: agentName, contractType: contractType}
		candidates = append(candidates, &dealCandidate{
			rowNumber:      rowNumber,
			contractNumber: contractNumber,
			deal:           deal,
			group:          key,
		})

		totals, seen := groups[key]
		if !seen {
			totals = &groupTotals{totalAmount: decimal.Zero, totalCommission: decimal.Zero}
			groups[key] = totals
			groupOrder = append(groupOrder, key)
		}
		totals.totalAmount = totals.totalAmount.Add(amount)
		totals.totalCommission = totals.totalCommission.Add(*commissionAmount)
	}

	validCount := len(candidates) - result.ErrorCount
	if validCount == 0 {
		flushEntries(ctx, deps, params.UserUid, run, candidates)
		result.Errors = append(result.Errors, "no valid deal rows could be extracted from the file")
		return result
	}

	// Headers first: a deal row never references a header that doesn't exist.
	headerIds := make(map[groupKey]int, len(groups))
	for _, key := range groupOrder {
		totals := groups[key]
		header := &models.MonthlyHeader{
			SupplierId:      params.SupplierId,
			AgentName:       key.agentName,
			ContractType:    key.contractType,
			Year:            params.Year,
			Month:           params.Month,
			TotalAmount:     totals.totalAmount,
			TotalCommission: totals.totalCommission,
			SourceFileName:  params.FileName,
			ImportTime:      run.ImportTime,
			Fingerprint: HeaderFingerprint(params.SupplierId, key.agentName, key.contractType,
				params.Year, params.Month, totals.totalAmount, totals.totalCommission),
		}
		if _, err := deps.Deals.UpsertHeader(ctx, params.UserUid, header); err != nil {
			config.LogError(logger, "importer", "runExcelTabular", "upsert monthly header", key, err)
			result.Errors = append(result.Errors, fmt.Sprintf("could not store the summary for agent %q", key.agentName))
			flushEntries(ctx, deps, params.UserUid, run, candidates)
			return result
		}
		headerIds[key] = header.ID
	}

	for _, candidate := range candidates {
		if candidate.deal == nil {
			continue
		}
		candidate.deal.MonthlyHeaderId = headerIds[candidate.group]

		action, err := deps.Deals.UpsertDeal(ctx, params.UserUid, candidate.deal)
		if err != nil {
			config.LogError(logger, "importer", "runExcelTabular", "upsert monthly deal", candidate.contractNumber, err)
			candidate.action = models.EntryActionError
			candidate.notes = "the deal could not be stored"
			result.ErrorCount++
			continue
		}
		switch action {
		case models.UpsertCreated:
			candidate.action = models.EntryActionCreated
			candidate.notes = "new deal"
			result.CreatedCount++
		case models.UpsertUpdated:
			candidate.action = models.EntryActionUpdated
			candidate.notes = "deal changed since last import"
			result.UpdatedCount++
		default:
			candidate.action = models.EntryActionSkipped
			candidate.notes = "no change since last import"
			result.SkippedCount++
		}
		if models.MapReportedStatus(candidate.deal.StatusText) == models.ReservationCancelled {
			result.CancelledCount++
		}
	}
	result.ProcessedRows = result.CreatedCount + result.UpdatedCount + result.SkippedCount

	// Reservation sync is a projection of the imported data. If it fails the
	// import still succeeded; the batch can be re-projected from storage.
	if err := reconcileDeals(ctx, deps, params.UserUid, candidates); err != nil {
		config.LogError(logger, "importer", "runExcelTabular", "reconcile reservations", params.FileName, err)
		result.Warnings = append(result.Warnings, "reservation sync failed; imported data was kept")
	}

	flushEntries(ctx, deps, params.UserUid, run, candidates)

	result.Success = true
	return result
}

// flushEntries writes one audit entry per source row, in row order.
func flushEntries(ctx context.Context, deps *Deps, userUid string, run *models.ImportRun, candidates []*dealCandidate) {
	for _, candidate := range candidates {
		entry := &models.ImportRunEntry{
			ImportRunId:    run.ID,
			RowNumber:      candidate.rowNumber,
			ContractNumber: candidate.contractNumber,
			Action:         candidate.action,
			ReservationId:  candidate.reservationId,
			Notes:          candidate.notes,
		}
		if candidate.deal != nil {
			entry.Amount = candidate.deal.TotalAmount
		}
		if err := deps.Audit.AppendEntry(ctx, userUid, entry); err != nil {
			config.LogError(deps.Logger, "importer", "flushEntries", "append audit entry", candidate.rowNumber, err)
		}
	}
}
