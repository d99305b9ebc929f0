package importer

import (
	"context"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"github.com/shopspring/decimal"
)

// Price sheet shape: row 1 carries the exchange rate in its second cell;
// data rows follow from row 3. A row with a non-empty first cell opens a car
// group (code, name, monthly price in local currency); rows with an empty
// first cell are vehicles (manufacturer, model) inheriting the pricing of
// the most recently opened group.
const (
	priceExchangeRateColumn = 1
	priceGroupCodeColumn    = 0
	priceGroupNameColumn    = 1
	priceGroupPriceColumn   = 2
	priceVehicleMakerColumn = 1
	priceVehicleModelColumn = 2
)

func runPriceList(ctx context.Context, deps *Deps, params RunParams, run *models.ImportRun) *ImportResult {
	logger := deps.Logger
	result := newImportResult()

	rows, err := ReadSheet(params.File)
	if err != nil {
		config.LogError(logger, "importer", "runPriceList", "open spreadsheet", params.FileName, err)
		result.Errors = append(result.Errors, "the file could not be read as a spreadsheet")
		return result
	}
	if len(rows) < 2 {
		result.Errors = append(result.Errors, "the file has no data rows")
		return result
	}
	result.TotalRowsInFile = len(rows) - 1

	exchangeRate := decimal.NewFromInt(1)
	if rate := ExtractNumber(rows[0], priceExchangeRateColumn); rate != nil && rate.IsPositive() {
		exchangeRate = *rate
	} else {
		result.Warnings = append(result.Warnings, "no exchange rate found in the sheet; local prices were kept as-is")
	}

	var currentGroup *models.PriceListItem
	items := make([]models.PriceListItem, 0, len(rows)-1)

	for r := 1; r < len(rows); r++ {
		row := rows[r]

		groupCode := ExtractString(row, priceGroupCodeColumn)
		if groupCode != "" {
			priceLocal := ExtractNumber(row, priceGroupPriceColumn)
			if priceLocal == nil {
				result.Warnings = append(result.Warnings, "group row without a price was skipped")
				result.ErrorCount++
				currentGroup = nil
				continue
			}
			currentGroup = &models.PriceListItem{
				GroupCode:    groupCode,
				GroupName:    ExtractString(row, priceGroupNameColumn),
				PriceLocal:   *priceLocal,
				PriceForeign: priceLocal.Div(exchangeRate).Round(2),
			}
			continue
		}

		manufacturer := ExtractString(row, priceVehicleMakerColumn)
		model := ExtractString(row, priceVehicleModelColumn)
		if manufacturer == "" && model == "" {
			continue
		}
		if currentGroup == nil {
			result.Warnings = append(result.Warnings, "vehicle row before any group row was skipped")
			result.ErrorCount++
			continue
		}
		items = append(items, models.PriceListItem{
			GroupCode:    currentGroup.GroupCode,
			GroupName:    currentGroup.GroupName,
			Manufacturer: manufacturer,
			Model:        model,
			PriceLocal:   currentGroup.PriceLocal,
			PriceForeign: currentGroup.PriceForeign,
		})
	}

	if len(items) == 0 {
		result.Errors = append(result.Errors, "no vehicle price rows could be extracted from the file")
		return result
	}

	priceList := &models.PriceList{
		SupplierId:     params.SupplierId,
		Year:           params.Year,
		Month:          params.Month,
		ExchangeRate:   exchangeRate,
		SourceFileName: params.FileName,
		Items:          items,
	}
	if err := deps.PriceLists.Replace(ctx, params.UserUid, priceList); err != nil {
		config.LogError(logger, "importer", "runPriceList", "replace price list", params.FileName, err)
		result.Errors = append(result.Errors, "the price list could not be stored")
		return result
	}

	result.CreatedCount = len(items)
	result.ProcessedRows = len(items)
	result.Success = true
	return result
}
