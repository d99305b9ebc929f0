package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

// Format codes selecting an extraction strategy. Unknown codes are a hard
// error, never a silent fallback to the tabular strategy.
const (
	FormatExcelTabular = 1
	FormatCsv          = 2
	FormatTxt          = 3
	FormatEmail        = 4
	FormatPriceList    = 9
)

const runLockTTL = 5 * time.Minute

// RunParams identifies one orchestrator invocation: whose import, which
// supplier file, which reporting period, and which strategy parses it.
type RunParams struct {
	UserUid    string
	SupplierId int
	FormatCode int
	Year       int
	Month      int
	FileName   string
	File       io.ReadSeeker
}

// ImportResult is the orchestrator's fixed result contract. Every field is
// always present; Errors and Warnings are never nil.
type ImportResult struct {
	Success         bool     `json:"success"`
	CreatedCount    int      `json:"created_count"`
	UpdatedCount    int      `json:"updated_count"`
	SkippedCount    int      `json:"skipped_count"`
	CancelledCount  int      `json:"cancelled_count"`
	ErrorCount      int      `json:"error_count"`
	TotalRowsInFile int      `json:"total_rows_in_file"`
	ProcessedRows   int      `json:"processed_rows"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
}

func newImportResult() *ImportResult {
	return &ImportResult{
		Errors:   []string{},
		Warnings: []string{},
	}
}

func failedResult(message string) *ImportResult {
	result := newImportResult()
	result.Errors = append(result.Errors, message)
	return result
}

type strategyFunc func(ctx context.Context, deps *Deps, params RunParams, run *models.ImportRun) *ImportResult

var strategies = map[int]strategyFunc{
	FormatExcelTabular: runExcelTabular,
	FormatCsv:          runCsvStub,
	FormatTxt:          runTxtStub,
	FormatEmail:        runEmailStub,
	FormatPriceList:    runPriceList,
}

func runLockKey(params RunParams) string {
	return fmt.Sprintf("import:%d:%d:%04d-%02d", params.SupplierId, params.FormatCode, params.Year, params.Month)
}

func validateRunParams(params RunParams) error {
	if params.UserUid == "" {
		return fmt.Errorf("user uid is required")
	}
	if params.SupplierId <= 0 {
		return fmt.Errorf("supplier id is required")
	}
	if params.Year < 2000 || params.Year > 2100 {
		return fmt.Errorf("year %d is out of range", params.Year)
	}
	if params.Month < 1 || params.Month > 12 {
		return fmt.Errorf("month %d is out of range", params.Month)
	}
	if params.File == nil {
		return fmt.Errorf("file is required")
	}
	return nil
}

// RunImport is the single entry point of the pipeline. It never returns an
// error to its caller: every failure mode is folded into the result, and the
// ImportRun audit record is finalized whatever happens.
func RunImport(ctx context.Context, deps *Deps, params RunParams) *ImportResult {
	logger := deps.Logger

	if err := validateRunParams(params); err != nil {
		return failedResult(err.Error())
	}

	strategy, ok := strategies[params.FormatCode]
	if !ok {
		return failedResult(fmt.Sprintf("unknown import format code %d", params.FormatCode))
	}

	release, err := deps.Locker.Acquire(ctx, runLockKey(params), runLockTTL)
	if err != nil {
		if err == utils.ErrorImportInProgress {
			return failedResult("an import for this supplier and period is already running")
		}
		config.LogError(logger, "importer", "RunImport", "acquire run lock", params.FileName, err)
		return failedResult("could not acquire the import lock")
	}
	defer release()

	fingerprint, err := FileFingerprint(params.File)
	if err != nil {
		config.LogError(logger, "importer", "RunImport", "hash file", params.FileName, err)
		return failedResult("could not read the uploaded file")
	}
	if _, err := params.File.Seek(0, io.SeekStart); err != nil {
		return failedResult("could not rewind the uploaded file")
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	run := &models.ImportRun{
		SupplierId:      params.SupplierId,
		ImportTime:      time.Now().UTC(),
		FileName:        params.FileName,
		FormatCode:      params.FormatCode,
		Year:            params.Year,
		Month:           params.Month,
		Success:         utils.NewFalse(),
		FileFingerprint: fingerprint,
		CorrelationId:   correlationId,
	}
	if err := deps.Audit.CreateRun(ctx, params.UserUid, run); err != nil {
		config.LogError(logger, "importer", "RunImport", "create import run", params.FileName, err)
		return failedResult("could not record the import run")
	}

	// Informational only. Row-level fingerprints are the source of truth for
	// skip/update decisions, so a re-upload is allowed through.
	duplicateWarning := ""
	priorRuns, err := deps.Audit.CountRunsByFingerprint(ctx, params.UserUid, params.SupplierId, fingerprint)
	if err != nil {
		config.LogError(logger, "importer", "RunImport", "duplicate file check", params.FileName, err)
	} else if priorRuns > 0 {
		duplicateWarning = "this file was already imported; row-level changes will still be detected"
		config.LogWarn(logger, "importer", "RunImport", "duplicate file", params.FileName)
	}

	result := runStrategy(ctx, deps, params, run, strategy)
	if duplicateWarning != "" {
		result.Warnings = append(result.Warnings, duplicateWarning)
	}

	finalizeRun(ctx, deps, params.UserUid, run, result)
	return result
}

// runStrategy converts a panicking or otherwise misbehaving strategy into a
// failed result so the orchestrator keeps its never-throws contract.
func runStrategy(ctx context.Context, deps *Deps, params RunParams, run *models.ImportRun, strategy strategyFunc) (result *ImportResult) {
	defer func() {
		if r := recover(); r != nil {
			config.LogError(deps.Logger, "importer", "runStrategy", "strategy panicked", params.FileName,
				fmt.Errorf("panic: %v", r))
			result = failedResult("the import failed unexpectedly; no partial results were reported")
		}
	}()
	result = strategy(ctx, deps, params, run)
	if result == nil {
		result = failedResult("the import produced no result")
	}
	return result
}

func finalizeRun(ctx context.Context, deps *Deps, userUid string, run *models.ImportRun, result *ImportResult) {
	run.RowsProcessed = result.ProcessedRows
	run.RowsCreated = result.CreatedCount
	run.RowsUpdated = result.UpdatedCount
	run.RowsSkipped = result.SkippedCount
	run.RowsCancelled = result.CancelledCount
	run.RowsError = result.ErrorCount
	if result.Success {
		run.Success = utils.NewTrue()
	} else {
		run.Success = utils.NewFalse()
		if len(result.Errors) > 0 {
			message := result.Errors[0]
			run.ErrorMessage = &message
		}
	}
	if err := deps.Audit.FinalizeRun(ctx, userUid, run); err != nil {
		config.LogError(deps.Logger, "importer", "finalizeRun", "finalize import run", run.FileName, err)
	}
}
