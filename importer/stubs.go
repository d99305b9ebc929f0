package importer

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
)

// Alternate-format strategies are registered but unimplemented until the
// matching supplier is onboarded. Each returns an explicit failed result so
// the dispatch contract holds for every registered code.

func notImplementedResult(formatName string) *ImportResult {
	result := newImportResult()
	result.Errors = append(result.Errors, fmt.Sprintf("%s import is not implemented for this supplier yet", formatName))
	result.Warnings = append(result.Warnings, "no rows were processed")
	return result
}

func runCsvStub(ctx context.Context, deps *Deps, params RunParams, run *models.ImportRun) *ImportResult {
	return notImplementedResult("CSV")
}

func runTxtStub(ctx context.Context, deps *Deps, params RunParams, run *models.ImportRun) *ImportResult {
	return notImplementedResult("text file")
}

func runEmailStub(ctx context.Context, deps *Deps, params RunParams, run *models.ImportRun) *ImportResult {
	return notImplementedResult("email")
}
