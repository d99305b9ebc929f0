package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
)

func validParams(file *bytes.Reader) RunParams {
	return RunParams{
		UserUid:    "user-1",
		SupplierId: 1,
		FormatCode: FormatExcelTabular,
		Year:       2026,
		Month:      2,
		FileName:   "february.xlsx",
		File:       file,
	}
}

func TestRunImport_UnknownFormatCodeIsHardError(t *testing.T) {
	stores := newFakeStores()
	deps := newTestDeps(stores)
	params := validParams(bytes.NewReader([]byte("irrelevant")))
	params.FormatCode = 42

	result := RunImport(context.Background(), deps, params)

	if result.Success {
		t.Fatalf("unknown format code must fail")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "42") {
		t.Fatalf("expected an error naming the code, got %v", result.Errors)
	}
	if len(stores.runs) != 0 {
		t.Fatalf("no run record should be created before dispatch is resolved")
	}
}

func TestRunImport_ValidatesParams(t *testing.T) {
	stores := newFakeStores()
	deps := newTestDeps(stores)

	cases := []func(*RunParams){
		func(p *RunParams) { p.UserUid = "" },
		func(p *RunParams) { p.SupplierId = 0 },
		func(p *RunParams) { p.Year = 1999 },
		func(p *RunParams) { p.Month = 13 },
		func(p *RunParams) { p.File = nil },
	}
	for i, mutate := range cases {
		params := validParams(bytes.NewReader([]byte("x")))
		mutate(&params)
		result := RunImport(context.Background(), deps, params)
		if result.Success || len(result.Errors) == 0 {
			t.Errorf("case %d: expected a failed result with an error", i)
		}
	}
}

func TestRunImport_StubFormatsReportNotImplemented(t *testing.T) {
	for _, code := range []int{FormatCsv, FormatTxt, FormatEmail} {
		stores := newFakeStores()
		deps := newTestDeps(stores)
		params := validParams(bytes.NewReader([]byte("some,raw,content")))
		params.FormatCode = code
		params.FileName = "supplier.dat"

		result := RunImport(context.Background(), deps, params)

		if result.Success {
			t.Errorf("format %d: stub must not report success", code)
		}
		if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "not implemented") {
			t.Errorf("format %d: expected a not-implemented error, got %v", code, result.Errors)
		}
		if len(stores.runs) != 1 {
			t.Errorf("format %d: even a stub run must leave an audit record", code)
		}
		if stores.lockHeld {
			t.Errorf("format %d: the run lock must be released", code)
		}
	}
}

func TestRunImport_DuplicateFileWarnsButProceeds(t *testing.T) {
	content := workbookBytes(t, [][]interface{}{
		{"contract", "customer", "agent"},
		{"20993", "Avi Cohen", "dana"},
	})

	fingerprint, err := FileFingerprint(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	stores := newFakeStores()
	stores.priorRunsByPrint[fingerprint] = 1
	deps := newTestDeps(stores)

	result := RunImport(context.Background(), deps, validParams(bytes.NewReader(content)))

	if !result.Success {
		t.Fatalf("a duplicate file must still import: %v", result.Errors)
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "already imported") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a duplicate-file warning, got %v", result.Warnings)
	}
}

func TestRunImport_PanicBecomesFailedResult(t *testing.T) {
	strategies[99] = func(ctx context.Context, deps *Deps, params RunParams, run *models.ImportRun) *ImportResult {
		panic("boom")
	}
	defer delete(strategies, 99)

	stores := newFakeStores()
	deps := newTestDeps(stores)
	params := validParams(bytes.NewReader([]byte("x")))
	params.FormatCode = 99

	result := RunImport(context.Background(), deps, params)

	if result.Success {
		t.Fatalf("a panicking strategy must yield a failed result")
	}
	if len(result.Errors) == 0 {
		t.Fatalf("expected an error message")
	}
	if stores.lockHeld {
		t.Fatalf("the run lock must be released after a panic")
	}
}

func TestRunImport_ResultSlicesAreNeverNil(t *testing.T) {
	stores := newFakeStores()
	deps := newTestDeps(stores)
	params := validParams(bytes.NewReader([]byte("x")))
	params.FormatCode = 42

	result := RunImport(context.Background(), deps, params)
	if result.Errors == nil || result.Warnings == nil {
		t.Fatalf("errors and warnings must always be present")
	}
}
