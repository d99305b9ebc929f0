package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/importer"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/google/uuid"
)

// import-runner runs one supplier file through the import pipeline from the
// command line, for backfills and for testing supplier onboarding without
// going through the API.
func main() {
	userUid := flag.String("user", "", "Tenant uid the import belongs to (required)")
	supplierId := flag.Int("supplier", 0, "Supplier id (required)")
	formatCode := flag.Int("format", importer.FormatExcelTabular, "Format code selecting the extraction strategy")
	year := flag.Int("year", 0, "Reporting year (required)")
	month := flag.Int("month", 0, "Reporting month 1-12 (required)")
	filePath := flag.String("file", "", "Path to the supplier file (required)")
	flag.Parse()

	if strings.TrimSpace(*userUid) == "" || *supplierId <= 0 || *year == 0 || *month == 0 || strings.TrimSpace(*filePath) == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Explicit connects (config does not connect in init()).
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	file, err := os.Open(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", *filePath, err)
		os.Exit(1)
	}
	defer file.Close()

	ctx := utils.SetUserUidInContext(context.Background(), *userUid)
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())

	if _, err := models.GetSupplier(ctx, *supplierId); err != nil {
		fmt.Fprintf(os.Stderr, "supplier %d not found: %v\n", *supplierId, err)
		os.Exit(1)
	}

	result := importer.RunImport(ctx, importer.DefaultDeps(), importer.RunParams{
		UserUid:    *userUid,
		SupplierId: *supplierId,
		FormatCode: *formatCode,
		Year:       *year,
		Month:      *month,
		FileName:   *filePath,
		File:       file,
	})

	encoded, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(encoded))
	if !result.Success {
		os.Exit(1)
	}
}
