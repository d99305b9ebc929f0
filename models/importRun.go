package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/shopspring/decimal"
)

type EntryAction string

const (
	EntryActionCreated EntryAction = "CREATED"
	EntryActionUpdated EntryAction = "UPDATED"
	EntryActionSkipped EntryAction = "SKIPPED_NO_CHANGE"
	EntryActionError   EntryAction = "ERROR"
)

// ImportRun is the audit record for one orchestrator invocation for one
// (supplier, file). Counters are written once at end of run; everything else
// is immutable after creation.
type ImportRun struct {
	ID              int       `gorm:"primary_key" json:"id"`
	UserUid         string    `gorm:"size:64;not null;index" json:"user_uid"`
	SupplierId      int       `gorm:"not null;index:idx_run_supplier" json:"supplier_id"`
	ImportTime      time.Time `gorm:"not null" json:"import_time"`
	FileName        string    `gorm:"size:255;not null" json:"file_name"`
	FormatCode      int       `gorm:"not null" json:"format_code"`
	Year            int       `gorm:"not null;index:idx_run_supplier" json:"year"`
	Month           int       `gorm:"not null;index:idx_run_supplier" json:"month"`
	RowsProcessed   int       `json:"rows_processed"`
	RowsCreated     int       `json:"rows_created"`
	RowsUpdated     int       `json:"rows_updated"`
	RowsSkipped     int       `json:"rows_skipped"`
	RowsCancelled   int       `json:"rows_cancelled"`
	RowsError       int       `json:"rows_error"`
	Success         *bool     `gorm:"not null;default:false" json:"success"`
	ErrorMessage    *string   `gorm:"type:text" json:"error_message"`
	FileFingerprint string    `gorm:"size:64;index:idx_run_fingerprint" json:"file_fingerprint"`
	CorrelationId   string    `gorm:"size:64" json:"correlation_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ImportRunEntry is the append-only per-source-row audit record of a run.
type ImportRunEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	UserUid        string          `gorm:"size:64;not null;index" json:"user_uid"`
	ImportRunId    int             `gorm:"not null;index" json:"import_run_id"`
	RowNumber      int             `gorm:"not null" json:"row_number"`
	ContractNumber string          `gorm:"size:50" json:"contract_number"`
	Action         EntryAction     `gorm:"size:20;not null" json:"action"`
	ReservationId  *int            `json:"reservation_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func CreateImportRun(ctx context.Context, userUid string, run *ImportRun) error {
	run.UserUid = userUid
	if run.ImportTime.IsZero() {
		run.ImportTime = time.Now().UTC()
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(run).Error
}

func AppendImportRunEntry(ctx context.Context, userUid string, entry *ImportRunEntry) error {
	entry.UserUid = userUid
	db := config.GetDB()
	return db.WithContext(ctx).Create(entry).Error
}

// FinalizeImportRun writes the end-of-run counters and outcome.
func FinalizeImportRun(ctx context.Context, userUid string, run *ImportRun) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&ImportRun{}).
		Where("user_uid = ? AND id = ?", userUid, run.ID).
		Updates(map[string]interface{}{
			"RowsProcessed": run.RowsProcessed,
			"RowsCreated":   run.RowsCreated,
			"RowsUpdated":   run.RowsUpdated,
			"RowsSkipped":   run.RowsSkipped,
			"RowsCancelled": run.RowsCancelled,
			"RowsError":     run.RowsError,
			"Success":       run.Success,
			"ErrorMessage":  run.ErrorMessage,
		}).Error
}

// CountRunsByFingerprint counts prior successful runs of an identical file for
// the supplier. Used for the duplicate-file warning, never to block a run.
func CountRunsByFingerprint(ctx context.Context, userUid string, supplierId int, fingerprint string) (int64, error) {
	return utils.ResourceCountWhere[ImportRun](ctx, userUid,
		"supplier_id = ? AND file_fingerprint = ? AND success = ?", supplierId, fingerprint, true)
}

func ListImportRuns(ctx context.Context, supplierId int, year *int, month *int) ([]*ImportRun, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("user_uid = ? AND supplier_id = ?", userUid, supplierId)
	if year != nil {
		dbCtx = dbCtx.Where("year = ?", *year)
	}
	if month != nil {
		dbCtx = dbCtx.Where("month = ?", *month)
	}

	var results []*ImportRun
	if err := dbCtx.Order("import_time DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListRunEntries returns a run's entries in source-row order, so the audit log
// reads as a faithful trace of the run.
func ListRunEntries(ctx context.Context, runId int) ([]*ImportRunEntry, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	if err := utils.ValidateResourceId[ImportRun](ctx, userUid, runId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*ImportRunEntry
	err := db.WithContext(ctx).
		Where("user_uid = ? AND import_run_id = ?", userUid, runId).
		Order("row_number").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
