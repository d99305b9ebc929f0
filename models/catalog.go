package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// PlaceholderName is used when a supplier file carries no usable name for a
// catalog row. The row is still created: imports never block on missing
// master data, completeness is backfilled manually later.
const PlaceholderName = "unknown"

// PlaceholderPhone is deliberately non-validated filler for auto-generated rows.
const PlaceholderPhone = "000000000"

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// findByNormalizedName matches a catalog row by its normalized name: exact
// first, then substring either way. The shortest candidate wins so "north"
// prefers "north" over "north branch annex".
func findByNormalizedName[T any](ctx context.Context, userUid string, normalized string) (*T, error) {
	db := config.GetDB()
	var result T
	err := db.WithContext(ctx).
		Where("user_uid = ?", userUid).
		Where("normalized_name = ? OR normalized_name LIKE ? OR ? LIKE CONCAT('%', normalized_name, '%')",
			normalized, "%"+normalized+"%", normalized).
		Order("CHAR_LENGTH(normalized_name)").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
