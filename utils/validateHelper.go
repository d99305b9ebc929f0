package utils

import (
	"context"
	"errors"
	"reflect"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
)

// check if id exists, scoped to the owning user_uid, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, userUid string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, userUid, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, userUid string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, userUid, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, userUid, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE user_uid = ? AND $condition
// user_uid can be blank for admin user
func ResourceCountWhere[T any](ctx context.Context, userUid string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if userUid != "" {
		dbCtx.Where("user_uid = ?", userUid)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
