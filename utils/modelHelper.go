package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
)

/* DB fetching */

// fetch model from db
// (user_uid is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, userUid string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("user_uid = ?", userUid)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (user_uid is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, userUid string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("user_uid = ?", userUid)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
