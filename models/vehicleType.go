package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

type VehicleType struct {
	ID              int       `gorm:"primary_key" json:"id"`
	UserUid         string    `gorm:"size:64;not null;index:uniq_vehicle_type_name,unique" json:"user_uid"`
	Name            string    `gorm:"size:100;not null" json:"name" binding:"required"`
	NormalizedName  string    `gorm:"size:100;not null;index:uniq_vehicle_type_name,unique" json:"normalized_name"`
	Seats           int       `json:"seats"`
	IsAutoGenerated *bool     `gorm:"not null;default:false" json:"is_auto_generated"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVehicleType struct {
	Name  string `json:"name" binding:"required"`
	Seats int    `json:"seats"`
}

func CreateVehicleType(ctx context.Context, input *NewVehicleType) (*VehicleType, error) {

	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	normalized := utils.NormalizeName(input.Name)
	if err := utils.ValidateUnique[VehicleType](ctx, userUid, "normalized_name", normalized, 0); err != nil {
		return nil, err
	}

	vehicleType := VehicleType{
		UserUid:         userUid,
		Name:            input.Name,
		NormalizedName:  normalized,
		Seats:           input.Seats,
		IsAutoGenerated: utils.NewFalse(),
		IsActive:        utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&vehicleType).Error; err != nil {
		return nil, err
	}
	return &vehicleType, nil
}

func GetVehicleTypes(ctx context.Context) ([]*VehicleType, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}
	return utils.FetchAllModels[VehicleType](ctx, userUid)
}

func FindOrCreateVehicleType(ctx context.Context, userUid string, name string) (*VehicleType, error) {

	normalized := utils.NormalizeName(name)
	if normalized == "" {
		normalized = "general"
		name = "general"
	}

	existing, err := findByNormalizedName[VehicleType](ctx, userUid, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	vehicleType := VehicleType{
		UserUid:         userUid,
		Name:            name,
		NormalizedName:  normalized,
		IsAutoGenerated: utils.NewTrue(),
		IsActive:        utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&vehicleType).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return findByNormalizedName[VehicleType](ctx, userUid, normalized)
		}
		return nil, err
	}
	return &vehicleType, nil
}
