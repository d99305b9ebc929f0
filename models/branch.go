package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

type Branch struct {
	ID              int       `gorm:"primary_key" json:"id"`
	UserUid         string    `gorm:"size:64;not null;index:uniq_branch_name,unique" json:"user_uid"`
	Name            string    `gorm:"size:100;not null" json:"name" binding:"required"`
	NormalizedName  string    `gorm:"size:100;not null;index:uniq_branch_name,unique" json:"normalized_name"`
	Phone           string    `gorm:"size:20" json:"phone"`
	Address         string    `gorm:"type:text" json:"address"`
	City            string    `gorm:"size:100" json:"city"`
	IsAutoGenerated *bool     `gorm:"not null;default:false" json:"is_auto_generated"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBranch struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

func CreateBranch(ctx context.Context, input *NewBranch) (*Branch, error) {

	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	normalized := utils.NormalizeName(input.Name)
	if err := utils.ValidateUnique[Branch](ctx, userUid, "normalized_name", normalized, 0); err != nil {
		return nil, err
	}

	branch := Branch{
		UserUid:         userUid,
		Name:            input.Name,
		NormalizedName:  normalized,
		Phone:           input.Phone,
		Address:         input.Address,
		City:            input.City,
		IsAutoGenerated: utils.NewFalse(),
		IsActive:        utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func GetBranches(ctx context.Context) ([]*Branch, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}
	return utils.FetchAllModels[Branch](ctx, userUid)
}

func FindOrCreateBranch(ctx context.Context, userUid string, name string) (*Branch, error) {

	normalized := utils.NormalizeName(name)
	if normalized == "" {
		normalized = "general"
		name = "general"
	}

	existing, err := findByNormalizedName[Branch](ctx, userUid, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	branch := Branch{
		UserUid:         userUid,
		Name:            name,
		NormalizedName:  normalized,
		Phone:           PlaceholderPhone,
		IsAutoGenerated: utils.NewTrue(),
		IsActive:        utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&branch).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return findByNormalizedName[Branch](ctx, userUid, normalized)
		}
		return nil, err
	}
	return &branch, nil
}
