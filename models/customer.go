package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

type Customer struct {
	ID              int       `gorm:"primary_key" json:"id"`
	UserUid         string    `gorm:"size:64;not null;index:uniq_customer_name,unique" json:"user_uid"`
	Name            string    `gorm:"size:150;not null" json:"name" binding:"required"`
	NormalizedName  string    `gorm:"size:150;not null;index:uniq_customer_name,unique" json:"normalized_name"`
	IdNumber        string    `gorm:"size:30" json:"id_number"`
	Phone           string    `gorm:"size:20" json:"phone"`
	Email           string    `gorm:"size:100" json:"email"`
	IsAutoGenerated *bool     `gorm:"not null;default:false" json:"is_auto_generated"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name     string `json:"name" binding:"required"`
	IdNumber string `json:"id_number"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {

	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	normalized := utils.NormalizeName(input.Name)
	if err := utils.ValidateUnique[Customer](ctx, userUid, "normalized_name", normalized, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		UserUid:         userUid,
		Name:            input.Name,
		NormalizedName:  normalized,
		IdNumber:        input.IdNumber,
		Phone:           input.Phone,
		Email:           input.Email,
		IsAutoGenerated: utils.NewFalse(),
		IsActive:        utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func GetCustomers(ctx context.Context) ([]*Customer, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}
	return utils.FetchAllModels[Customer](ctx, userUid)
}

// FindOrCreateCustomer matches by normalized name and creates a placeholder
// row on first encounter. Safe under concurrent imports: a duplicate-key
// insert falls back to re-reading the winning row.
func FindOrCreateCustomer(ctx context.Context, userUid string, name string) (*Customer, error) {

	normalized := utils.NormalizeName(name)
	if normalized == "" {
		normalized = PlaceholderName
		name = PlaceholderName
	}

	existing, err := findByNormalizedName[Customer](ctx, userUid, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	customer := Customer{
		UserUid:         userUid,
		Name:            name,
		NormalizedName:  normalized,
		Phone:           PlaceholderPhone,
		IsAutoGenerated: utils.NewTrue(),
		IsActive:        utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return findByNormalizedName[Customer](ctx, userUid, normalized)
		}
		return nil, err
	}
	return &customer, nil
}
