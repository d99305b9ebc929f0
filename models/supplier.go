package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserUid   string    `gorm:"index;size:64;not null" json:"user_uid"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewSupplier) validate(ctx context.Context, userUid string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, userUid, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Supplier](ctx, userUid, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {

	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	if err := input.validate(ctx, userUid, 0); err != nil {
		return nil, err
	}

	supplier := Supplier{
		UserUid:  userUid,
		Name:     input.Name,
		Phone:    input.Phone,
		Email:    input.Email,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&supplier).Error
	if err != nil {
		return nil, err
	}

	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {

	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	if err := input.validate(ctx, userUid, id); err != nil {
		return nil, err
	}

	supplier, err := utils.FetchModel[Supplier](ctx, userUid, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&supplier).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Phone":   input.Phone,
		"Email":   input.Email,
		"Address": input.Address,
	}).Error
	if err != nil {
		return nil, err
	}

	return supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}
	return utils.FetchModel[Supplier](ctx, userUid, id)
}

func GetSuppliers(ctx context.Context, name *string) ([]*Supplier, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	db := config.GetDB()
	var results []*Supplier

	dbCtx := db.WithContext(ctx).Where("user_uid = ?", userUid)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
