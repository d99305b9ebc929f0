package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceList is a period-versioned price sheet for one supplier. Replacing a
// list deactivates the previous active one rather than diffing it.
type PriceList struct {
	ID             int             `gorm:"primary_key" json:"id"`
	UserUid        string          `gorm:"size:64;not null;index:idx_price_list" json:"user_uid"`
	SupplierId     int             `gorm:"not null;index:idx_price_list" json:"supplier_id"`
	Year           int             `gorm:"not null;index:idx_price_list" json:"year"`
	Month          int             `gorm:"not null;index:idx_price_list" json:"month"`
	ExchangeRate   decimal.Decimal `gorm:"type:decimal(12,6)" json:"exchange_rate"`
	SourceFileName string          `gorm:"size:255" json:"source_file_name"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	Items          []PriceListItem `gorm:"foreignKey:PriceListId" json:"items"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PriceListItem is one flat per-model price line. Group pricing attributes are
// denormalized onto every vehicle row of the group at import time.
type PriceListItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	UserUid       string          `gorm:"size:64;not null;index" json:"user_uid"`
	PriceListId   int             `gorm:"not null;index" json:"price_list_id"`
	GroupCode     string          `gorm:"size:20;not null" json:"group_code"`
	GroupName     string          `gorm:"size:100" json:"group_name"`
	Manufacturer  string          `gorm:"size:100;not null" json:"manufacturer"`
	Model         string          `gorm:"size:100;not null" json:"model"`
	PriceLocal    decimal.Decimal `gorm:"type:decimal(18,2)" json:"price_local"`
	PriceForeign  decimal.Decimal `gorm:"type:decimal(18,2)" json:"price_foreign"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ReplacePriceList deactivates the supplier's active list for the period and
// inserts the new one with its items, in one transaction.
func ReplacePriceList(ctx context.Context, userUid string, priceList *PriceList) error {
	priceList.UserUid = userUid
	priceList.IsActive = utils.NewTrue()
	for i := range priceList.Items {
		priceList.Items[i].UserUid = userUid
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&PriceList{}).
			Where("user_uid = ? AND supplier_id = ? AND year = ? AND month = ?",
				userUid, priceList.SupplierId, priceList.Year, priceList.Month).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(priceList).Error
	})
}

// ActivePriceList returns the active list for the period with its items, nil
// when the period has none.
func ActivePriceList(ctx context.Context, supplierId int, year int, month int) (*PriceList, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	db := config.GetDB()
	var priceList PriceList
	err := db.WithContext(ctx).Preload("Items").
		Where("user_uid = ? AND supplier_id = ? AND year = ? AND month = ? AND is_active = ?",
			userUid, supplierId, year, month, true).
		Order("updated_at DESC").
		First(&priceList).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &priceList, nil
}
