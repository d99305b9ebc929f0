package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UpsertAction string

const (
	UpsertCreated UpsertAction = "CREATED"
	UpsertUpdated UpsertAction = "UPDATED"
	UpsertSkipped UpsertAction = "SKIPPED_NO_CHANGE"
)

// MonthlyHeader is the reported aggregate for one
// (supplier, agent, contract type, year, month). Re-imports of the same
// period overwrite in place via upsert.
type MonthlyHeader struct {
	ID              int             `gorm:"primary_key" json:"id"`
	UserUid         string          `gorm:"size:64;not null;index:uniq_header,unique" json:"user_uid"`
	SupplierId      int             `gorm:"not null;index:uniq_header,unique" json:"supplier_id"`
	AgentName       string          `gorm:"size:100;not null;index:uniq_header,unique" json:"agent_name"`
	ContractType    string          `gorm:"size:50;not null;index:uniq_header,unique" json:"contract_type"`
	Year            int             `gorm:"not null;index:uniq_header,unique" json:"year"`
	Month           int             `gorm:"not null;index:uniq_header,unique" json:"month"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_amount"`
	TotalCommission decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_commission"`
	SourceFileName  string          `gorm:"size:255" json:"source_file_name"`
	ImportTime      time.Time       `json:"import_time"`
	Fingerprint     string          `gorm:"size:64;not null" json:"fingerprint"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// MonthlyDeal is one normalized transaction row belonging to exactly one
// MonthlyHeader. Natural key: (supplier, contract number).
type MonthlyDeal struct {
	ID               int             `gorm:"primary_key" json:"id"`
	UserUid          string          `gorm:"size:64;not null;index:uniq_deal,unique" json:"user_uid"`
	SupplierId       int             `gorm:"not null;index:uniq_deal,unique" json:"supplier_id"`
	MonthlyHeaderId  int             `gorm:"not null;index" json:"monthly_header_id"`
	ContractNumber   string          `gorm:"size:50;not null;index:uniq_deal,unique" json:"contract_number"`
	CustomerIdNumber string          `gorm:"size:30" json:"customer_id_number"`
	CustomerName     string          `gorm:"size:150" json:"customer_name"`
	AgentName        string          `gorm:"size:100" json:"agent_name"`
	VehicleType      string          `gorm:"size:100" json:"vehicle_type"`
	Branch           string          `gorm:"size:100" json:"branch"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_amount"`
	CommissionPct    decimal.Decimal `gorm:"type:decimal(8,4)" json:"commission_pct"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"commission_amount"`
	DateFrom         *time.Time      `json:"date_from"`
	DateTo           *time.Time      `json:"date_to"`
	StatusText       string          `gorm:"size:50" json:"status_text"`
	Fingerprint      string          `gorm:"size:64;not null" json:"fingerprint"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func FindHeaderByNaturalKey(ctx context.Context, userUid string, supplierId int, agentName string, contractType string, year int, month int) (*MonthlyHeader, error) {
	db := config.GetDB()
	var header MonthlyHeader
	err := db.WithContext(ctx).
		Where("user_uid = ? AND supplier_id = ? AND agent_name = ? AND contract_type = ? AND year = ? AND month = ?",
			userUid, supplierId, agentName, contractType, year, month).
		First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &header, nil
}

func FindDealByNaturalKey(ctx context.Context, userUid string, supplierId int, contractNumber string) (*MonthlyDeal, error) {
	db := config.GetDB()
	var deal MonthlyDeal
	err := db.WithContext(ctx).
		Where("user_uid = ? AND supplier_id = ? AND contract_number = ?", userUid, supplierId, contractNumber).
		First(&deal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// UpsertMonthlyHeader inserts or replaces by natural key. This is the single
// place header fingerprints are compared: identical fingerprint is a true
// no-op (not even a timestamp write). header.ID is set either way so deals
// can be backfilled with it.
func UpsertMonthlyHeader(ctx context.Context, userUid string, header *MonthlyHeader) (UpsertAction, error) {
	header.UserUid = userUid

	existing, err := FindHeaderByNaturalKey(ctx, userUid, header.SupplierId, header.AgentName, header.ContractType, header.Year, header.Month)
	if err != nil {
		return "", err
	}

	db := config.GetDB()
	if existing == nil {
		if err := db.WithContext(ctx).Create(header).Error; err != nil {
			return "", err
		}
		return UpsertCreated, nil
	}

	header.ID = existing.ID
	if existing.Fingerprint == header.Fingerprint {
		return UpsertSkipped, nil
	}

	err = db.WithContext(ctx).Model(&MonthlyHeader{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"TotalAmount":     header.TotalAmount,
			"TotalCommission": header.TotalCommission,
			"SourceFileName":  header.SourceFileName,
			"ImportTime":      header.ImportTime,
			"Fingerprint":     header.Fingerprint,
		}).Error
	if err != nil {
		return "", err
	}
	return UpsertUpdated, nil
}

// UpsertMonthlyDeal inserts or refreshes by natural key. Only supplier-sourced
// fields are replaced on update; columns outside the import's field set keep
// whatever manual edits they carry.
func UpsertMonthlyDeal(ctx context.Context, userUid string, deal *MonthlyDeal) (UpsertAction, error) {
	deal.UserUid = userUid

	existing, err := FindDealByNaturalKey(ctx, userUid, deal.SupplierId, deal.ContractNumber)
	if err != nil {
		return "", err
	}

	db := config.GetDB()
	if existing == nil {
		if err := db.WithContext(ctx).Create(deal).Error; err != nil {
			return "", err
		}
		return UpsertCreated, nil
	}

	deal.ID = existing.ID
	if existing.Fingerprint == deal.Fingerprint {
		return UpsertSkipped, nil
	}

	err = db.WithContext(ctx).Model(&MonthlyDeal{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"MonthlyHeaderId":  deal.MonthlyHeaderId,
			"CustomerIdNumber": deal.CustomerIdNumber,
			"CustomerName":     deal.CustomerName,
			"AgentName":        deal.AgentName,
			"VehicleType":      deal.VehicleType,
			"Branch":           deal.Branch,
			"TotalAmount":      deal.TotalAmount,
			"CommissionPct":    deal.CommissionPct,
			"CommissionAmount": deal.CommissionAmount,
			"DateFrom":         deal.DateFrom,
			"DateTo":           deal.DateTo,
			"StatusText":       deal.StatusText,
			"Fingerprint":      deal.Fingerprint,
		}).Error
	if err != nil {
		return "", err
	}
	return UpsertUpdated, nil
}
