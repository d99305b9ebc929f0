package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Canonical field names a column mapping may target.
const (
	FieldContractNumber   = "contract_number"
	FieldCustomerName     = "customer_name"
	FieldAgentName        = "agent_name"
	FieldVehicleType      = "vehicle_type"
	FieldBranch           = "branch"
	FieldDateFrom         = "date_from"
	FieldDateTo           = "date_to"
	FieldTotalAmount      = "total_amount"
	FieldCommissionAmount = "commission_amount"
	FieldStatus           = "status"
	FieldContractType     = "contract_type"
	FieldTotalCommission  = "total_commission"
)

// DefaultCommissionPercent applies when a supplier has no template or the
// template doesn't override it.
var DefaultCommissionPercent = decimal.NewFromInt(7)

var requiredDealFields = []string{
	FieldContractNumber, FieldCustomerName, FieldAgentName, FieldTotalAmount, FieldCommissionAmount,
}

var requiredHeaderFields = []string{
	FieldAgentName, FieldContractType, FieldTotalAmount, FieldTotalCommission,
}

// SupplierTemplate is a named, versioned column-mapping definition for one
// supplier's file layout. Never deleted, only deactivated.
type SupplierTemplate struct {
	ID         int       `gorm:"primary_key" json:"id"`
	UserUid    string    `gorm:"size:64;not null;index:uniq_template,unique" json:"user_uid"`
	SupplierId int       `gorm:"not null;index:uniq_template,unique" json:"supplier_id"`
	Name       string    `gorm:"size:100;not null;index:uniq_template,unique" json:"name"`
	Mapping    string    `gorm:"type:text;not null" json:"mapping"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplierTemplate struct {
	SupplierId int    `json:"supplier_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Mapping    string `json:"mapping" binding:"required"`
}

// TemplateMapping is the parsed form of SupplierTemplate.Mapping: spreadsheet
// column label -> canonical field name, per section, plus per-supplier rules.
type TemplateMapping struct {
	CommissionPercent *decimal.Decimal  `json:"commission_percent,omitempty"`
	Header            map[string]string `json:"header"`
	Deals             map[string]string `json:"deals"`
}

func (m *TemplateMapping) Commission() decimal.Decimal {
	if m == nil || m.CommissionPercent == nil {
		return DefaultCommissionPercent
	}
	return *m.CommissionPercent
}

// DealColumn returns the spreadsheet column label mapped to a canonical deal
// field, "" if unmapped.
func (m *TemplateMapping) DealColumn(field string) string {
	for label, canonical := range m.Deals {
		if canonical == field {
			return label
		}
	}
	return ""
}

// ParseTemplateMapping validates the raw mapping JSON: well-formed, and every
// required canonical field covered in both sections.
func ParseTemplateMapping(raw string) (*TemplateMapping, error) {
	var mapping TemplateMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("mapping is not valid JSON: %w", err)
	}
	if len(mapping.Deals) == 0 {
		return nil, errors.New("mapping has no deals section")
	}
	if len(mapping.Header) == 0 {
		return nil, errors.New("mapping has no header section")
	}
	covered := func(section map[string]string, field string) bool {
		for _, canonical := range section {
			if canonical == field {
				return true
			}
		}
		return false
	}
	for _, field := range requiredDealFields {
		if !covered(mapping.Deals, field) {
			return nil, fmt.Errorf("mapping deals section is missing required field %q", field)
		}
	}
	for _, field := range requiredHeaderFields {
		if !covered(mapping.Header, field) {
			return nil, fmt.Errorf("mapping header section is missing required field %q", field)
		}
	}
	if mapping.CommissionPercent != nil &&
		(mapping.CommissionPercent.IsNegative() || mapping.CommissionPercent.GreaterThan(decimal.NewFromInt(100))) {
		return nil, errors.New("commission_percent must be between 0 and 100")
	}
	return &mapping, nil
}

func activeTemplateRedisKey(userUid string, supplierId int) string {
	return fmt.Sprintf("activeTemplate:%s:%d", userUid, supplierId)
}

// CreateOrUpdateTemplate upserts by (supplier, name). A saved template becomes
// the supplier's single active one; siblings are deactivated in the same
// transaction so partial saves never leave two active mappings.
func CreateOrUpdateTemplate(ctx context.Context, input *NewSupplierTemplate) (*SupplierTemplate, error) {

	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	if _, err := ParseTemplateMapping(input.Mapping); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Supplier](ctx, userUid, input.SupplierId); err != nil {
		return nil, errors.New("supplier not found")
	}

	var template SupplierTemplate
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&SupplierTemplate{}).
			Where("user_uid = ? AND supplier_id = ?", userUid, input.SupplierId).
			Update("is_active", false).Error; err != nil {
			return err
		}

		var existing SupplierTemplate
		findErr := tx.Where("user_uid = ? AND supplier_id = ? AND name = ?", userUid, input.SupplierId, input.Name).
			First(&existing).Error
		if findErr == nil {
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"Mapping":  input.Mapping,
				"IsActive": true,
			}).Error; err != nil {
				return err
			}
			template = existing
			template.Mapping = input.Mapping
			template.IsActive = utils.NewTrue()
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		template = SupplierTemplate{
			UserUid:    userUid,
			SupplierId: input.SupplierId,
			Name:       input.Name,
			Mapping:    input.Mapping,
			IsActive:   utils.NewTrue(),
		}
		return tx.Create(&template).Error
	})
	if err != nil {
		return nil, err
	}

	_ = config.RemoveRedisKey(activeTemplateRedisKey(userUid, input.SupplierId))

	return &template, nil
}

func ListActiveTemplates(ctx context.Context, supplierId int) ([]*SupplierTemplate, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	db := config.GetDB()
	var results []*SupplierTemplate
	err := db.WithContext(ctx).
		Where("user_uid = ? AND supplier_id = ? AND is_active = ?", userUid, supplierId, true).
		Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func DeactivateTemplate(ctx context.Context, id int) (*SupplierTemplate, error) {
	userUid, ok := utils.GetUserUidFromContext(ctx)
	if !ok || userUid == "" {
		return nil, errors.New("user uid is required")
	}

	template, err := utils.FetchModel[SupplierTemplate](ctx, userUid, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(template).Update("is_active", false).Error; err != nil {
		return nil, err
	}
	template.IsActive = utils.NewFalse()

	_ = config.RemoveRedisKey(activeTemplateRedisKey(userUid, template.SupplierId))

	return template, nil
}

// ActiveTemplateMapping returns the supplier's active mapping, nil when the
// supplier has none (positional defaults apply then). Cached in redis.
func ActiveTemplateMapping(ctx context.Context, userUid string, supplierId int) (*TemplateMapping, error) {

	redisKey := activeTemplateRedisKey(userUid, supplierId)
	var cached SupplierTemplate
	exists, err := config.GetRedisObject(redisKey, &cached)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		findErr := db.WithContext(ctx).
			Where("user_uid = ? AND supplier_id = ? AND is_active = ?", userUid, supplierId, true).
			Order("updated_at DESC").
			First(&cached).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if findErr != nil {
			return nil, findErr
		}
		if err := config.SetRedisObject(redisKey, &cached, 0); err != nil {
			return nil, err
		}
	}

	return ParseTemplateMapping(cached.Mapping)
}
