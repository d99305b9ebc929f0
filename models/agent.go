package models

import (
	"context"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"time"
)

// Agent is the supplier-side sales agent a deal/reservation is attributed to.
// Rows are almost always auto-generated from import files.
type Agent struct {
	ID              int       `gorm:"primary_key" json:"id"`
	UserUid         string    `gorm:"size:64;not null;index:uniq_agent_name,unique" json:"user_uid"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	NormalizedName  string    `gorm:"size:100;not null;index:uniq_agent_name,unique" json:"normalized_name"`
	IsAutoGenerated *bool     `gorm:"not null;default:false" json:"is_auto_generated"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func FindOrCreateAgent(ctx context.Context, userUid string, name string) (*Agent, error) {

	normalized := utils.NormalizeName(name)
	if normalized == "" {
		normalized = PlaceholderName
		name = PlaceholderName
	}

	existing, err := findByNormalizedName[Agent](ctx, userUid, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	agent := Agent{
		UserUid:         userUid,
		Name:            name,
		NormalizedName:  normalized,
		IsAutoGenerated: utils.NewTrue(),
		IsActive:        utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&agent).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return findByNormalizedName[Agent](ctx, userUid, normalized)
		}
		return nil, err
	}
	return &agent, nil
}
