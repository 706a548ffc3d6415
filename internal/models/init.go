package models

import (
	"strings"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"

	"github.com/shopspring/decimal"
)

// InitDefaultCreator 初始化默认创作者（空库部署后即可接入事件）
func InitDefaultCreator(name, slug string) error {
	var count int64
	DB.Model(&Creator{}).Count(&count)
	if count > 0 {
		return nil
	}

	if name == "" {
		name = "Default Creator"
	}
	if slug == "" {
		slug = "default"
	}

	creator := Creator{
		Name:         name,
		Slug:         strings.ToLower(strings.TrimSpace(slug)),
		MemberRate:   NewMoneyFromDecimal(decimal.NewFromFloat(0.10)),
		CreatorRate:  NewMoneyFromDecimal(decimal.NewFromFloat(0.70)),
		PlatformRate: NewMoneyFromDecimal(decimal.NewFromFloat(0.20)),
		Status:       constants.CreatorStatusActive,
	}

	if err := DB.Create(&creator).Error; err != nil {
		return err
	}

	logger.Warnw("default_creator_created", "creator_id", creator.ID, "slug", creator.Slug)
	return nil
}
