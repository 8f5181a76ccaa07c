package database

import (
	"fmt"
	"log"

	accountdomain "labeler-backend/internal/account/domain"
	logdomain "labeler-backend/internal/logfeed/domain"
	ruledomain "labeler-backend/internal/rule/domain"
	scandomain "labeler-backend/internal/scan/domain"
	settingsdomain "labeler-backend/internal/settings/domain"
	"labeler-backend/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresConnection(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// migration is one idempotent schema or data step. Steps run in order at
// every startup; each guards itself instead of relying on errors being
// swallowed.
type migration struct {
	name string
	run  func(db *gorm.DB) error
}

var migrations = []migration{
	{
		name: "schema",
		run: func(db *gorm.DB) error {
			return db.AutoMigrate(
				&accountdomain.Account{},
				&ruledomain.Rule{},
				&scandomain.ProcessedEmail{},
				&settingsdomain.Setting{},
				&logdomain.Log{},
			)
		},
	},
	{
		name: "seed default poll interval",
		run: func(db *gorm.DB) error {
			var count int64
			if err := db.Model(&settingsdomain.Setting{}).
				Where("key = ?", settingsdomain.KeyPollInterval).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
			return db.Create(&settingsdomain.Setting{
				Key:   settingsdomain.KeyPollInterval,
				Value: "300",
			}).Error
		},
	},
	{
		// Rules created before ordering existed sit at sort_order 0.
		name: "backfill rule sort order",
		run: func(db *gorm.DB) error {
			return db.Model(&ruledomain.Rule{}).Where("sort_order = 0").
				Update("sort_order", gorm.Expr("id")).Error
		},
	},
}

func Migrate(db *gorm.DB) error {
	for _, m := range migrations {
		if err := m.run(db); err != nil {
			return fmt.Errorf("migration %q failed: %w", m.name, err)
		}
		log.Printf("[Database] Migration applied: %s", m.name)
	}
	return nil
}
