package database

import (
	"dispatch-app/models"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ManufacturingItem{},
		&models.BoughtOutItem{},
		&models.DispatchHeader{},
		&models.DispatchDetail{},
	)
}
