package database

import (
	"errors"
	"time"

	"dispatch-app/config"
	"dispatch-app/controllers/idgen"
	"dispatch-app/models"
	"dispatch-app/types"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/rand"
	"gorm.io/gorm"
)

func RunSeeders(db *gorm.DB) {
	SeedAdminUser(db)
	if config.SeedDemoData {
		SeedDemoInventory(db)
	}
}

// SeedAdminUser creates the initial admin account if none exists.
func SeedAdminUser(db *gorm.DB) {
	log := config.GetLogger()

	var existing models.User
	err := db.Where("username = ? OR email = ?", config.AdminUsername, config.AdminEmail).First(&existing).Error
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("Unexpected DB error while seeding admin: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(config.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	admin := models.User{
		Username: config.AdminUsername,
		Email:    config.AdminEmail,
		Password: string(hash),
		Role:     "Admin",
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	log.Infof("Seeded admin user %s", admin.Username)
}

// SeedDemoInventory fills empty stock tables with a handful of items so
// a fresh install has something to dispatch against.
func SeedDemoInventory(db *gorm.DB) {
	log := config.GetLogger()

	var count int64
	db.Model(&models.ManufacturingItem{}).Count(&count)
	if count == 0 {
		items := []models.ManufacturingItem{
			{ItemCode: "MFG-PUMP-01", ItemName: "Hydraulic Pump Assembly"},
			{ItemCode: "MFG-GEAR-02", ItemName: "Gearbox Housing"},
			{ItemCode: "MFG-SHFT-03", ItemName: "Drive Shaft"},
		}
		for i := range items {
			items[i].ID = types.SnowflakeID(idgen.GenerateID())
			items[i].WipStock = 20 + rand.Intn(80)
			items[i].LastUpdated = time.Now()
		}
		if err := db.Create(&items).Error; err != nil {
			log.Errorf("Failed to seed manufacturing items: %v", err)
		}
	}

	db.Model(&models.BoughtOutItem{}).Count(&count)
	if count == 0 {
		items := []models.BoughtOutItem{
			{ItemCode: "BO-BEAR-01", ItemName: "Ball Bearing 6204"},
			{ItemCode: "BO-SEAL-02", ItemName: "Oil Seal 35x52x7"},
			{ItemCode: "BO-BOLT-03", ItemName: "Hex Bolt M12"},
		}
		for i := range items {
			items[i].ID = types.SnowflakeID(idgen.GenerateID())
			items[i].Quantity = 50 + rand.Intn(200)
			items[i].LastUpdated = time.Now()
		}
		if err := db.Create(&items).Error; err != nil {
			log.Errorf("Failed to seed bought-out items: %v", err)
		}
	}
}
