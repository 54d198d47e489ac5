// Command seed-admin prepares a fresh database: it runs migrations,
// creates the administrator role and user, and seeds the default
// warehouse. Safe to re-run, existing rows are left alone.
package main

import (
	"os"

	"bitbucket.org/hslsolutions/erp_backend/config"
	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()

	if err := models.MigrateTable(db); err != nil {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
	}

	role, err := ensureAdminRole(db)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "role"}).Panic(err.Error())
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		logger.WithFields(logrus.Fields{"field": "user"}).Panic("ADMIN_PASSWORD is required")
	}
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@localhost.local"
	}

	var existing int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
		logger.WithFields(logrus.Fields{"field": "user"}).Panic(err.Error())
	}
	if existing > 0 {
		logger.WithFields(logrus.Fields{"field": "user"}).Info("admin user already exists, nothing to do")
		return
	}

	input := models.NewUser{
		Username: username,
		Email:    email,
		Password: password,
		FullName: "Administrator",
		RoleId:   role.ID,
	}
	if _, err := models.CreateUser(db, &input); err != nil {
		logger.WithFields(logrus.Fields{"field": "user"}).Panic(err.Error())
	}

	if err := ensureDefaultWarehouse(db); err != nil {
		logger.WithFields(logrus.Fields{"field": "warehouse"}).Panic(err.Error())
	}

	logger.WithFields(logrus.Fields{"field": "seed"}).Info("admin user and defaults created")
}

func ensureAdminRole(db *gorm.DB) (*models.Role, error) {
	var role models.Role
	err := db.Where("name = ?", "administrator").First(&role).Error
	if err == nil {
		return &role, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	role = models.Role{
		Name:        "administrator",
		Description: "Full access",
		Permissions: models.PermissionSet{"*": true},
		IsSystem:    utils.NewTrue(),
	}
	if err := db.Create(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func ensureDefaultWarehouse(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Warehouse{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	warehouse := models.Warehouse{Name: "Depozit central", IsActive: utils.NewTrue()}
	return db.Create(&warehouse).Error
}
