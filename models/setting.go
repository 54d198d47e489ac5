package models

import (
	"time"

	"gorm.io/gorm"
)

// Setting is a key/value row for tunables that should not require a
// redeploy (company details, invoice footer, defaults).
type Setting struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Key       string    `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetSetting(db *gorm.DB, key, fallback string) (string, error) {
	var setting Setting
	err := db.Where("`key` = ?", key).First(&setting).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fallback, nil
		}
		return "", err
	}
	return setting.Value, nil
}

func SetSetting(db *gorm.DB, key, value string) error {
	var setting Setting
	err := db.Where("`key` = ?", key).First(&setting).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return db.Create(&Setting{Key: key, Value: value}).Error
	case err != nil:
		return err
	default:
		setting.Value = value
		return db.Save(&setting).Error
	}
}
