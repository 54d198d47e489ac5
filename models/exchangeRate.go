package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExchangeRate caches one fetched currency rate per day so the upstream
// source is hit at most once daily per currency.
type ExchangeRate struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Currency  string          `gorm:"size:3;not null;uniqueIndex:idx_rate_day" json:"currency"`
	RateDate  string          `gorm:"size:10;not null;uniqueIndex:idx_rate_day" json:"rate_date"`
	Rate      decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"rate"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

const rateDateLayout = "2006-01-02"

// CachedRate returns today's cached rate for a currency, or nil.
func CachedRate(db *gorm.DB, currency string, day time.Time) (*ExchangeRate, error) {
	var rate ExchangeRate
	err := db.Where("currency = ? AND rate_date = ?", currency, day.Format(rateDateLayout)).
		First(&rate).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

func StoreRate(db *gorm.DB, currency string, day time.Time, value decimal.Decimal) (*ExchangeRate, error) {
	rate := ExchangeRate{
		Currency: currency,
		RateDate: day.Format(rateDateLayout),
		Rate:     value,
	}
	if err := db.Create(&rate).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}
