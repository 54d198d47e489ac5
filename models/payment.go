package models

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// IncomingPayment is one credit row imported from a bank statement.
// The bank fields are immutable after import; only the reconciliation
// fields change afterwards.
type IncomingPayment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BankRef     string          `gorm:"size:100;uniqueIndex;not null" json:"bank_ref"`
	PaymentDate time.Time       `gorm:"not null;index" json:"payment_date"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency    string          `gorm:"size:3;default:RON" json:"currency"`
	Description string          `gorm:"type:text" json:"description"`
	PayerName   string          `gorm:"size:255" json:"payer_name"`
	PayerTaxId  string          `gorm:"size:20;index" json:"payer_tax_id"`
	PayerIban   string          `gorm:"size:34" json:"payer_iban"`
	Source      PaymentSource   `gorm:"size:10;not null" json:"source"`

	Status      PaymentStatus `gorm:"size:20;not null;default:unreconciled;index" json:"status"`
	InvoiceId   *int          `gorm:"index" json:"invoice_id"`
	Invoice     *Invoice      `json:"invoice,omitempty"`
	MatchType   MatchType     `gorm:"size:20" json:"match_type"`
	MatchedAt   *time.Time    `json:"matched_at"`
	MatchedById *int          `json:"matched_by_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetPayment(db *gorm.DB, id int) (*IncomingPayment, error) {
	return utils.FetchModel[IncomingPayment](db, id, "Invoice")
}

func ListPayments(db *gorm.DB, status *PaymentStatus, from, to *time.Time) ([]IncomingPayment, error) {
	var payments []IncomingPayment
	query := db.Preload("Invoice").Order("payment_date DESC, id DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if from != nil {
		query = query.Where("payment_date >= ?", *from)
	}
	if to != nil {
		query = query.Where("payment_date <= ?", *to)
	}
	if err := query.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// MatchStats summarizes the outcome of a reconciliation run.
type MatchStats struct {
	Total   int               `json:"total"`
	Matched int               `json:"matched"`
	Types   map[MatchType]int `json:"types"`
}

func NewMatchStats() *MatchStats {
	return &MatchStats{Types: map[MatchType]int{}}
}

func (s *MatchStats) Record(matchType MatchType) {
	s.Matched++
	s.Types[matchType]++
}

// PaymentStats aggregates payment counts per reconciliation status.
func PaymentStats(db *gorm.DB) (map[PaymentStatus]int, error) {
	type row struct {
		Status PaymentStatus
		Count  int
	}
	var rows []row
	err := db.Model(&IncomingPayment{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	stats := map[PaymentStatus]int{}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	return stats, nil
}
