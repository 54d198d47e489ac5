package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineParameter is one configurator dimension of a quoted product
// (e.g. width/height/fire rating). Kept as a typed list, not free text.
type LineParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

type LineParameters []LineParameter

func (p LineParameters) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *LineParameters) Scan(value interface{}) error {
	return scanJSON(value, p)
}

// LineAccessory is an accessory attached to a quoted product line.
type LineAccessory struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type LineAccessories []LineAccessory

func (a LineAccessories) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *LineAccessories) Scan(value interface{}) error {
	return scanJSON(value, a)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported json column type")
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

type Quote struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Number       string          `gorm:"size:50;uniqueIndex;not null" json:"number"`
	Version      int             `gorm:"not null;default:1" json:"version"`
	ParentId     *int            `gorm:"index" json:"parent_id"`
	ClientId     int             `gorm:"index;not null" json:"client_id"`
	Client       *Client         `json:"client,omitempty"`
	Status       QuoteStatus     `gorm:"size:20;not null;default:draft" json:"status"`
	QuoteDate    time.Time       `gorm:"not null" json:"quote_date"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	ValidityDays int             `gorm:"default:30" json:"validity_days"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	VatPercent   decimal.Decimal `gorm:"type:decimal(20,4);default:19" json:"vat_percent"`
	VatValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vat_value"`
	Total        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Currency     string          `gorm:"size:3;default:EUR" json:"currency"`
	Notes        string          `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CreatedById  int             `gorm:"index" json:"created_by_id"`

	Lines []QuoteLine `gorm:"constraint:OnDelete:CASCADE" json:"lines"`
}

type QuoteLine struct {
	ID          int             `gorm:"primary_key" json:"id"`
	QuoteId     int             `gorm:"index;not null" json:"quote_id"`
	Position    int             `gorm:"default:0" json:"position"`
	Code        string          `gorm:"size:100" json:"code"`
	Name        string          `gorm:"size:500" json:"name"`
	Dimension   string          `gorm:"size:100" json:"dimension"`
	Unit        string          `gorm:"size:20;default:pcs" json:"unit"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"quantity"`
	ListPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"list_price"`
	Discount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	FinalPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"final_price"`
	Parameters  LineParameters  `gorm:"type:text" json:"parameters"`
	Accessories LineAccessories `gorm:"type:text" json:"accessories"`
}

func (l *QuoteLine) LineValue() decimal.Decimal {
	return l.FinalPrice.Mul(l.Quantity).Round(2)
}

// DisplayNumber shows OF-xxx v2 for revisions.
func (q *Quote) DisplayNumber() string {
	if q.Version > 1 {
		return fmt.Sprintf("%s v%d", q.Number, q.Version)
	}
	return q.Number
}

func (q *Quote) Recalculate() {
	subtotal := decimal.Zero
	for i := range q.Lines {
		subtotal = subtotal.Add(q.Lines[i].LineValue())
	}
	q.Subtotal = subtotal
	q.VatValue = subtotal.Mul(q.VatPercent).Div(decimal.NewFromInt(100)).Round(2)
	q.Total = q.Subtotal.Add(q.VatValue)
}

type NewQuoteLine struct {
	Code        string          `json:"code"`
	Name        string          `json:"name" binding:"required"`
	Dimension   string          `json:"dimension"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	ListPrice   decimal.Decimal `json:"list_price"`
	Discount    decimal.Decimal `json:"discount"`
	FinalPrice  decimal.Decimal `json:"final_price"`
	Parameters  LineParameters  `json:"parameters"`
	Accessories LineAccessories `json:"accessories"`
}

type NewQuote struct {
	ClientId     int             `json:"client_id" binding:"required"`
	ValidityDays int             `json:"validity_days"`
	VatPercent   decimal.Decimal `json:"vat_percent"`
	Currency     string          `json:"currency"`
	Notes        string          `json:"notes"`
	Lines        []NewQuoteLine  `json:"lines" binding:"required"`
}

func CreateQuote(db *gorm.DB, input *NewQuote, createdById int) (*Quote, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Client](db, input.ClientId); err != nil {
		return nil, utils.Resourcef("client %d not found", input.ClientId)
	}

	validity := input.ValidityDays
	if validity <= 0 {
		validity = 30
	}
	vat := input.VatPercent
	if vat.IsZero() {
		vat = decimal.NewFromInt(19)
	}
	currency := input.Currency
	if currency == "" {
		currency = "EUR"
	}

	now := time.Now().UTC()
	expiry := now.AddDate(0, 0, validity)
	quote := Quote{
		Number:       fmt.Sprintf("OF-%s", now.Format("20060102-150405")),
		Version:      1,
		ClientId:     input.ClientId,
		Status:       QuoteStatusDraft,
		QuoteDate:    now,
		ExpiryDate:   &expiry,
		ValidityDays: validity,
		VatPercent:   vat,
		Currency:     currency,
		Notes:        input.Notes,
		CreatedById:  createdById,
	}
	for i, l := range input.Lines {
		unit := l.Unit
		if unit == "" {
			unit = "pcs"
		}
		quote.Lines = append(quote.Lines, QuoteLine{
			Position:    i,
			Code:        l.Code,
			Name:        l.Name,
			Dimension:   l.Dimension,
			Unit:        unit,
			Quantity:    l.Quantity,
			ListPrice:   l.ListPrice,
			Discount:    l.Discount,
			FinalPrice:  l.FinalPrice,
			Parameters:  l.Parameters,
			Accessories: l.Accessories,
		})
	}
	quote.Recalculate()

	if err := db.Create(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func ChangeQuoteStatus(db *gorm.DB, id int, next QuoteStatus, actorId int) (*Quote, error) {
	if !next.Valid() {
		return nil, utils.Validationf("invalid quote status %q", next)
	}
	quote, err := utils.FetchModel[Quote](db, id)
	if err != nil {
		return nil, err
	}
	if !quote.Status.CanTransitionTo(next) {
		return nil, utils.Statef("quote %s cannot go from %s to %s", quote.Number, quote.Status, next)
	}
	old := quote.Status
	quote.Status = next
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(quote).Update("status", next).Error; err != nil {
			return err
		}
		LogAudit(tx, "quote", quote.ID, quote.Number, "status_changed", fmt.Sprintf("%s -> %s", old, next), actorId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// CreateQuoteRevision copies a quote as the next version in its chain.
func CreateQuoteRevision(db *gorm.DB, id int, createdById int) (*Quote, error) {
	original, err := utils.FetchModel[Quote](db, id, "Lines")
	if err != nil {
		return nil, err
	}

	rootId := original.ID
	if original.ParentId != nil {
		rootId = *original.ParentId
	}
	var maxVersion int
	if err := db.Model(&Quote{}).
		Where("id = ? OR parent_id = ?", rootId, rootId).
		Select("COALESCE(MAX(version), 1)").Scan(&maxVersion).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiry := now.AddDate(0, 0, original.ValidityDays)
	revision := Quote{
		Number:       fmt.Sprintf("OF-%s-%04d-v%d", now.Format("20060102-150405"), rootId, maxVersion+1),
		Version:      maxVersion + 1,
		ParentId:     &rootId,
		ClientId:     original.ClientId,
		Status:       QuoteStatusDraft,
		QuoteDate:    now,
		ExpiryDate:   &expiry,
		ValidityDays: original.ValidityDays,
		Subtotal:     original.Subtotal,
		VatPercent:   original.VatPercent,
		VatValue:     original.VatValue,
		Total:        original.Total,
		Currency:     original.Currency,
		Notes:        fmt.Sprintf("Revision v%d of %s", maxVersion+1, original.DisplayNumber()),
		CreatedById:  createdById,
	}
	for _, l := range original.Lines {
		revision.Lines = append(revision.Lines, QuoteLine{
			Position:    l.Position,
			Code:        l.Code,
			Name:        l.Name,
			Dimension:   l.Dimension,
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			ListPrice:   l.ListPrice,
			Discount:    l.Discount,
			FinalPrice:  l.FinalPrice,
			Parameters:  l.Parameters,
			Accessories: l.Accessories,
		})
	}
	if err := db.Create(&revision).Error; err != nil {
		return nil, err
	}
	return &revision, nil
}

func GetQuote(db *gorm.DB, id int) (*Quote, error) {
	return utils.FetchModel[Quote](db, id, "Lines", "Client")
}
