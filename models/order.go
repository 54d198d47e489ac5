package models

import (
	"fmt"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Number       string          `gorm:"size:50;uniqueIndex;not null" json:"number"`
	ClientId     int             `gorm:"index;not null" json:"client_id"`
	Client       *Client         `json:"client,omitempty"`
	QuoteId      *int            `gorm:"index" json:"quote_id"`
	Quote        *Quote          `json:"quote,omitempty"`
	Status       OrderStatus     `gorm:"size:20;not null;default:pending" json:"status"`
	OrderDate    time.Time       `gorm:"not null" json:"order_date"`
	DeliveryDate *time.Time      `json:"delivery_date"`
	DeliveredAt  *time.Time      `json:"delivered_at"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	VatPercent   decimal.Decimal `gorm:"type:decimal(20,4);default:19" json:"vat_percent"`
	VatValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vat_value"`
	Total        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Currency     string          `gorm:"size:3;default:EUR" json:"currency"`
	Advance      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"advance"`
	Notes        string          `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CreatedById  int             `gorm:"index" json:"created_by_id"`

	Lines []OrderLine `gorm:"constraint:OnDelete:CASCADE" json:"lines"`
}

type OrderLine struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	Position    int             `gorm:"default:0" json:"position"`
	Code        string          `gorm:"size:100" json:"code"`
	Name        string          `gorm:"size:500" json:"name"`
	Dimension   string          `gorm:"size:100" json:"dimension"`
	Unit        string          `gorm:"size:20;default:pcs" json:"unit"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Parameters  LineParameters  `gorm:"type:text" json:"parameters"`
	Accessories LineAccessories `gorm:"type:text" json:"accessories"`
}

func (l *OrderLine) LineValue() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity).Round(2)
}

func (o *Order) Recalculate() {
	subtotal := decimal.Zero
	for i := range o.Lines {
		subtotal = subtotal.Add(o.Lines[i].LineValue())
	}
	o.Subtotal = subtotal
	o.VatValue = subtotal.Mul(o.VatPercent).Div(decimal.NewFromInt(100)).Round(2)
	o.Total = o.Subtotal.Add(o.VatValue)
}

type NewOrderLine struct {
	Code        string          `json:"code"`
	Name        string          `json:"name" binding:"required"`
	Dimension   string          `json:"dimension"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Parameters  LineParameters  `json:"parameters"`
	Accessories LineAccessories `json:"accessories"`
}

type NewOrder struct {
	ClientId     int             `json:"client_id" binding:"required"`
	DeliveryDate *time.Time      `json:"delivery_date"`
	VatPercent   decimal.Decimal `json:"vat_percent"`
	Currency     string          `json:"currency"`
	Advance      decimal.Decimal `json:"advance"`
	Notes        string          `json:"notes"`
	Lines        []NewOrderLine  `json:"lines" binding:"required"`
}

// CreateOrder makes a manually entered order. Orders converted from a
// quote go through workflow.ConvertQuoteToOrder instead, which records
// the quote linkage and flips the quote to ordered.
func CreateOrder(db *gorm.DB, input *NewOrder, createdById int) (*Order, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Client](db, input.ClientId); err != nil {
		return nil, utils.Resourcef("client %d not found", input.ClientId)
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
	order := Order{
		Number:       fmt.Sprintf("CMD-%s", now.Format("20060102-150405")),
		ClientId:     input.ClientId,
		Status:       OrderStatusPending,
		OrderDate:    now,
		DeliveryDate: input.DeliveryDate,
		VatPercent:   vat,
		Currency:     currency,
		Advance:      input.Advance,
		Notes:        input.Notes,
		CreatedById:  createdById,
	}
	for i, l := range input.Lines {
		unit := l.Unit
		if unit == "" {
			unit = "pcs"
		}
		order.Lines = append(order.Lines, OrderLine{
			Position:    i,
			Code:        l.Code,
			Name:        l.Name,
			Dimension:   l.Dimension,
			Unit:        unit,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Parameters:  l.Parameters,
			Accessories: l.Accessories,
		})
	}
	order.Recalculate()

	if err := db.Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetOrder(db *gorm.DB, id int) (*Order, error) {
	return utils.FetchModel[Order](db, id, "Lines", "Client")
}

func ListOrders(db *gorm.DB, status *OrderStatus, clientId *int) ([]Order, error) {
	var orders []Order
	query := db.Preload("Client").Order("order_date DESC, id DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if clientId != nil {
		query = query.Where("client_id = ?", *clientId)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
