package models

import (
	"fmt"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	SeriesProforma = "PF"
	SeriesFiscal   = "HSL"
)

type Invoice struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Kind          InvoiceKind     `gorm:"size:20;not null;index" json:"kind"`
	Series        string          `gorm:"size:10;not null" json:"series"`
	Number        int             `gorm:"not null;index" json:"number"`
	ClientId      int             `gorm:"index;not null" json:"client_id"`
	Client        *Client         `json:"client,omitempty"`
	OrderId       *int            `gorm:"index" json:"order_id"`
	Order         *Order          `json:"order,omitempty"`
	QuoteId       *int            `gorm:"index" json:"quote_id"`
	Status        InvoiceStatus   `gorm:"size:20;not null;default:issued;index" json:"status"`
	IssueDate     time.Time       `gorm:"not null" json:"issue_date"`
	DueDate       *time.Time      `json:"due_date"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	VatPercent    decimal.Decimal `gorm:"type:decimal(20,4);default:19" json:"vat_percent"`
	VatValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vat_value"`
	Total         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Currency      string          `gorm:"size:3;default:RON" json:"currency"`
	TotalEur      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_eur"`
	ExchangeRate  decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"exchange_rate"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CreatedById   int             `gorm:"index" json:"created_by_id"`

	Lines []InvoiceLine `gorm:"constraint:OnDelete:CASCADE" json:"lines"`
}

type InvoiceLine struct {
	ID        int             `gorm:"primary_key" json:"id"`
	InvoiceId int             `gorm:"index;not null" json:"invoice_id"`
	Position  int             `gorm:"default:0" json:"position"`
	Code      string          `gorm:"size:100" json:"code"`
	Name      string          `gorm:"size:500" json:"name"`
	Unit      string          `gorm:"size:20;default:pcs" json:"unit"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
}

func (l *InvoiceLine) LineValue() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity).Round(2)
}

// FullNumber renders PF-000123 or HSL-000123.
func (inv *Invoice) FullNumber() string {
	return fmt.Sprintf("%s-%06d", inv.Series, inv.Number)
}

func (inv *Invoice) Remaining() decimal.Decimal {
	return inv.Total.Sub(inv.PaidAmount)
}

func (inv *Invoice) Recalculate() {
	subtotal := decimal.Zero
	for i := range inv.Lines {
		subtotal = subtotal.Add(inv.Lines[i].LineValue())
	}
	inv.Subtotal = subtotal
	inv.VatValue = subtotal.Mul(inv.VatPercent).Div(decimal.NewFromInt(100)).Round(2)
	inv.Total = inv.Subtotal.Add(inv.VatValue)
}

// SeriesFor maps invoice kind to its numbering series.
func SeriesFor(kind InvoiceKind) string {
	if kind == InvoiceKindProforma {
		return SeriesProforma
	}
	return SeriesFiscal
}

// NextInvoiceNumber allocates the next number in the per-kind sequence.
// Callers hold this inside the same transaction that creates the invoice
// so concurrent issuance cannot reuse a number.
func NextInvoiceNumber(tx *gorm.DB, kind InvoiceKind) (int, error) {
	var maxNumber int
	err := tx.Model(&Invoice{}).
		Where("kind = ?", kind).
		Select("COALESCE(MAX(number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		return 0, err
	}
	return maxNumber + 1, nil
}

func GetInvoice(db *gorm.DB, id int) (*Invoice, error) {
	return utils.FetchModel[Invoice](db, id, "Lines", "Client")
}

// UnpaidInvoices lists invoices still expecting money, oldest first.
func UnpaidInvoices(db *gorm.DB, kind *InvoiceKind) ([]Invoice, error) {
	var invoices []Invoice
	query := db.Preload("Client").
		Where("status IN ?", statusStrings(UnpaidInvoiceStatuses)).
		Order("issue_date ASC, id ASC")
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func statusStrings(statuses []InvoiceStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func ListInvoices(db *gorm.DB, kind *InvoiceKind, status *InvoiceStatus, clientId *int) ([]Invoice, error) {
	var invoices []Invoice
	query := db.Preload("Client").Order("issue_date DESC, id DESC")
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if clientId != nil {
		query = query.Where("client_id = ?", *clientId)
	}
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// ChangeInvoiceStatus applies a manual status transition. Payment driven
// transitions (paid, partially_paid) come from reconciliation instead.
func ChangeInvoiceStatus(db *gorm.DB, id int, next InvoiceStatus, actorId int) (*Invoice, error) {
	if !next.Valid() {
		return nil, utils.Validationf("invalid invoice status %q", next)
	}
	invoice, err := utils.FetchModel[Invoice](db, id)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.CanTransitionTo(next) {
		return nil, utils.Statef("invoice %s cannot go from %s to %s", invoice.FullNumber(), invoice.Status, next)
	}
	old := invoice.Status
	invoice.Status = next
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(invoice).Update("status", next).Error; err != nil {
			return err
		}
		LogAudit(tx, "invoice", invoice.ID, invoice.FullNumber(), "status_changed", fmt.Sprintf("%s -> %s", old, next), actorId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}
