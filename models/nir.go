package models

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GoodsReceipt is a NIR document: goods announced by a supplier invoice,
// received scriptically and then verified piece by piece against cells.
type GoodsReceipt struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Number          string          `gorm:"size:50;uniqueIndex;not null" json:"number"`
	SupplierId      int             `gorm:"index;not null" json:"supplier_id"`
	Supplier        *Supplier       `json:"supplier,omitempty"`
	WarehouseId     int             `gorm:"index;not null" json:"warehouse_id"`
	Warehouse       *Warehouse      `json:"warehouse,omitempty"`
	Status          ReceiptStatus   `gorm:"size:20;not null;default:draft;index" json:"status"`
	ReceiptDate     time.Time       `gorm:"not null" json:"receipt_date"`
	SupplierInvoice string          `gorm:"size:100" json:"supplier_invoice"`
	TotalValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_value"`
	Notes           string          `gorm:"type:text" json:"notes"`
	ConfirmedAt     *time.Time      `json:"confirmed_at"`
	VerifiedAt      *time.Time      `json:"verified_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CreatedById     int             `gorm:"index" json:"created_by_id"`

	Lines []GoodsReceiptLine `gorm:"foreignKey:ReceiptId;constraint:OnDelete:CASCADE" json:"lines"`
}

type GoodsReceiptLine struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ReceiptId     int             `gorm:"index;not null" json:"receipt_id"`
	Position      int             `gorm:"default:0" json:"position"`
	Code          string          `gorm:"size:100;not null" json:"code"`
	Name          string          `gorm:"size:500" json:"name"`
	Unit          string          `gorm:"size:20;default:pcs" json:"unit"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`

	Verifications []ReceiptVerification `gorm:"foreignKey:ReceiptLineId;constraint:OnDelete:CASCADE" json:"verifications,omitempty"`
}

// ReceiptVerification is one physical counting act against a receipt
// line, optionally placing the counted pieces into a cell.
type ReceiptVerification struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ReceiptLineId int             `gorm:"index;not null" json:"receipt_line_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	CellId        *int            `gorm:"index" json:"cell_id"`
	Cell          *WarehouseCell  `json:"cell,omitempty"`
	VerifiedAt    time.Time       `gorm:"autoCreateTime" json:"verified_at"`
	VerifiedById  int             `json:"verified_by_id"`
}

func (l *GoodsReceiptLine) LineValue() decimal.Decimal {
	return l.PurchasePrice.Mul(l.Quantity).Round(2)
}

// VerifiedQuantity sums all counting acts recorded for the line.
func (l *GoodsReceiptLine) VerifiedQuantity() decimal.Decimal {
	total := decimal.Zero
	for i := range l.Verifications {
		total = total.Add(l.Verifications[i].Quantity)
	}
	return total
}

func (l *GoodsReceiptLine) IsVerified() bool {
	return l.VerifiedQuantity().GreaterThanOrEqual(l.Quantity)
}

func (l *GoodsReceiptLine) Remaining() decimal.Decimal {
	remaining := l.Quantity.Sub(l.VerifiedQuantity())
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// HasDiscrepancy reports over-counting. Informational only, it never
// blocks verification.
func (l *GoodsReceiptLine) HasDiscrepancy() bool {
	return l.VerifiedQuantity().GreaterThan(l.Quantity)
}

func (r *GoodsReceipt) Recalculate() {
	total := decimal.Zero
	for i := range r.Lines {
		total = total.Add(r.Lines[i].LineValue())
	}
	r.TotalValue = total
}

// VerificationProgress counts fully verified lines against the total.
func (r *GoodsReceipt) VerificationProgress() (verified, total int) {
	total = len(r.Lines)
	for i := range r.Lines {
		if r.Lines[i].IsVerified() {
			verified++
		}
	}
	return verified, total
}

func (r *GoodsReceipt) AllLinesVerified() bool {
	verified, total := r.VerificationProgress()
	return total > 0 && verified == total
}

type NewGoodsReceiptLine struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
}

type NewGoodsReceipt struct {
	SupplierId      int                   `json:"supplier_id" binding:"required"`
	WarehouseId     int                   `json:"warehouse_id" binding:"required"`
	SupplierInvoice string                `json:"supplier_invoice"`
	Notes           string                `json:"notes"`
	Lines           []NewGoodsReceiptLine `json:"lines" binding:"required"`
}

func CreateGoodsReceipt(db *gorm.DB, input *NewGoodsReceipt, createdById int) (*GoodsReceipt, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Supplier](db, input.SupplierId); err != nil {
		return nil, utils.Resourcef("supplier %d not found", input.SupplierId)
	}
	if err := utils.ValidateResourceId[Warehouse](db, input.WarehouseId); err != nil {
		return nil, utils.Resourcef("warehouse %d not found", input.WarehouseId)
	}
	for _, l := range input.Lines {
		if !l.Quantity.IsPositive() {
			return nil, utils.Validationf("quantity for %s must be positive", l.Code)
		}
	}

	now := time.Now().UTC()
	receipt := GoodsReceipt{
		Number:          "NIR-" + now.Format("20060102-150405"),
		SupplierId:      input.SupplierId,
		WarehouseId:     input.WarehouseId,
		Status:          ReceiptStatusDraft,
		ReceiptDate:     now,
		SupplierInvoice: input.SupplierInvoice,
		Notes:           input.Notes,
		CreatedById:     createdById,
	}
	for i, l := range input.Lines {
		unit := l.Unit
		if unit == "" {
			unit = "pcs"
		}
		code, err := ResolveCode(db, l.Code)
		if err != nil {
			return nil, err
		}
		receipt.Lines = append(receipt.Lines, GoodsReceiptLine{
			Position:      i,
			Code:          code,
			Name:          l.Name,
			Unit:          unit,
			Quantity:      l.Quantity,
			PurchasePrice: l.PurchasePrice,
		})
	}
	receipt.Recalculate()

	if err := db.Create(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func GetGoodsReceipt(db *gorm.DB, id int) (*GoodsReceipt, error) {
	return utils.FetchModel[GoodsReceipt](db, id, "Lines", "Lines.Verifications", "Supplier", "Warehouse")
}

func ListGoodsReceipts(db *gorm.DB, status *ReceiptStatus) ([]GoodsReceipt, error) {
	var receipts []GoodsReceipt
	query := db.Preload("Supplier").Order("receipt_date DESC, id DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}
