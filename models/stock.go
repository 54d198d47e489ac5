package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductStock is the quantity of one product code in one location.
// A nil CellId means the warehouse receiving bucket. Cost is the
// weighted average acquisition cost of the bucket.
type ProductStock struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Code        string          `gorm:"size:100;not null;uniqueIndex:idx_stock_location" json:"code"`
	Name        string          `gorm:"size:500" json:"name"`
	WarehouseId int             `gorm:"not null;uniqueIndex:idx_stock_location" json:"warehouse_id"`
	CellId      *int            `gorm:"uniqueIndex:idx_stock_location" json:"cell_id"`
	Cell        *WarehouseCell  `json:"cell,omitempty"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	Cost        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *ProductStock) Value() decimal.Decimal {
	return s.Quantity.Mul(s.Cost).Round(2)
}

// StockMovement is the append-only journal behind every stock change.
// Rows are only ever inserted, never updated or deleted.
type StockMovement struct {
	ID           int             `gorm:"primary_key" json:"id"`
	MovementType MovementType    `gorm:"size:20;not null;index" json:"movement_type"`
	Code         string          `gorm:"size:100;not null;index" json:"code"`
	Name         string          `gorm:"size:500" json:"name"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Cost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost"`
	WarehouseId  int             `gorm:"index" json:"warehouse_id"`
	FromCellId   *int            `json:"from_cell_id"`
	ToCellId     *int            `json:"to_cell_id"`
	ReceiptId    *int            `gorm:"index" json:"receipt_id"`
	OrderId      *int            `gorm:"index" json:"order_id"`
	PickingId    *int            `gorm:"index" json:"picking_id"`
	Reference    string          `gorm:"size:255" json:"reference"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	CreatedById  int             `json:"created_by_id"`
}

// MinimumStock is the alert threshold per product code.
type MinimumStock struct {
	ID       int             `gorm:"primary_key" json:"id"`
	Code     string          `gorm:"size:100;uniqueIndex;not null" json:"code"`
	Name     string          `gorm:"size:500" json:"name"`
	Quantity decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
}

// StockByCode aggregates quantity over all locations of a code.
func StockByCode(db *gorm.DB, code string, warehouseId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := db.Model(&ProductStock{}).
		Where("code = ? AND warehouse_id = ?", code, warehouseId).
		Select("SUM(quantity)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ListStock lists stock buckets, optionally filtered by code prefix.
func ListStock(db *gorm.DB, warehouseId int, codePrefix *string) ([]ProductStock, error) {
	var stocks []ProductStock
	query := db.Preload("Cell").
		Where("warehouse_id = ?", warehouseId).
		Order("code ASC, cell_id ASC")
	if codePrefix != nil && *codePrefix != "" {
		query = query.Where("code LIKE ?", *codePrefix+"%")
	}
	if err := query.Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}

// ListMovements pages through the stock journal for a code.
func ListMovements(db *gorm.DB, code *string, movementType *MovementType, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	var movements []StockMovement
	query := db.Order("created_at DESC, id DESC").Limit(limit)
	if code != nil && *code != "" {
		query = query.Where("code = ?", *code)
	}
	if movementType != nil {
		query = query.Where("movement_type = ?", *movementType)
	}
	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// BelowMinimumReport lists codes whose aggregate quantity fell under
// the configured threshold.
type MinimumStockAlert struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Minimum  decimal.Decimal `json:"minimum"`
}

func BelowMinimumReport(db *gorm.DB, warehouseId int) ([]MinimumStockAlert, error) {
	var minimums []MinimumStock
	if err := db.Find(&minimums).Error; err != nil {
		return nil, err
	}
	var alerts []MinimumStockAlert
	for _, m := range minimums {
		quantity, err := StockByCode(db, m.Code, warehouseId)
		if err != nil {
			return nil, err
		}
		if quantity.LessThan(m.Quantity) {
			alerts = append(alerts, MinimumStockAlert{
				Code:     m.Code,
				Name:     m.Name,
				Quantity: quantity,
				Minimum:  m.Quantity,
			})
		}
	}
	return alerts, nil
}
