package workflow

import (
	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate applies SELECT ... FOR UPDATE on dialects that support
// it. SQLite serializes writers anyway, so the clause is skipped there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// weightedAverageCost blends an existing bucket with an incoming lot.
// A zero combined quantity keeps the incoming cost.
func weightedAverageCost(existingQty, existingCost, incomingQty, incomingCost decimal.Decimal) decimal.Decimal {
	combined := existingQty.Add(incomingQty)
	if !combined.IsPositive() {
		return incomingCost
	}
	existingValue := existingQty.Mul(existingCost)
	incomingValue := incomingQty.Mul(incomingCost)
	return existingValue.Add(incomingValue).Div(combined).Round(4)
}

// addStock merges a quantity into the (code, warehouse, cell) bucket,
// recomputing the bucket cost as a weighted average.
func addStock(tx *gorm.DB, code, name string, warehouseId int, cellId *int, qty, cost decimal.Decimal) (*models.ProductStock, error) {
	if !qty.IsPositive() {
		return nil, utils.Validationf("stock increase for %s must be positive", code)
	}
	var stock models.ProductStock
	query := lockForUpdate(tx).Where("code = ? AND warehouse_id = ?", code, warehouseId)
	if cellId == nil {
		query = query.Where("cell_id IS NULL")
	} else {
		query = query.Where("cell_id = ?", *cellId)
	}
	err := query.First(&stock).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		stock = models.ProductStock{
			Code:        code,
			Name:        name,
			WarehouseId: warehouseId,
			CellId:      cellId,
			Quantity:    qty,
			Cost:        cost,
		}
		if err := tx.Create(&stock).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		stock.Cost = weightedAverageCost(stock.Quantity, stock.Cost, qty, cost)
		stock.Quantity = stock.Quantity.Add(qty)
		if name != "" {
			stock.Name = name
		}
		if err := tx.Save(&stock).Error; err != nil {
			return nil, err
		}
	}
	return &stock, nil
}

// removeStock takes a quantity out of a bucket and fails loudly when
// the bucket cannot cover it, reporting what is actually available.
// The emptied bucket row is deleted. Returns the bucket cost at the
// moment of removal.
func removeStock(tx *gorm.DB, code string, warehouseId int, cellId *int, qty decimal.Decimal) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, utils.Validationf("stock decrease for %s must be positive", code)
	}
	var stock models.ProductStock
	query := lockForUpdate(tx).Where("code = ? AND warehouse_id = ?", code, warehouseId)
	if cellId == nil {
		query = query.Where("cell_id IS NULL")
	} else {
		query = query.Where("cell_id = ?", *cellId)
	}
	err := query.First(&stock).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, utils.Statef("no stock of %s at the requested location, available 0", code)
		}
		return decimal.Zero, err
	}
	if stock.Quantity.LessThan(qty) {
		return decimal.Zero, utils.Statef("insufficient stock of %s, available %s requested %s",
			code, stock.Quantity.String(), qty.String())
	}
	cost := stock.Cost
	stock.Quantity = stock.Quantity.Sub(qty)
	if stock.Quantity.IsZero() {
		if err := tx.Delete(&stock).Error; err != nil {
			return decimal.Zero, err
		}
		return cost, nil
	}
	if err := tx.Save(&stock).Error; err != nil {
		return decimal.Zero, err
	}
	return cost, nil
}

// removeStockFloored decrements a bucket but never below zero. Receipt
// verification uses it on the receiving bucket, where over-counting is
// recorded as a discrepancy instead of rejected. Returns the quantity
// actually removed and the bucket cost.
func removeStockFloored(tx *gorm.DB, code string, warehouseId int, cellId *int, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, decimal.Zero, utils.Validationf("stock decrease for %s must be positive", code)
	}
	var stock models.ProductStock
	query := lockForUpdate(tx).Where("code = ? AND warehouse_id = ?", code, warehouseId)
	if cellId == nil {
		query = query.Where("cell_id IS NULL")
	} else {
		query = query.Where("cell_id = ?", *cellId)
	}
	err := query.First(&stock).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, decimal.Zero, nil
		}
		return decimal.Zero, decimal.Zero, err
	}
	removed := qty
	if stock.Quantity.LessThan(qty) {
		removed = stock.Quantity
	}
	cost := stock.Cost
	stock.Quantity = stock.Quantity.Sub(removed)
	if stock.Quantity.IsZero() {
		if err := tx.Delete(&stock).Error; err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return removed, cost, nil
	}
	if err := tx.Save(&stock).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return removed, cost, nil
}

func recordMovement(tx *gorm.DB, movement *models.StockMovement) error {
	return tx.Create(movement).Error
}
