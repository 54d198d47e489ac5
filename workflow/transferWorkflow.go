package workflow

import (
	"fmt"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransferStock moves a quantity between two cells (or the receiving
// bucket) of a warehouse. The source must fully cover the quantity;
// the destination cost blends in at the moving bucket's cost.
func TransferStock(db *gorm.DB, code string, warehouseId int, fromCellId, toCellId *int, quantity decimal.Decimal, actorId int) error {
	if !quantity.IsPositive() {
		return utils.Validationf("transfer quantity must be positive")
	}
	if cellRefEqual(fromCellId, toCellId) {
		return utils.Validationf("source and destination are the same location")
	}
	for _, cellId := range []*int{fromCellId, toCellId} {
		if cellId == nil {
			continue
		}
		cell, err := utils.FetchModel[models.WarehouseCell](db, *cellId)
		if err != nil {
			return err
		}
		if cell.WarehouseId != warehouseId {
			return utils.Validationf("cell %s belongs to another warehouse", cell.Code)
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		cost, err := removeStock(tx, code, warehouseId, fromCellId, quantity)
		if err != nil {
			return err
		}
		if _, err := addStock(tx, code, "", warehouseId, toCellId, quantity, cost); err != nil {
			return err
		}
		movement := models.StockMovement{
			MovementType: models.MovementTypeTransfer,
			Code:         code,
			Quantity:     quantity,
			Cost:         cost,
			WarehouseId:  warehouseId,
			FromCellId:   fromCellId,
			ToCellId:     toCellId,
			CreatedById:  actorId,
		}
		return recordMovement(tx, &movement)
	})
}

func cellRefEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// RemapProductCode renames a supplier code to an internal one across
// stock, records the mapping for future imports, and merges buckets
// that collide. A merged bucket sums quantities but keeps the
// destination cost unchanged.
func RemapProductCode(db *gorm.DB, supplierCode, internalCode, description string, actorId int) error {
	if supplierCode == internalCode {
		return utils.Validationf("supplier and internal code are identical")
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := models.UpsertCodeMapping(tx, supplierCode, internalCode, description, actorId); err != nil {
			return err
		}
		// Mappings that resolved into the old code are re-pointed so
		// their aliases keep resolving in a single hop.
		err := tx.Model(&models.CodeMapping{}).
			Where("internal_code = ? AND supplier_code <> ?", supplierCode, internalCode).
			Update("internal_code", internalCode).Error
		if err != nil {
			return err
		}

		var sources []models.ProductStock
		if err := lockForUpdate(tx).Where("code = ?", supplierCode).Find(&sources).Error; err != nil {
			return err
		}
		for i := range sources {
			source := &sources[i]
			var target models.ProductStock
			query := lockForUpdate(tx).Where("code = ? AND warehouse_id = ?", internalCode, source.WarehouseId)
			if source.CellId == nil {
				query = query.Where("cell_id IS NULL")
			} else {
				query = query.Where("cell_id = ?", *source.CellId)
			}
			err := query.First(&target).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				if err := tx.Model(source).Update("code", internalCode).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				target.Quantity = target.Quantity.Add(source.Quantity)
				if err := tx.Save(&target).Error; err != nil {
					return err
				}
				if err := tx.Delete(source).Error; err != nil {
					return err
				}
			}
			movement := models.StockMovement{
				MovementType: models.MovementTypeAdjustment,
				Code:         internalCode,
				Quantity:     source.Quantity,
				Cost:         source.Cost,
				WarehouseId:  source.WarehouseId,
				FromCellId:   source.CellId,
				ToCellId:     source.CellId,
				Reference:    fmt.Sprintf("remap %s -> %s", supplierCode, internalCode),
				CreatedById:  actorId,
			}
			if err := recordMovement(tx, &movement); err != nil {
				return err
			}
		}

		// Document data follows the rename; journaled movements keep
		// the code they were recorded under.
		err = tx.Model(&models.GoodsReceiptLine{}).
			Where("code = ?", supplierCode).Update("code", internalCode).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.MinimumStock{}).
			Where("code = ?", supplierCode).Update("code", internalCode).Error
		if err != nil {
			return err
		}

		models.LogAudit(tx, "code_mapping", 0, supplierCode, "remapped", internalCode, actorId)
		return nil
	})
}
