package workflow

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ConfirmReceiptBooked posts the scriptic reception: the announced
// quantities enter the warehouse receiving bucket at purchase price and
// the document moves to under_verification for physical counting.
func ConfirmReceiptBooked(db *gorm.DB, receiptId, actorId int) (*models.GoodsReceipt, error) {
	receipt, err := models.GetGoodsReceipt(db, receiptId)
	if err != nil {
		return nil, err
	}
	if receipt.Status != models.ReceiptStatusDraft && receipt.Status != models.ReceiptStatusBooked {
		return nil, utils.Statef("receipt %s is %s, only draft or booked receipts can be confirmed",
			receipt.Number, receipt.Status)
	}
	if len(receipt.Lines) == 0 {
		return nil, utils.Validationf("receipt %s has no lines", receipt.Number)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range receipt.Lines {
			line := &receipt.Lines[i]
			if _, err := addStock(tx, line.Code, line.Name, receipt.WarehouseId, nil, line.Quantity, line.PurchasePrice); err != nil {
				return err
			}
			movement := models.StockMovement{
				MovementType: models.MovementTypeReceipt,
				Code:         line.Code,
				Name:         line.Name,
				Quantity:     line.Quantity,
				Cost:         line.PurchasePrice,
				WarehouseId:  receipt.WarehouseId,
				ReceiptId:    &receipt.ID,
				Reference:    receipt.Number,
				CreatedById:  actorId,
			}
			if err := recordMovement(tx, &movement); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		err := tx.Model(receipt).Updates(map[string]interface{}{
			"status":       models.ReceiptStatusUnderVerification,
			"confirmed_at": now,
		}).Error
		if err != nil {
			return err
		}
		receipt.Status = models.ReceiptStatusUnderVerification
		receipt.ConfirmedAt = &now
		models.LogAudit(tx, "goods_receipt", receipt.ID, receipt.Number, "confirmed", "", actorId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// VerificationResult reports where a counting act left the document.
type VerificationResult struct {
	Receipt       *models.GoodsReceipt `json:"receipt"`
	LineVerified  bool                 `json:"line_verified"`
	LineRemaining decimal.Decimal      `json:"line_remaining"`
	Discrepancy   bool                 `json:"discrepancy"`
	LinesVerified int                  `json:"lines_verified"`
	LinesTotal    int                  `json:"lines_total"`
}

// VerifyReceiptLine records a physical count against a receipt line.
// When a cell is given the counted pieces move out of the receiving
// bucket into that cell; the receiving bucket is floored at zero so an
// over-count becomes a discrepancy, not an error. The document rolls to
// verified once every line reaches its expected quantity.
func VerifyReceiptLine(db *gorm.DB, receiptId, lineId int, quantity decimal.Decimal, cellId *int, actorId int) (*VerificationResult, error) {
	if !quantity.IsPositive() {
		return nil, utils.Validationf("verified quantity must be positive")
	}
	receipt, err := models.GetGoodsReceipt(db, receiptId)
	if err != nil {
		return nil, err
	}
	if receipt.Status != models.ReceiptStatusUnderVerification {
		return nil, utils.Statef("receipt %s is %s, lines can only be verified under verification",
			receipt.Number, receipt.Status)
	}
	var line *models.GoodsReceiptLine
	for i := range receipt.Lines {
		if receipt.Lines[i].ID == lineId {
			line = &receipt.Lines[i]
			break
		}
	}
	if line == nil {
		return nil, utils.Resourcef("line %d does not belong to receipt %s", lineId, receipt.Number)
	}
	if cellId != nil {
		cell, err := utils.FetchModel[models.WarehouseCell](db, *cellId)
		if err != nil {
			return nil, err
		}
		if cell.WarehouseId != receipt.WarehouseId {
			return nil, utils.Validationf("cell %s belongs to another warehouse", cell.Code)
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		verification := models.ReceiptVerification{
			ReceiptLineId: line.ID,
			Quantity:      quantity,
			CellId:        cellId,
			VerifiedById:  actorId,
		}
		if err := tx.Create(&verification).Error; err != nil {
			return err
		}
		line.Verifications = append(line.Verifications, verification)

		if cellId != nil {
			if _, _, err := removeStockFloored(tx, line.Code, receipt.WarehouseId, nil, quantity); err != nil {
				return err
			}
			if _, err := addStock(tx, line.Code, line.Name, receipt.WarehouseId, cellId, quantity, line.PurchasePrice); err != nil {
				return err
			}
			movement := models.StockMovement{
				MovementType: models.MovementTypeTransfer,
				Code:         line.Code,
				Name:         line.Name,
				Quantity:     quantity,
				Cost:         line.PurchasePrice,
				WarehouseId:  receipt.WarehouseId,
				ToCellId:     cellId,
				ReceiptId:    &receipt.ID,
				Reference:    receipt.Number,
				CreatedById:  actorId,
			}
			if err := recordMovement(tx, &movement); err != nil {
				return err
			}
		}

		if receipt.AllLinesVerified() {
			now := time.Now().UTC()
			err := tx.Model(receipt).Updates(map[string]interface{}{
				"status":      models.ReceiptStatusVerified,
				"verified_at": now,
			}).Error
			if err != nil {
				return err
			}
			receipt.Status = models.ReceiptStatusVerified
			receipt.VerifiedAt = &now
			models.LogAudit(tx, "goods_receipt", receipt.ID, receipt.Number, "verified", "", actorId)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	verified, total := receipt.VerificationProgress()
	return &VerificationResult{
		Receipt:       receipt,
		LineVerified:  line.IsVerified(),
		LineRemaining: line.Remaining(),
		Discrepancy:   line.HasDiscrepancy(),
		LinesVerified: verified,
		LinesTotal:    total,
	}, nil
}
