package workflow

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/utils"
	"gorm.io/gorm"
)

// GeneratePicking builds the collection worklist for an order. Only one
// picking may be in flight per order. Each line suggests the cell that
// currently holds the most of its code.
func GeneratePicking(db *gorm.DB, orderId, warehouseId, actorId int) (*models.Picking, error) {
	order, err := models.GetOrder(db, orderId)
	if err != nil {
		return nil, err
	}
	pickable := false
	for _, status := range models.PickableOrderStatuses {
		if order.Status == status {
			pickable = true
			break
		}
	}
	if !pickable {
		return nil, utils.Statef("order %s is %s, pickings need a confirmed, production or ready order",
			order.Number, order.Status)
	}
	active, err := models.ActivePickingForOrder(db, orderId)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, utils.Statef("order %s already has picking %s in %s", order.Number, active.Number, active.Status)
	}
	if err := utils.ValidateResourceId[models.Warehouse](db, warehouseId); err != nil {
		return nil, utils.Resourcef("warehouse %d not found", warehouseId)
	}

	picking := models.Picking{
		Number:      "PICK-" + time.Now().UTC().Format("20060102-150405"),
		OrderId:     orderId,
		WarehouseId: warehouseId,
		Status:      models.PickingStatusNew,
		CreatedById: actorId,
	}
	for i, line := range order.Lines {
		if line.Code == "" {
			continue
		}
		suggested, err := bestCellFor(db, line.Code, warehouseId)
		if err != nil {
			return nil, err
		}
		available, err := models.StockByCode(db, line.Code, warehouseId)
		if err != nil {
			return nil, err
		}
		picking.Lines = append(picking.Lines, models.PickingLine{
			Position:        i,
			Code:            line.Code,
			Name:            line.Name,
			Quantity:        line.Quantity,
			AvailableAtGen:  available,
			SuggestedCellId: suggested,
			Picked:          utils.NewFalse(),
		})
	}
	if err := db.Create(&picking).Error; err != nil {
		return nil, err
	}
	return &picking, nil
}

// bestCellFor picks the cell holding the largest quantity of a code,
// nil when only the receiving bucket has it.
func bestCellFor(db *gorm.DB, code string, warehouseId int) (*int, error) {
	var stocks []models.ProductStock
	err := db.Where("code = ? AND warehouse_id = ? AND cell_id IS NOT NULL", code, warehouseId).
		Order("quantity DESC").
		Limit(1).
		Find(&stocks).Error
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, nil
	}
	return stocks[0].CellId, nil
}

func StartPicking(db *gorm.DB, pickingId, actorId int) (*models.Picking, error) {
	picking, err := models.GetPicking(db, pickingId)
	if err != nil {
		return nil, err
	}
	if !picking.Status.CanTransitionTo(models.PickingStatusInProgress) {
		return nil, utils.Statef("picking %s is %s, only new pickings can be started", picking.Number, picking.Status)
	}
	now := time.Now().UTC()
	err = db.Model(picking).Updates(map[string]interface{}{
		"status":     models.PickingStatusInProgress,
		"started_at": now,
	}).Error
	if err != nil {
		return nil, err
	}
	picking.Status = models.PickingStatusInProgress
	picking.StartedAt = &now
	return picking, nil
}

// PickLine collects one line from a cell. The stock at the picked cell
// must cover the whole line quantity, partial picks are rejected. The
// picking completes itself when the last line is collected.
func PickLine(db *gorm.DB, pickingId, lineId int, pickedCellId *int, actorId int) (*models.Picking, error) {
	picking, err := models.GetPicking(db, pickingId)
	if err != nil {
		return nil, err
	}
	if picking.Status != models.PickingStatusInProgress {
		return nil, utils.Statef("picking %s is %s, lines can only be picked in progress", picking.Number, picking.Status)
	}
	var line *models.PickingLine
	for i := range picking.Lines {
		if picking.Lines[i].ID == lineId {
			line = &picking.Lines[i]
			break
		}
	}
	if line == nil {
		return nil, utils.Resourcef("line %d does not belong to picking %s", lineId, picking.Number)
	}
	if line.IsPicked() {
		return nil, utils.Statef("line %d of picking %s is already picked", lineId, picking.Number)
	}
	cellId := pickedCellId
	if cellId == nil {
		cellId = line.SuggestedCellId
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		cost, err := removeStock(tx, line.Code, picking.WarehouseId, cellId, line.Quantity)
		if err != nil {
			return err
		}
		movement := models.StockMovement{
			MovementType: models.MovementTypeOrderExit,
			Code:         line.Code,
			Name:         line.Name,
			Quantity:     line.Quantity,
			Cost:         cost,
			WarehouseId:  picking.WarehouseId,
			FromCellId:   cellId,
			OrderId:      &picking.OrderId,
			PickingId:    &picking.ID,
			Reference:    picking.Number,
			CreatedById:  actorId,
		}
		if err := recordMovement(tx, &movement); err != nil {
			return err
		}

		now := time.Now().UTC()
		err = tx.Model(line).Updates(map[string]interface{}{
			"picked":         true,
			"picked_cell_id": cellId,
			"picked_at":      now,
			"picked_by_id":   actorId,
		}).Error
		if err != nil {
			return err
		}
		line.Picked = utils.NewTrue()
		line.PickedCellId = cellId
		line.PickedAt = &now

		if picking.AllPicked() {
			err = tx.Model(picking).Updates(map[string]interface{}{
				"status":       models.PickingStatusComplete,
				"completed_at": now,
			}).Error
			if err != nil {
				return err
			}
			picking.Status = models.PickingStatusComplete
			picking.CompletedAt = &now
			models.LogAudit(tx, "picking", picking.ID, picking.Number, "completed", "", actorId)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picking, nil
}

// GenerateDeliveryNote closes a completed picking: the note is issued
// dated today, the picking goes to delivered and the order follows.
func GenerateDeliveryNote(db *gorm.DB, pickingId, actorId int) (*models.DeliveryNote, error) {
	picking, err := models.GetPicking(db, pickingId)
	if err != nil {
		return nil, err
	}
	if picking.Status != models.PickingStatusComplete {
		return nil, utils.Statef("picking %s is %s, delivery notes need a complete picking", picking.Number, picking.Status)
	}
	var existing int64
	if err := db.Model(&models.DeliveryNote{}).Where("picking_id = ?", pickingId).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, utils.Statef("picking %s already has a delivery note", picking.Number)
	}

	now := time.Now().UTC()
	note := models.DeliveryNote{
		Number:       "NL-" + now.Format("20060102-150405"),
		PickingId:    picking.ID,
		OrderId:      picking.OrderId,
		DeliveryDate: now,
		CreatedById:  actorId,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&note).Error; err != nil {
			return err
		}
		if err := tx.Model(picking).Update("status", models.PickingStatusDelivered).Error; err != nil {
			return err
		}
		picking.Status = models.PickingStatusDelivered

		order, err := utils.FetchModel[models.Order](tx, picking.OrderId)
		if err != nil {
			return err
		}
		if order.Status.CanTransitionTo(models.OrderStatusDelivered) {
			err := tx.Model(order).Updates(map[string]interface{}{
				"status":       models.OrderStatusDelivered,
				"delivered_at": now,
			}).Error
			if err != nil {
				return err
			}
			if err := models.ApplyActivityTemplates(tx, order.ID, models.TriggerOrderDelivered); err != nil {
				return err
			}
		}
		models.LogAudit(tx, "delivery_note", note.ID, note.Number, "issued", picking.Number, actorId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}
