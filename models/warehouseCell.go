package models

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Address   string    `gorm:"size:500" json:"address"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Cells []WarehouseCell `json:"cells,omitempty"`
}

// WarehouseCell is a storage location inside a warehouse. Stock with a
// nil cell id sits in the receiving bucket of the warehouse and gets a
// cell only during NIR verification.
type WarehouseCell struct {
	ID          int       `gorm:"primary_key" json:"id"`
	WarehouseId int       `gorm:"uniqueIndex:idx_cell_code;not null" json:"warehouse_id"`
	Warehouse   *Warehouse `json:"warehouse,omitempty"`
	Code        string    `gorm:"size:50;uniqueIndex:idx_cell_code;not null" json:"code"`
	Barcode     string    `gorm:"size:100" json:"barcode"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewWarehouse struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

func CreateWarehouse(db *gorm.DB, input *NewWarehouse) (*Warehouse, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Warehouse](db, "name", input.Name, 0); err != nil {
		return nil, utils.Validationf("warehouse %s already exists", input.Name)
	}
	warehouse := Warehouse{Name: input.Name, Address: input.Address, IsActive: utils.NewTrue()}
	if err := db.Create(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func GetWarehouse(db *gorm.DB, id int) (*Warehouse, error) {
	return utils.FetchModel[Warehouse](db, id, "Cells")
}

type NewWarehouseCell struct {
	WarehouseId int    `json:"warehouse_id" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Barcode     string `json:"barcode"`
	Description string `json:"description"`
}

func CreateWarehouseCell(db *gorm.DB, input *NewWarehouseCell) (*WarehouseCell, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Warehouse](db, input.WarehouseId); err != nil {
		return nil, utils.Resourcef("warehouse %d not found", input.WarehouseId)
	}
	var existing int64
	err := db.Model(&WarehouseCell{}).
		Where("warehouse_id = ? AND code = ?", input.WarehouseId, input.Code).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, utils.Validationf("cell %s already exists in warehouse %d", input.Code, input.WarehouseId)
	}
	cell := WarehouseCell{
		WarehouseId: input.WarehouseId,
		Code:        input.Code,
		Barcode:     input.Barcode,
		Description: input.Description,
	}
	if err := db.Create(&cell).Error; err != nil {
		return nil, err
	}
	return &cell, nil
}

// DeleteWarehouseCell refuses to drop a cell that still holds stock.
func DeleteWarehouseCell(db *gorm.DB, id int) error {
	cell, err := utils.FetchModel[WarehouseCell](db, id)
	if err != nil {
		return err
	}
	var stocked int64
	if err := db.Model(&ProductStock{}).Where("cell_id = ?", id).Count(&stocked).Error; err != nil {
		return err
	}
	if stocked > 0 {
		return utils.Resourcef("cell %s still holds stock", cell.Code)
	}
	return db.Delete(cell).Error
}

func ListWarehouseCells(db *gorm.DB, warehouseId int) ([]WarehouseCell, error) {
	var cells []WarehouseCell
	err := db.Where("warehouse_id = ?", warehouseId).Order("code ASC").Find(&cells).Error
	if err != nil {
		return nil, err
	}
	return cells, nil
}
