package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Role{}, &User{},
		&Client{}, &Supplier{},
		&Quote{}, &QuoteLine{},
		&Order{}, &OrderLine{},
		&Invoice{}, &InvoiceLine{},
		&IncomingPayment{},
		&Warehouse{}, &WarehouseCell{},
		&GoodsReceipt{}, &GoodsReceiptLine{}, &ReceiptVerification{},
		&ProductStock{}, &StockMovement{}, &MinimumStock{}, &CodeMapping{},
		&Picking{}, &PickingLine{}, &DeliveryNote{},
		&ActivityTemplate{}, &ActivityTemplateLine{}, &Activity{},
		&AuditLog{}, &ExchangeRate{}, &Setting{},
	)
}
