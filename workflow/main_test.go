package workflow_test

import (
	"testing"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database per test. The pool is
// capped at one connection so every query sees the same memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createTestClient(t *testing.T, db *gorm.DB, name, taxId string) *models.Client {
	t.Helper()
	client := models.Client{Name: name, Kind: models.ClientKindCompany, TaxId: taxId}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client %s: %v", name, err)
	}
	return &client
}

func createTestInvoice(t *testing.T, db *gorm.DB, kind models.InvoiceKind, number int, clientId int, total float64) *models.Invoice {
	t.Helper()
	totalDec := decimal.NewFromFloat(total)
	vat := totalDec.Mul(decimal.NewFromInt(19)).Div(decimal.NewFromInt(119)).Round(2)
	invoice := models.Invoice{
		Kind:       kind,
		Series:     models.SeriesFor(kind),
		Number:     number,
		ClientId:   clientId,
		Status:     models.InvoiceStatusIssued,
		IssueDate:  time.Now().UTC().AddDate(0, 0, -7),
		Subtotal:   totalDec.Sub(vat),
		VatPercent: decimal.NewFromInt(19),
		VatValue:   vat,
		Total:      totalDec,
		Currency:   "RON",
	}
	if err := db.Create(&invoice).Error; err != nil {
		t.Fatalf("create invoice %s-%06d: %v", invoice.Series, number, err)
	}
	return &invoice
}

func createTestPayment(t *testing.T, db *gorm.DB, bankRef, description, payerName string, amount float64, taxId string) *models.IncomingPayment {
	t.Helper()
	payment := models.IncomingPayment{
		BankRef:     bankRef,
		PaymentDate: time.Now().UTC(),
		Amount:      decimal.NewFromFloat(amount),
		Currency:    "RON",
		Description: description,
		PayerName:   payerName,
		PayerTaxId:  taxId,
		Source:      models.PaymentSourceCSV,
		Status:      models.PaymentStatusUnreconciled,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment %s: %v", bankRef, err)
	}
	return &payment
}

func createTestWarehouse(t *testing.T, db *gorm.DB) *models.Warehouse {
	t.Helper()
	active := true
	warehouse := models.Warehouse{Name: "Depozit test", IsActive: &active}
	if err := db.Create(&warehouse).Error; err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	return &warehouse
}

func createTestCell(t *testing.T, db *gorm.DB, warehouseId int, code string) *models.WarehouseCell {
	t.Helper()
	cell := models.WarehouseCell{WarehouseId: warehouseId, Code: code}
	if err := db.Create(&cell).Error; err != nil {
		t.Fatalf("create cell %s: %v", code, err)
	}
	return &cell
}

func createTestSupplier(t *testing.T, db *gorm.DB) *models.Supplier {
	t.Helper()
	supplier := models.Supplier{Name: "Furnizor test", TaxId: "99887766"}
	if err := db.Create(&supplier).Error; err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	return &supplier
}
