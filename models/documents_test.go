package models_test

import (
	"testing"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func mustCreateClient(t *testing.T, db *gorm.DB, name string) *models.Client {
	t.Helper()
	client, err := models.CreateClient(db, &models.NewClient{Name: name})
	if err != nil {
		t.Fatalf("create client %s: %v", name, err)
	}
	return client
}

func TestCreateQuoteComputesTotals(t *testing.T) {
	db := newTestDB(t)
	client := mustCreateClient(t, db, "PRODTHERM SRL")

	quote, err := models.CreateQuote(db, &models.NewQuote{
		ClientId: client.ID,
		Lines: []models.NewQuoteLine{
			{Name: "Usa RF60 900x2100", Quantity: decimal.NewFromInt(2), FinalPrice: decimal.NewFromFloat(350.50),
				Parameters: models.LineParameters{{Name: "latime", Value: "900", Unit: "mm"}}},
			{Name: "Toc suplimentar", Quantity: decimal.NewFromInt(1), FinalPrice: decimal.NewFromInt(80)},
		},
	}, 1)
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if !quote.Subtotal.Equal(decimal.NewFromInt(781)) {
		t.Errorf("subtotal = %s, want 781", quote.Subtotal)
	}
	if !quote.VatValue.Equal(decimal.NewFromFloat(148.39)) {
		t.Errorf("vat = %s, want 148.39", quote.VatValue)
	}
	if !quote.Total.Equal(decimal.NewFromFloat(929.39)) {
		t.Errorf("total = %s, want 929.39", quote.Total)
	}

	// The typed line parameters survive the round trip through the column.
	reloaded, err := models.GetQuote(db, quote.ID)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if len(reloaded.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(reloaded.Lines))
	}
	params := reloaded.Lines[0].Parameters
	if len(params) != 1 || params[0].Name != "latime" || params[0].Value != "900" {
		t.Errorf("parameters after reload = %+v", params)
	}
}

func TestQuoteRevisionChain(t *testing.T) {
	db := newTestDB(t)
	client := mustCreateClient(t, db, "INSTAL GRUP SRL")
	quote, err := models.CreateQuote(db, &models.NewQuote{
		ClientId: client.ID,
		Lines:    []models.NewQuoteLine{{Name: "Usa", Quantity: decimal.NewFromInt(1), FinalPrice: decimal.NewFromInt(100)}},
	}, 1)
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}

	second, err := models.CreateQuoteRevision(db, quote.ID, 1)
	if err != nil {
		t.Fatalf("first revision: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("version = %d, want 2", second.Version)
	}
	if second.ParentId == nil || *second.ParentId != quote.ID {
		t.Errorf("parent = %v, want %d", second.ParentId, quote.ID)
	}
	if second.DisplayNumber() == second.Number {
		t.Errorf("revision display number %q misses the version suffix", second.DisplayNumber())
	}

	// Revising the revision stays anchored to the original chain.
	third, err := models.CreateQuoteRevision(db, second.ID, 1)
	if err != nil {
		t.Fatalf("second revision: %v", err)
	}
	if third.Version != 3 {
		t.Errorf("version = %d, want 3", third.Version)
	}
	if third.ParentId == nil || *third.ParentId != quote.ID {
		t.Errorf("parent = %v, want the root %d", third.ParentId, quote.ID)
	}
	if len(third.Lines) != 1 {
		t.Errorf("revision lines = %d, want 1", len(third.Lines))
	}
	if third.Number == second.Number {
		t.Errorf("revision numbers collide: %q", third.Number)
	}
}

func TestInvoiceNumberSequencesPerKind(t *testing.T) {
	db := newTestDB(t)
	client := mustCreateClient(t, db, "AGRO TERRA SRL")

	create := func(kind models.InvoiceKind) *models.Invoice {
		t.Helper()
		var invoice *models.Invoice
		err := db.Transaction(func(tx *gorm.DB) error {
			number, err := models.NextInvoiceNumber(tx, kind)
			if err != nil {
				return err
			}
			invoice = &models.Invoice{
				Kind: kind, Series: models.SeriesFor(kind), Number: number,
				ClientId: client.ID, Status: models.InvoiceStatusIssued,
			}
			return tx.Create(invoice).Error
		})
		if err != nil {
			t.Fatalf("create %s invoice: %v", kind, err)
		}
		return invoice
	}

	p1 := create(models.InvoiceKindProforma)
	p2 := create(models.InvoiceKindProforma)
	f1 := create(models.InvoiceKindFiscal)

	if p1.Number != 1 || p2.Number != 2 {
		t.Errorf("proforma numbers = %d, %d, want 1, 2", p1.Number, p2.Number)
	}
	// The fiscal sequence does not share the proforma counter.
	if f1.Number != 1 {
		t.Errorf("fiscal number = %d, want 1", f1.Number)
	}
	if p1.FullNumber() != "PF-000001" {
		t.Errorf("proforma full number = %s, want PF-000001", p1.FullNumber())
	}
	if f1.FullNumber() != "HSL-000001" {
		t.Errorf("fiscal full number = %s, want HSL-000001", f1.FullNumber())
	}
}

func TestClientTaxIdUnique(t *testing.T) {
	db := newTestDB(t)
	if _, err := models.CreateClient(db, &models.NewClient{Name: "PRIMUL SRL", TaxId: "12345678"}); err != nil {
		t.Fatalf("first client: %v", err)
	}
	if _, err := models.CreateClient(db, &models.NewClient{Name: "AL DOILEA SRL", TaxId: "12345678"}); err == nil {
		t.Fatal("duplicate tax id accepted")
	}
	// An empty tax id may repeat.
	if _, err := models.CreateClient(db, &models.NewClient{Name: "FARA CUI 1"}); err != nil {
		t.Fatalf("client without tax id: %v", err)
	}
	if _, err := models.CreateClient(db, &models.NewClient{Name: "FARA CUI 2"}); err != nil {
		t.Fatalf("second client without tax id: %v", err)
	}
}

func TestDeleteGuards(t *testing.T) {
	db := newTestDB(t)

	supplier, err := models.CreateSupplier(db, &models.NewSupplier{Name: "METALCOM SRL"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	warehouse, err := models.CreateWarehouse(db, &models.NewWarehouse{Name: "Depozit central"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	cell, err := models.CreateWarehouseCell(db, &models.NewWarehouseCell{WarehouseId: warehouse.ID, Code: "A1"})
	if err != nil {
		t.Fatalf("CreateWarehouseCell: %v", err)
	}

	receipt := models.GoodsReceipt{Number: "NIR-T1", SupplierId: supplier.ID, WarehouseId: warehouse.ID,
		Status: models.ReceiptStatusDraft}
	if err := db.Create(&receipt).Error; err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if err := models.DeleteSupplier(db, supplier.ID); err == nil {
		t.Error("supplier with receipts deleted")
	}

	stock := models.ProductStock{Code: "USA-90", WarehouseId: warehouse.ID, CellId: &cell.ID,
		Quantity: decimal.NewFromInt(2)}
	if err := db.Create(&stock).Error; err != nil {
		t.Fatalf("create stock: %v", err)
	}
	if err := models.DeleteWarehouseCell(db, cell.ID); err == nil {
		t.Error("cell holding stock deleted")
	}

	if err := db.Delete(&stock).Error; err != nil {
		t.Fatalf("clear stock: %v", err)
	}
	if err := models.DeleteWarehouseCell(db, cell.ID); err != nil {
		t.Errorf("empty cell not deleted: %v", err)
	}
}

func TestCodeMappingUpsert(t *testing.T) {
	db := newTestDB(t)

	if _, err := models.UpsertCodeMapping(db, "FURN-77", "INT-77", "usa furnizor", 1); err != nil {
		t.Fatalf("UpsertCodeMapping: %v", err)
	}
	resolved, err := models.ResolveCode(db, "FURN-77")
	if err != nil {
		t.Fatalf("ResolveCode: %v", err)
	}
	if resolved != "INT-77" {
		t.Errorf("resolved = %s, want INT-77", resolved)
	}

	// Re-mapping the same supplier code replaces the target.
	if _, err := models.UpsertCodeMapping(db, "FURN-77", "INT-99", "", 1); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	resolved, _ = models.ResolveCode(db, "FURN-77")
	if resolved != "INT-99" {
		t.Errorf("resolved after upsert = %s, want INT-99", resolved)
	}

	// Unmapped codes pass through untouched.
	resolved, _ = models.ResolveCode(db, "NECUNOSCUT")
	if resolved != "NECUNOSCUT" {
		t.Errorf("unmapped code = %s, want NECUNOSCUT", resolved)
	}
}

func TestBelowMinimumReport(t *testing.T) {
	db := newTestDB(t)
	warehouse, err := models.CreateWarehouse(db, &models.NewWarehouse{Name: "Depozit central"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}

	minimum := models.MinimumStock{Code: "USA-90", Quantity: decimal.NewFromInt(5)}
	if err := db.Create(&minimum).Error; err != nil {
		t.Fatalf("create minimum: %v", err)
	}
	stock := models.ProductStock{Code: "USA-90", WarehouseId: warehouse.ID, Quantity: decimal.NewFromInt(3)}
	if err := db.Create(&stock).Error; err != nil {
		t.Fatalf("create stock: %v", err)
	}
	ok := models.MinimumStock{Code: "TOC-90", Quantity: decimal.NewFromInt(1)}
	if err := db.Create(&ok).Error; err != nil {
		t.Fatalf("create minimum: %v", err)
	}
	okStock := models.ProductStock{Code: "TOC-90", WarehouseId: warehouse.ID, Quantity: decimal.NewFromInt(4)}
	if err := db.Create(&okStock).Error; err != nil {
		t.Fatalf("create stock: %v", err)
	}

	alerts, err := models.BelowMinimumReport(db, warehouse.ID)
	if err != nil {
		t.Fatalf("BelowMinimumReport: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Code != "USA-90" {
		t.Errorf("alert code = %s, want USA-90", alerts[0].Code)
	}
	if !alerts[0].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("available = %s, want 3", alerts[0].Quantity)
	}
}
