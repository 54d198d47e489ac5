package workflow_test

import (
	"strings"
	"testing"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestReconcileBatchMatchesByReference(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "CONSTRUCT TOTAL SRL", "14356782")
	invoice := createTestInvoice(t, db, models.InvoiceKindFiscal, 42, client.ID, 1190.00)
	createTestPayment(t, db, "BT-1", "plata factura HSL-000042", "ALTCEVA COMPLET SRL", 1190.00, "")

	stats, err := workflow.ReconcileBatch(db, 1)
	if err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}
	if stats.Matched != 1 {
		t.Fatalf("matched = %d, want 1", stats.Matched)
	}
	if stats.Types[models.MatchTypeReference] != 1 {
		t.Errorf("reference matches = %d, want 1", stats.Types[models.MatchTypeReference])
	}

	var refreshed models.Invoice
	if err := db.First(&refreshed, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if refreshed.Status != models.InvoiceStatusPaid {
		t.Errorf("invoice status = %s, want paid", refreshed.Status)
	}
	if !refreshed.PaidAmount.Equal(decimal.NewFromFloat(1190.00)) {
		t.Errorf("paid amount = %s, want 1190", refreshed.PaidAmount)
	}
}

// A spelled-out invoice reference must win even when amount and name
// would point to a different invoice.
func TestReferenceOutranksAmountAndName(t *testing.T) {
	db := newTestDB(t)
	clientA := createTestClient(t, db, "ELECTRO PLUS SA", "9834521")
	clientB := createTestClient(t, db, "MOBILA DESIGN SRL", "22458963")
	referenced := createTestInvoice(t, db, models.InvoiceKindFiscal, 10, clientA.ID, 500.00)
	createTestInvoice(t, db, models.InvoiceKindFiscal, 11, clientB.ID, 500.00)

	payment := createTestPayment(t, db, "BT-2", "MOBILA DESIGN SRL plata fact 10", "MOBILA DESIGN SRL", 500.00, "")

	if _, err := workflow.ReconcileBatch(db, 1); err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}
	var refreshed models.IncomingPayment
	if err := db.First(&refreshed, payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if refreshed.InvoiceId == nil || *refreshed.InvoiceId != referenced.ID {
		t.Fatalf("payment matched invoice %v, want the referenced invoice %d", refreshed.InvoiceId, referenced.ID)
	}
	if refreshed.MatchType != models.MatchTypeReference {
		t.Errorf("match type = %s, want reference", refreshed.MatchType)
	}
}

func TestUniqueAmountMatch(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "TRANS LOGISTIC SRL", "31245678")
	invoice := createTestInvoice(t, db, models.InvoiceKindProforma, 7, client.ID, 777.77)
	payment := createTestPayment(t, db, "BT-3", "plata diverse fara detalii", "NECUNOSCUT", 777.77, "")

	if _, err := workflow.ReconcileBatch(db, 1); err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}
	var refreshed models.IncomingPayment
	if err := db.First(&refreshed, payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if refreshed.MatchType != models.MatchTypeUniqueAmount {
		t.Fatalf("match type = %s, want unique-amount", refreshed.MatchType)
	}
	if refreshed.InvoiceId == nil || *refreshed.InvoiceId != invoice.ID {
		t.Errorf("matched invoice = %v, want %d", refreshed.InvoiceId, invoice.ID)
	}
}

// Two unpaid invoices with the same amount disqualify the unique-amount
// rule, the payment stays unreconciled.
func TestAmbiguousAmountStaysUnreconciled(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "AGRO TERRA IMPEX SRL", "17823456")
	createTestInvoice(t, db, models.InvoiceKindFiscal, 20, client.ID, 300.00)
	createTestInvoice(t, db, models.InvoiceKindFiscal, 21, client.ID, 300.00)
	payment := createTestPayment(t, db, "BT-4", "plata", "STRAIN TOTAL NECUNOSCUT", 300.00, "")

	if _, err := workflow.ReconcileBatch(db, 1); err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}
	var refreshed models.IncomingPayment
	if err := db.First(&refreshed, payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if refreshed.Status != models.PaymentStatusUnreconciled {
		t.Errorf("payment status = %s, want unreconciled", refreshed.Status)
	}
}

func TestTaxIdMatch(t *testing.T) {
	db := newTestDB(t)
	clientA := createTestClient(t, db, "INSTAL PRO SRL", "8976543")
	clientB := createTestClient(t, db, "METAL STRUCT SA", "12567834")
	createTestInvoice(t, db, models.InvoiceKindFiscal, 30, clientA.ID, 450.00)
	wanted := createTestInvoice(t, db, models.InvoiceKindFiscal, 31, clientB.ID, 450.00)
	payment := createTestPayment(t, db, "BT-5", "plata", "NUME FARA LEGATURA", 450.00, "12567834")

	if _, err := workflow.ReconcileBatch(db, 1); err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}
	var refreshed models.IncomingPayment
	if err := db.First(&refreshed, payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if refreshed.MatchType != models.MatchTypeTaxId {
		t.Fatalf("match type = %s, want tax-id", refreshed.MatchType)
	}
	if refreshed.InvoiceId == nil || *refreshed.InvoiceId != wanted.ID {
		t.Errorf("matched invoice = %v, want %d", refreshed.InvoiceId, wanted.ID)
	}
}

// Running the batch twice must not double-book anything: the second run
// sees no unreconciled payments that still match.
func TestReconcileBatchIdempotent(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "CASA VERDE PFA", "26789123")
	invoice := createTestInvoice(t, db, models.InvoiceKindFiscal, 50, client.ID, 990.00)
	createTestPayment(t, db, "BT-6", "plata factura HSL-000050", "CASA VERDE PFA", 990.00, "")

	if _, err := workflow.ReconcileBatch(db, 1); err != nil {
		t.Fatalf("first ReconcileBatch: %v", err)
	}
	stats, err := workflow.ReconcileBatch(db, 1)
	if err != nil {
		t.Fatalf("second ReconcileBatch: %v", err)
	}
	if stats.Matched != 0 {
		t.Errorf("second run matched %d payments, want 0", stats.Matched)
	}
	var refreshed models.Invoice
	if err := db.First(&refreshed, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if !refreshed.PaidAmount.Equal(decimal.NewFromFloat(990.00)) {
		t.Errorf("paid amount = %s, want 990 (no double booking)", refreshed.PaidAmount)
	}
}

// Paying the proforma settles its fiscal twin issued for the order that
// came out of the same quote.
func TestProformaPaymentPropagatesToFiscal(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "TERMO CONFORT SRL", "19834567")

	quote := models.Quote{Number: "OF-1", Version: 1, ClientId: client.ID, Status: models.QuoteStatusOrdered}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("create quote: %v", err)
	}
	order := models.Order{Number: "CMD-1", ClientId: client.ID, QuoteId: &quote.ID, Status: models.OrderStatusConfirmed}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}

	proforma := createTestInvoice(t, db, models.InvoiceKindProforma, 60, client.ID, 2380.00)
	if err := db.Model(proforma).Update("quote_id", quote.ID).Error; err != nil {
		t.Fatalf("link proforma: %v", err)
	}
	fiscal := createTestInvoice(t, db, models.InvoiceKindFiscal, 61, client.ID, 2380.00)
	if err := db.Model(fiscal).Update("order_id", order.ID).Error; err != nil {
		t.Fatalf("link fiscal: %v", err)
	}

	createTestPayment(t, db, "BT-7", "plata proforma PF-000060", "TERMO CONFORT SRL", 2380.00, "")
	if _, err := workflow.ReconcileBatch(db, 1); err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}

	var refreshedFiscal models.Invoice
	if err := db.First(&refreshedFiscal, fiscal.ID).Error; err != nil {
		t.Fatalf("reload fiscal: %v", err)
	}
	if refreshedFiscal.Status != models.InvoiceStatusPaid {
		t.Errorf("fiscal status = %s, want paid via the proforma", refreshedFiscal.Status)
	}
}

// Paying the fiscal settles the originating proforma, which by then sits
// in confirmed after the ordering approval.
func TestFiscalPaymentPropagatesToConfirmedProforma(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "PROIECT INVEST SA", "28934561")

	quote := models.Quote{Number: "OF-2", Version: 1, ClientId: client.ID, Status: models.QuoteStatusOrdered}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("create quote: %v", err)
	}
	order := models.Order{Number: "CMD-2", ClientId: client.ID, QuoteId: &quote.ID, Status: models.OrderStatusConfirmed}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}

	proforma := createTestInvoice(t, db, models.InvoiceKindProforma, 62, client.ID, 2380.00)
	err := db.Model(proforma).Updates(map[string]interface{}{
		"quote_id": quote.ID,
		"status":   models.InvoiceStatusConfirmed,
	}).Error
	if err != nil {
		t.Fatalf("link proforma: %v", err)
	}
	fiscal := createTestInvoice(t, db, models.InvoiceKindFiscal, 63, client.ID, 2380.00)
	err = db.Model(fiscal).Updates(map[string]interface{}{
		"order_id": order.ID,
		"quote_id": quote.ID,
	}).Error
	if err != nil {
		t.Fatalf("link fiscal: %v", err)
	}

	payment := createTestPayment(t, db, "BT-10", "plata factura HSL-000063", "PROIECT INVEST SA", 2380.00, "")
	if _, err := workflow.ManualReconcile(db, payment.ID, fiscal.ID, 1); err != nil {
		t.Fatalf("ManualReconcile: %v", err)
	}

	var refreshedProforma models.Invoice
	if err := db.First(&refreshedProforma, proforma.ID).Error; err != nil {
		t.Fatalf("reload proforma: %v", err)
	}
	if refreshedProforma.Status != models.InvoiceStatusPaid {
		t.Errorf("proforma status = %s, want paid via the fiscal", refreshedProforma.Status)
	}
	if !refreshedProforma.PaidAmount.Equal(decimal.NewFromFloat(2380.00)) {
		t.Errorf("proforma paid amount = %s, want 2380", refreshedProforma.PaidAmount)
	}
}

func TestManualReconcileAndUnreconcile(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "URBAN BUILD SRL", "33456789")
	invoice := createTestInvoice(t, db, models.InvoiceKindFiscal, 70, client.ID, 1500.00)
	payment := createTestPayment(t, db, "BT-8", "plata partiala", "URBAN BUILD SRL", 600.00, "")

	reconciled, err := workflow.ManualReconcile(db, payment.ID, invoice.ID, 7)
	if err != nil {
		t.Fatalf("ManualReconcile: %v", err)
	}
	if reconciled.Status != models.PaymentStatusManual {
		t.Errorf("payment status = %s, want manual", reconciled.Status)
	}
	var partiallyPaid models.Invoice
	if err := db.First(&partiallyPaid, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if partiallyPaid.Status != models.InvoiceStatusPartiallyPaid {
		t.Errorf("invoice status = %s, want partially_paid", partiallyPaid.Status)
	}

	released, err := workflow.Unreconcile(db, payment.ID, 7)
	if err != nil {
		t.Fatalf("Unreconcile: %v", err)
	}
	if released.Status != models.PaymentStatusUnreconciled || released.InvoiceId != nil {
		t.Errorf("payment after unreconcile = %s/%v, want unreconciled/nil", released.Status, released.InvoiceId)
	}
	var rolledBack models.Invoice
	if err := db.First(&rolledBack, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if rolledBack.Status != models.InvoiceStatusIssued {
		t.Errorf("invoice status = %s, want issued after rollback", rolledBack.Status)
	}
	if !rolledBack.PaidAmount.IsZero() {
		t.Errorf("paid amount = %s, want 0", rolledBack.PaidAmount)
	}

	var stored models.IncomingPayment
	if err := db.First(&stored, payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if stored.InvoiceId != nil {
		t.Errorf("stored invoice_id = %v, want NULL", *stored.InvoiceId)
	}
	if _, err := workflow.Unreconcile(db, payment.ID, 7); err == nil {
		t.Error("second unreconcile succeeded on a detached payment")
	}
}

func TestIgnorePaymentExcludedFromBatch(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "DECO STIL SRL", "15678923")
	createTestInvoice(t, db, models.InvoiceKindFiscal, 80, client.ID, 100.00)
	payment := createTestPayment(t, db, "BT-9", "comision bancar", "BANCA", 100.00, "")

	if _, err := workflow.IgnorePayment(db, payment.ID, 1); err != nil {
		t.Fatalf("IgnorePayment: %v", err)
	}
	stats, err := workflow.ReconcileBatch(db, 1)
	if err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("batch saw %d payments, want 0 (ignored ones are out)", stats.Total)
	}
}

func TestImportStatementDeduplicates(t *testing.T) {
	db := newTestDB(t)
	raw := []byte("Data,Descriere,Referinta,Debit,Credit,Sold\n" +
		"15.03.2024,TRANSFER;PROIECT INVEST SA;RO49BTRL0000000000000009,R1,,\"1.000,00\",x\n" +
		"16.03.2024,TRANSFER;PROIECT INVEST SA;RO49BTRL0000000000000009,R2,,\"2.000,00\",x\n")
	rows, err := workflow.ParseBankCSV(raw)
	if err != nil {
		t.Fatalf("ParseBankCSV: %v", err)
	}
	imported, skipped, err := workflow.ImportStatement(db, rows, models.PaymentSourceCSV)
	if err != nil {
		t.Fatalf("ImportStatement: %v", err)
	}
	if imported != 2 || skipped != 0 {
		t.Fatalf("first import = %d/%d, want 2/0", imported, skipped)
	}
	imported, skipped, err = workflow.ImportStatement(db, rows, models.PaymentSourceCSV)
	if err != nil {
		t.Fatalf("replay ImportStatement: %v", err)
	}
	if imported != 0 || skipped != 2 {
		t.Errorf("replay = %d/%d, want 0/2", imported, skipped)
	}
}

func TestGenerateMockStatementMatchable(t *testing.T) {
	db := newTestDB(t)
	client := createTestClient(t, db, "MOBILA DESIGN SRL", "22458963")
	invoice := createTestInvoice(t, db, models.InvoiceKindFiscal, 77, client.ID, 1500)

	rows, err := workflow.GenerateMockStatement(db, 30)
	if err != nil {
		t.Fatalf("GenerateMockStatement: %v", err)
	}
	if len(rows) != 30 {
		t.Fatalf("rows = %d, want 30", len(rows))
	}
	shaped := 0
	for _, row := range rows {
		if !row.Amount.IsPositive() {
			t.Errorf("row amount %s is not positive", row.Amount)
		}
		if row.Date.IsZero() {
			t.Error("row without a date")
		}
		if strings.Contains(row.Description, invoice.FullNumber()) {
			shaped++
		}
	}
	if shaped == 0 {
		t.Error("no row was shaped to the unpaid invoice")
	}

	imported, _, err := workflow.ImportStatement(db, rows, models.PaymentSourceMock)
	if err != nil {
		t.Fatalf("ImportStatement: %v", err)
	}
	if imported != 30 {
		t.Errorf("imported = %d, want 30 (dedup refs must be unique)", imported)
	}
	stats, err := workflow.ReconcileBatch(db, 1)
	if err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}
	if stats.Matched == 0 {
		t.Error("nothing matched from a statement shaped to an unpaid invoice")
	}
}
