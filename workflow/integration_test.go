package workflow_test

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/config"
	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/workflow"
	"github.com/shopspring/decimal"
)

// End to end against real MySQL: statement import, batch reconciliation
// with row locks, then the NIR receiving path. The sqlite tests cover
// the same logic but skip the FOR UPDATE branch.
func TestReconciliationAndReceivingMySQL(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "erp_test")

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client, err := models.CreateClient(db, &models.NewClient{Name: "MOBILA DESIGN SRL", TaxId: "22458963"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	invoice := models.Invoice{
		Kind: models.InvoiceKindFiscal, Series: models.SeriesFiscal, Number: 42,
		ClientId: client.ID, Status: models.InvoiceStatusIssued,
		Subtotal: decimal.NewFromInt(1000), VatValue: decimal.NewFromInt(190),
		Total: decimal.NewFromInt(1190),
	}
	if err := db.Create(&invoice).Error; err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	statement := "Data,Descriere,Referinta,Debit,Credit,Sold\n" +
		"15.03.2024,\"Incasare OP; MOBILA DESIGN SRL; C.I.F.: RO22458963; plata factura HSL-000042\",REF1,,\"1.190,00\",x\n"
	rows, err := workflow.ParseBankCSV([]byte(statement))
	if err != nil {
		t.Fatalf("ParseBankCSV: %v", err)
	}
	imported, skipped, err := workflow.ImportStatement(db, rows, models.PaymentSourceCSV)
	if err != nil {
		t.Fatalf("ImportStatement: %v", err)
	}
	if imported != 1 || skipped != 0 {
		t.Fatalf("imported/skipped = %d/%d, want 1/0", imported, skipped)
	}

	stats, err := workflow.ReconcileBatch(db, 1)
	if err != nil {
		t.Fatalf("ReconcileBatch: %v", err)
	}
	if stats.Matched != 1 {
		t.Fatalf("matched = %d, want 1", stats.Matched)
	}
	var paid models.Invoice
	if err := db.First(&paid, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if paid.Status != models.InvoiceStatusPaid {
		t.Errorf("invoice status = %s, want paid", paid.Status)
	}

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

	receipt, err := models.CreateGoodsReceipt(db, &models.NewGoodsReceipt{
		SupplierId:  supplier.ID,
		WarehouseId: warehouse.ID,
		Lines: []models.NewGoodsReceiptLine{
			{Code: "USA-90", Name: "Usa metalica", Quantity: decimal.NewFromInt(5), PurchasePrice: decimal.NewFromInt(10)},
		},
	}, 1)
	if err != nil {
		t.Fatalf("CreateGoodsReceipt: %v", err)
	}
	if _, err := workflow.ConfirmReceiptBooked(db, receipt.ID, 1); err != nil {
		t.Fatalf("ConfirmReceiptBooked: %v", err)
	}
	reloaded, err := models.GetGoodsReceipt(db, receipt.ID)
	if err != nil {
		t.Fatalf("GetGoodsReceipt: %v", err)
	}
	result, err := workflow.VerifyReceiptLine(db, receipt.ID, reloaded.Lines[0].ID, decimal.NewFromInt(5), &cell.ID, 1)
	if err != nil {
		t.Fatalf("VerifyReceiptLine: %v", err)
	}
	if result.Receipt.Status != models.ReceiptStatusVerified {
		t.Errorf("receipt status = %s, want verified", result.Receipt.Status)
	}

	quantity, err := models.StockByCode(db, "USA-90", warehouse.ID)
	if err != nil {
		t.Fatalf("StockByCode: %v", err)
	}
	if !quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("stock = %s, want 5", quantity)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("erp-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=erp_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
