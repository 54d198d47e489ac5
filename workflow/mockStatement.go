package workflow

import (
	"fmt"
	"math/rand"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var mockCompanies = []struct {
	name  string
	taxId string
}{
	{"CONSTRUCT TOTAL SRL", "14356782"},
	{"ELECTRO PLUS SA", "9834521"},
	{"MOBILA DESIGN SRL", "22458963"},
	{"AGRO TERRA IMPEX SRL", "17823456"},
	{"TRANS LOGISTIC SRL", "31245678"},
	{"INSTAL PRO SRL", "8976543"},
	{"METAL STRUCT SA", "12567834"},
	{"CASA VERDE PFA", "26789123"},
	{"TERMO CONFORT SRL", "19834567"},
	{"URBAN BUILD SRL", "33456789"},
	{"DECO STIL SRL", "15678923"},
	{"PROIECT INVEST SA", "28934561"},
}

// GenerateMockStatement fabricates a plausible statement for demos and
// matcher testing. Roughly 60% of the rows are shaped to actually match
// current unpaid invoices, the rest is noise.
func GenerateMockStatement(db *gorm.DB, count int) ([]StatementRow, error) {
	if count <= 0 {
		count = 20
	}
	unpaid, err := models.UnpaidInvoices(db, nil)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rows := make([]StatementRow, 0, count)
	for i := 0; i < count; i++ {
		day := time.Now().AddDate(0, 0, -rng.Intn(14))
		if len(unpaid) > 0 && rng.Float64() < 0.6 {
			invoice := unpaid[rng.Intn(len(unpaid))]
			rows = append(rows, mockMatchingRow(rng, &invoice, day))
			continue
		}
		company := mockCompanies[rng.Intn(len(mockCompanies))]
		amount := decimal.NewFromInt(int64(100 + rng.Intn(9900))).
			Add(decimal.NewFromInt(int64(rng.Intn(100))).Div(decimal.NewFromInt(100)))
		rows = append(rows, StatementRow{
			Date:        day,
			Amount:      amount,
			Description: fmt.Sprintf("TRANSFER;%s;RO%02dBTRL%010d;plata diverse", company.name, 10+rng.Intn(89), rng.Int63n(9999999999)),
			PayerName:   company.name,
			PayerTaxId:  company.taxId,
		})
	}
	return rows, nil
}

func mockMatchingRow(rng *rand.Rand, invoice *models.Invoice, day time.Time) StatementRow {
	payerName := fmt.Sprintf("CLIENT %d SRL", invoice.ClientId)
	payerTaxId := ""
	if invoice.Client != nil {
		if invoice.Client.Name != "" {
			payerName = invoice.Client.Name
		}
		payerTaxId = invoice.Client.TaxId
	}
	description := fmt.Sprintf("TRANSFER;%s;RO%02dBTRL%010d;plata %s",
		payerName, 10+rng.Intn(89), rng.Int63n(9999999999), invoice.FullNumber())
	return StatementRow{
		Date:        day,
		Amount:      invoice.Remaining(),
		Description: description,
		PayerName:   payerName,
		PayerTaxId:  payerTaxId,
	}
}
