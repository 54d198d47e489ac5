package workflow

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/config"
	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AmountTolerance absorbs rounding differences between the banked
// amount and the invoice total. Absolute, not scaled with the amount.
var AmountTolerance = decimal.NewFromFloat(0.01)

const reconciliationLockKey = "reconciliation:batch"

// ImportStatement persists parsed statement rows as incoming payments.
// Rows already imported (same bank reference) are skipped, so replaying
// a file is harmless.
func ImportStatement(db *gorm.DB, rows []StatementRow, source models.PaymentSource) (imported, skipped int, err error) {
	for i, row := range rows {
		payment := models.IncomingPayment{
			BankRef:     row.DedupRef(i),
			PaymentDate: row.Date,
			Amount:      row.Amount,
			Currency:    "RON",
			Description: row.Description,
			PayerName:   row.PayerName,
			PayerTaxId:  row.PayerTaxId,
			PayerIban:   row.PayerIban,
			Source:      source,
			Status:      models.PaymentStatusUnreconciled,
		}
		var existing int64
		if err = db.Model(&models.IncomingPayment{}).Where("bank_ref = ?", payment.BankRef).Count(&existing).Error; err != nil {
			return imported, skipped, err
		}
		if existing > 0 {
			skipped++
			continue
		}
		if err = db.Create(&payment).Error; err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

// Invoice reference spellings found in transfer descriptions, most
// specific first. Proforma patterns outrank fiscal ones.
var referencePatterns = []struct {
	re   *regexp.Regexp
	kind models.InvoiceKind
}{
	{regexp.MustCompile(`(?i)PF[\-/](\d+)`), models.InvoiceKindProforma},
	{regexp.MustCompile(`(?i)(?:proforma|pf)[:\s#]*(\d+)`), models.InvoiceKindProforma},
	{regexp.MustCompile(`(?i)HSL[\-/](\d+)`), models.InvoiceKindFiscal},
	{regexp.MustCompile(`(?i)(?:factura|fact|fct|inv)[:\s#]*(\d+)`), models.InvoiceKindFiscal},
	{regexp.MustCompile(`(?i)serie\s*PF\s*nr?\s*[:\.]?\s*(\d+)`), models.InvoiceKindProforma},
	{regexp.MustCompile(`(?i)serie\s*HSL\s*nr?\s*[:\.]?\s*(\d+)`), models.InvoiceKindFiscal},
}

func amountMatches(paid, expected decimal.Decimal) bool {
	return paid.Sub(expected).Abs().LessThanOrEqual(AmountTolerance)
}

// matchByReference resolves an invoice number spelled out in the
// payment description. The amount still has to agree.
func matchByReference(payment *models.IncomingPayment, unpaid []models.Invoice) *models.Invoice {
	text := payment.Description + " " + payment.PayerName
	for _, pattern := range referencePatterns {
		m := pattern.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		for i := range unpaid {
			invoice := &unpaid[i]
			if invoice.Kind != pattern.kind || invoice.Number != number {
				continue
			}
			if amountMatches(payment.Amount, invoice.Remaining()) {
				return invoice
			}
		}
	}
	return nil
}

var legalFormRe = regexp.MustCompile(`(?i)\b(srl|s\.r\.l|sa|s\.a|scs|pfa|ii|impex)\b`)
var nonLetterRe = regexp.MustCompile(`[^a-zA-Z0-9 ]+`)

func nameTokens(name string) map[string]bool {
	name = legalFormRe.ReplaceAllString(name, " ")
	name = nonLetterRe.ReplaceAllString(name, " ")
	tokens := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(name)) {
		if len(word) > 2 {
			tokens[word] = true
		}
	}
	return tokens
}

// namesSimilar compares client and payer names on significant words:
// at least half of the smaller token set must overlap.
func namesSimilar(a, b string) bool {
	tokensA := nameTokens(a)
	tokensB := nameTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return false
	}
	overlap := 0
	for token := range tokensA {
		if tokensB[token] {
			overlap++
		}
	}
	minSet := len(tokensA)
	if len(tokensB) < minSet {
		minSet = len(tokensB)
	}
	return float64(overlap) >= float64(minSet)*0.5
}

func matchByAmountAndName(payment *models.IncomingPayment, unpaid []models.Invoice) *models.Invoice {
	if payment.PayerName == "" {
		return nil
	}
	for i := range unpaid {
		invoice := &unpaid[i]
		if invoice.Client == nil {
			continue
		}
		if amountMatches(payment.Amount, invoice.Remaining()) && namesSimilar(invoice.Client.Name, payment.PayerName) {
			return invoice
		}
	}
	return nil
}

// matchByUniqueAmount fires only when exactly one unpaid invoice has
// the banked amount.
func matchByUniqueAmount(payment *models.IncomingPayment, unpaid []models.Invoice) *models.Invoice {
	var found *models.Invoice
	for i := range unpaid {
		invoice := &unpaid[i]
		if amountMatches(payment.Amount, invoice.Remaining()) {
			if found != nil {
				return nil
			}
			found = invoice
		}
	}
	return found
}

func matchByTaxId(payment *models.IncomingPayment, unpaid []models.Invoice) *models.Invoice {
	if payment.PayerTaxId == "" {
		return nil
	}
	for i := range unpaid {
		invoice := &unpaid[i]
		if invoice.Client == nil || invoice.Client.TaxId == "" {
			continue
		}
		if invoice.Client.TaxId == payment.PayerTaxId && amountMatches(payment.Amount, invoice.Remaining()) {
			return invoice
		}
	}
	return nil
}

// findAutoMatch runs the strict priority chain. The unpaid slice must
// be ordered proformas first so ties resolve toward the proforma.
func findAutoMatch(payment *models.IncomingPayment, unpaid []models.Invoice) (*models.Invoice, models.MatchType) {
	if invoice := matchByReference(payment, unpaid); invoice != nil {
		return invoice, models.MatchTypeReference
	}
	if invoice := matchByAmountAndName(payment, unpaid); invoice != nil {
		return invoice, models.MatchTypeAmountName
	}
	if invoice := matchByUniqueAmount(payment, unpaid); invoice != nil {
		return invoice, models.MatchTypeUniqueAmount
	}
	if invoice := matchByTaxId(payment, unpaid); invoice != nil {
		return invoice, models.MatchTypeTaxId
	}
	return nil, ""
}

// loadMatchableInvoices returns unpaid invoices ordered proformas
// before fiscal, then oldest first.
func loadMatchableInvoices(db *gorm.DB) ([]models.Invoice, error) {
	unpaid, err := models.UnpaidInvoices(db, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(unpaid, func(i, j int) bool {
		if unpaid[i].Kind != unpaid[j].Kind {
			return unpaid[i].Kind == models.InvoiceKindProforma
		}
		return unpaid[i].IssueDate.Before(unpaid[j].IssueDate)
	})
	return unpaid, nil
}

// applyMatch records the payment against the invoice and rolls the
// invoice status forward inside the caller's transaction.
func applyMatch(tx *gorm.DB, payment *models.IncomingPayment, invoice *models.Invoice,
	matchType models.MatchType, status models.PaymentStatus, actorId int) error {

	now := time.Now().UTC()
	payment.Status = status
	payment.InvoiceId = &invoice.ID
	payment.MatchType = matchType
	payment.MatchedAt = &now
	if actorId > 0 {
		payment.MatchedById = &actorId
	}
	updates := map[string]interface{}{
		"status":     status,
		"invoice_id": invoice.ID,
		"match_type": matchType,
		"matched_at": now,
	}
	if actorId > 0 {
		updates["matched_by_id"] = actorId
	}
	if err := tx.Model(payment).Updates(updates).Error; err != nil {
		return err
	}

	invoice.PaidAmount = invoice.PaidAmount.Add(payment.Amount)
	nextStatus := models.InvoiceStatusPartiallyPaid
	if invoice.PaidAmount.GreaterThanOrEqual(invoice.Total.Sub(AmountTolerance)) {
		nextStatus = models.InvoiceStatusPaid
	}
	invoice.Status = nextStatus
	err := tx.Model(invoice).Updates(map[string]interface{}{
		"paid_amount": invoice.PaidAmount,
		"status":      nextStatus,
	}).Error
	if err != nil {
		return err
	}

	models.LogAudit(tx, "payment", payment.ID, payment.BankRef, "reconciled",
		invoice.FullNumber()+" ("+string(matchType)+")", actorId)

	if nextStatus == models.InvoiceStatusPaid {
		return syncRelatedInvoices(tx, invoice, actorId)
	}
	return nil
}

// syncRelatedInvoices marks the counterpart document paid when a
// proforma or its fiscal twin gets fully paid. One hop only: the
// counterpart update never triggers another sync. A proforma behind an
// order is normally confirmed, so the proforma side includes that
// status; a fiscal twin is synced only while still issued or sent.
func syncRelatedInvoices(tx *gorm.DB, invoice *models.Invoice, actorId int) error {
	var related []models.Invoice
	switch invoice.Kind {
	case models.InvoiceKindFiscal:
		if invoice.OrderId == nil {
			return nil
		}
		order, err := utils.FetchModel[models.Order](tx, *invoice.OrderId)
		if err != nil || order.QuoteId == nil {
			return nil
		}
		proformaStatuses := []string{
			string(models.InvoiceStatusIssued),
			string(models.InvoiceStatusSent),
			string(models.InvoiceStatusConfirmed),
		}
		if err := tx.Where("kind = ? AND quote_id = ? AND status IN ?",
			models.InvoiceKindProforma, *order.QuoteId, proformaStatuses).
			Find(&related).Error; err != nil {
			return err
		}
	case models.InvoiceKindProforma:
		if invoice.QuoteId == nil {
			return nil
		}
		var orders []models.Order
		if err := tx.Where("quote_id = ?", *invoice.QuoteId).Find(&orders).Error; err != nil {
			return err
		}
		orderIds := make([]int, 0, len(orders))
		for _, o := range orders {
			orderIds = append(orderIds, o.ID)
		}
		if len(orderIds) == 0 {
			return nil
		}
		fiscalStatuses := []string{
			string(models.InvoiceStatusIssued),
			string(models.InvoiceStatusSent),
		}
		if err := tx.Where("kind = ? AND order_id IN ? AND status IN ?",
			models.InvoiceKindFiscal, orderIds, fiscalStatuses).
			Find(&related).Error; err != nil {
			return err
		}
	}

	for i := range related {
		twin := &related[i]
		err := tx.Model(twin).Updates(map[string]interface{}{
			"paid_amount": twin.Total,
			"status":      models.InvoiceStatusPaid,
		}).Error
		if err != nil {
			return err
		}
		models.LogAudit(tx, "invoice", twin.ID, twin.FullNumber(), "paid_via_related", invoice.FullNumber(), actorId)
	}
	return nil
}

// ReconcileBatch automatches every unreconciled payment. Each payment
// commits in its own transaction so one bad row cannot sink the batch.
// A distributed lock serializes concurrent batch runs when redis is
// configured; without redis the database row locks still keep the
// writes consistent.
func ReconcileBatch(db *gorm.DB, actorId int) (*models.MatchStats, error) {
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(config.GetRedisContext(), reconciliationLockKey, 2*time.Minute, nil)
		if err == nil {
			defer lock.Release(config.GetRedisContext())
		} else if err != redislock.ErrNotObtained {
			config.LogError(config.GetLogger(), "workflow", "ReconcileBatch", "lock", reconciliationLockKey, err)
		} else {
			return nil, utils.Statef("a reconciliation batch is already running")
		}
	}

	var payments []models.IncomingPayment
	err := db.Where("status = ?", models.PaymentStatusUnreconciled).
		Order("payment_date ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	stats := models.NewMatchStats()
	stats.Total = len(payments)
	for i := range payments {
		payment := &payments[i]
		matchType, err := reMatchPayment(db, payment, actorId)
		if err != nil {
			config.LogError(config.GetLogger(), "workflow", "ReconcileBatch", "match", payment.BankRef, err)
			continue
		}
		if matchType != "" {
			stats.Record(matchType)
		}
	}
	return stats, nil
}

func reMatchPayment(db *gorm.DB, payment *models.IncomingPayment, actorId int) (models.MatchType, error) {
	var matched models.MatchType
	err := db.Transaction(func(tx *gorm.DB) error {
		unpaid, err := loadMatchableInvoices(tx)
		if err != nil {
			return err
		}
		invoice, matchType := findAutoMatch(payment, unpaid)
		if invoice == nil {
			return nil
		}
		if err := applyMatch(tx, payment, invoice, matchType, models.PaymentStatusAuto, actorId); err != nil {
			return err
		}
		matched = matchType
		return nil
	})
	return matched, err
}

// ReMatch re-runs the automatcher for a single payment.
func ReMatch(db *gorm.DB, paymentId, actorId int) (*models.IncomingPayment, error) {
	payment, err := models.GetPayment(db, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusUnreconciled {
		return nil, utils.Statef("payment %s is %s, only unreconciled payments can be rematched",
			payment.BankRef, payment.Status)
	}

	// Re-extract the payer fields from the raw description first; the
	// extraction heuristics improve over time and a rematch should use
	// the latest ones.
	name, taxId, iban := extractPayer(payment.Description)
	if name != payment.PayerName || taxId != payment.PayerTaxId || iban != payment.PayerIban {
		err = db.Model(payment).Updates(map[string]interface{}{
			"payer_name":   name,
			"payer_tax_id": taxId,
			"payer_iban":   iban,
		}).Error
		if err != nil {
			return nil, err
		}
		payment.PayerName = name
		payment.PayerTaxId = taxId
		payment.PayerIban = iban
	}

	if _, err := reMatchPayment(db, payment, actorId); err != nil {
		return nil, err
	}
	return models.GetPayment(db, paymentId)
}

// ManualReconcile pairs a payment with an operator-chosen invoice. The
// amount does not have to match; partial payments are recorded as such.
func ManualReconcile(db *gorm.DB, paymentId, invoiceId, actorId int) (*models.IncomingPayment, error) {
	payment, err := models.GetPayment(db, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusAuto || payment.Status == models.PaymentStatusManual {
		return nil, utils.Statef("payment %s is already reconciled", payment.BankRef)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		invoice, err := utils.FetchModel[models.Invoice](tx, invoiceId, "Client")
		if err != nil {
			return err
		}
		if !invoice.Status.Valid() || invoice.Status == models.InvoiceStatusCanceled {
			return utils.Statef("invoice %s is canceled", invoice.FullNumber())
		}
		return applyMatch(tx, payment, invoice, models.MatchTypeManual, models.PaymentStatusManual, actorId)
	})
	if err != nil {
		return nil, err
	}
	return models.GetPayment(db, paymentId)
}

// Unreconcile detaches a payment from its invoice and rolls the invoice
// status back according to what remains paid.
func Unreconcile(db *gorm.DB, paymentId, actorId int) (*models.IncomingPayment, error) {
	payment, err := models.GetPayment(db, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.InvoiceId == nil {
		return nil, utils.Statef("payment %s is not reconciled", payment.BankRef)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		invoice, err := utils.FetchModel[models.Invoice](tx, *payment.InvoiceId)
		if err != nil {
			return err
		}
		paid := invoice.PaidAmount.Sub(payment.Amount)
		if paid.IsNegative() {
			paid = decimal.Zero
		}
		status := models.InvoiceStatusIssued
		if paid.IsPositive() {
			status = models.InvoiceStatusPartiallyPaid
		}
		err = tx.Model(invoice).Updates(map[string]interface{}{
			"paid_amount": paid,
			"status":      status,
		}).Error
		if err != nil {
			return err
		}
		// Update by id, not through the loaded struct: the preloaded
		// Invoice association would re-resolve invoice_id back to a
		// non-null value.
		err = tx.Model(&models.IncomingPayment{ID: payment.ID}).Updates(map[string]interface{}{
			"status":        models.PaymentStatusUnreconciled,
			"invoice_id":    nil,
			"match_type":    "",
			"matched_at":    nil,
			"matched_by_id": nil,
		}).Error
		if err != nil {
			return err
		}
		models.LogAudit(tx, "payment", payment.ID, payment.BankRef, "unreconciled", invoice.FullNumber(), actorId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetPayment(db, paymentId)
}

// IgnorePayment flags a payment as out of scope for matching (bank
// fees, intercompany transfers).
func IgnorePayment(db *gorm.DB, paymentId, actorId int) (*models.IncomingPayment, error) {
	payment, err := models.GetPayment(db, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusUnreconciled {
		return nil, utils.Statef("payment %s is %s, only unreconciled payments can be ignored",
			payment.BankRef, payment.Status)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(payment).Update("status", models.PaymentStatusIgnored).Error; err != nil {
			return err
		}
		models.LogAudit(tx, "payment", payment.ID, payment.BankRef, "ignored", "", actorId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	payment.Status = models.PaymentStatusIgnored
	return payment, nil
}

// InvoiceSuggestion is one manual reconciliation candidate with the
// reasons it scored.
type InvoiceSuggestion struct {
	Invoice models.Invoice `json:"invoice"`
	Score   int            `json:"score"`
	Reasons []string       `json:"reasons"`
}

// SuggestInvoices ranks unpaid invoices against a payment for the
// manual matching screen. Scoring mirrors the automatch criteria but
// lists everything that partially fits.
func SuggestInvoices(db *gorm.DB, paymentId int, limit int) ([]InvoiceSuggestion, error) {
	payment, err := models.GetPayment(db, paymentId)
	if err != nil {
		return nil, err
	}
	unpaid, err := loadMatchableInvoices(db)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	var suggestions []InvoiceSuggestion
	for _, invoice := range unpaid {
		suggestion := InvoiceSuggestion{Invoice: invoice}
		if amountMatches(payment.Amount, invoice.Remaining()) {
			suggestion.Score += 50
			suggestion.Reasons = append(suggestion.Reasons, "amount matches")
		} else if payment.Amount.LessThan(invoice.Remaining()) {
			suggestion.Score += 10
			suggestion.Reasons = append(suggestion.Reasons, "possible partial payment")
		}
		if invoice.Client != nil {
			if payment.PayerTaxId != "" && invoice.Client.TaxId == payment.PayerTaxId {
				suggestion.Score += 40
				suggestion.Reasons = append(suggestion.Reasons, "tax id matches")
			}
			if payment.PayerName != "" && namesSimilar(invoice.Client.Name, payment.PayerName) {
				suggestion.Score += 30
				suggestion.Reasons = append(suggestion.Reasons, "payer name matches")
			}
		}
		if suggestion.Score > 0 {
			suggestions = append(suggestions, suggestion)
		}
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}
