package workflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChangeOrderStatus drives the order state machine and its side
// effects. Leaving pending requires an administrator; a pending order
// accepts no other transition. Confirmation reserves stock and applies
// the confirmation checklist, delivery posts the exit movements when
// no picking already did.
func ChangeOrderStatus(ctx context.Context, db *gorm.DB, orderId int, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, utils.Validationf("invalid order status %q", next)
	}
	order, err := models.GetOrder(db, orderId)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, utils.Statef("order %s cannot go from %s to %s", order.Number, order.Status, next)
	}
	if order.Status == models.OrderStatusPending && !utils.GetIsAdminFromContext(ctx) {
		return nil, utils.Authorizationf("approving or rejecting a pending order requires an administrator")
	}
	actorId, _ := utils.GetUserIdFromContext(ctx)

	old := order.Status
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(order).Update("status", next).Error; err != nil {
			return err
		}
		order.Status = next

		switch next {
		case models.OrderStatusConfirmed:
			if err := reserveOrderStock(tx, order, actorId); err != nil {
				return err
			}
			if err := models.ApplyActivityTemplates(tx, order.ID, models.TriggerOrderConfirmed); err != nil {
				return err
			}
		case models.OrderStatusProduction:
			if err := models.ApplyActivityTemplates(tx, order.ID, models.TriggerOrderProduction); err != nil {
				return err
			}
		case models.OrderStatusDelivered:
			deliveredAt := time.Now().UTC()
			if err := tx.Model(order).Update("delivered_at", deliveredAt).Error; err != nil {
				return err
			}
			order.DeliveredAt = &deliveredAt
			if err := postDirectDeliveryExits(tx, order, actorId); err != nil {
				return err
			}
			if err := models.ApplyActivityTemplates(tx, order.ID, models.TriggerOrderDelivered); err != nil {
				return err
			}
		}

		models.LogAudit(tx, "order", order.ID, order.Number, "status_changed", fmt.Sprintf("%s -> %s", old, next), actorId)
		return nil
	})
	if err != nil {
		order.Status = old
		return nil, err
	}
	return order, nil
}

// reserveOrderStock writes reservation movements for the order lines.
// Reservations are informational journal entries, they do not decrement
// buckets.
func reserveOrderStock(tx *gorm.DB, order *models.Order, actorId int) error {
	for _, line := range order.Lines {
		if line.Code == "" {
			continue
		}
		movement := models.StockMovement{
			MovementType: models.MovementTypeReservation,
			Code:         line.Code,
			Name:         line.Name,
			Quantity:     line.Quantity,
			OrderId:      &order.ID,
			Reference:    order.Number,
			CreatedById:  actorId,
		}
		if err := recordMovement(tx, &movement); err != nil {
			return err
		}
	}
	return nil
}

// postDirectDeliveryExits covers orders delivered without a picking:
// exit movements are posted per line unless a delivered picking already
// journaled them.
func postDirectDeliveryExits(tx *gorm.DB, order *models.Order, actorId int) error {
	var delivered int64
	err := tx.Model(&models.Picking{}).
		Where("order_id = ? AND status = ?", order.ID, models.PickingStatusDelivered).
		Count(&delivered).Error
	if err != nil {
		return err
	}
	if delivered > 0 {
		return nil
	}
	for _, line := range order.Lines {
		if line.Code == "" {
			continue
		}
		movement := models.StockMovement{
			MovementType: models.MovementTypeOrderExit,
			Code:         line.Code,
			Name:         line.Name,
			Quantity:     line.Quantity,
			OrderId:      &order.ID,
			Reference:    order.Number,
			CreatedById:  actorId,
		}
		if err := recordMovement(tx, &movement); err != nil {
			return err
		}
	}
	return nil
}

// ConvertQuoteToOrder turns an accepted quote into an order, carrying
// over the lines and the commercial terms. Ordering needs the quote's
// proforma at least confirmed; a fully paid proforma skips the pending
// approval step. The quote flips to ordered in the same transaction.
func ConvertQuoteToOrder(db *gorm.DB, quoteId, actorId int) (*models.Order, error) {
	quote, err := models.GetQuote(db, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusAccepted {
		return nil, utils.Statef("quote %s is %s, only accepted quotes can become orders", quote.DisplayNumber(), quote.Status)
	}
	var existing int64
	if err := db.Model(&models.Order{}).Where("quote_id = ?", quoteId).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, utils.Statef("quote %s was already converted", quote.DisplayNumber())
	}

	var proformas []models.Invoice
	err = db.Where("quote_id = ? AND kind = ? AND status <> ?",
		quoteId, models.InvoiceKindProforma, models.InvoiceStatusCanceled).
		Order("id DESC").Limit(1).Find(&proformas).Error
	if err != nil {
		return nil, err
	}
	if len(proformas) == 0 {
		return nil, utils.Statef("quote %s has no proforma, issue one before ordering", quote.DisplayNumber())
	}
	proforma := proformas[0]
	switch proforma.Status {
	case models.InvoiceStatusConfirmed, models.InvoiceStatusPartiallyPaid, models.InvoiceStatusPaid:
	default:
		return nil, utils.Statef("proforma %s is %s, ordering needs it at least confirmed",
			proforma.FullNumber(), proforma.Status)
	}
	status := models.OrderStatusPending
	if proforma.Status == models.InvoiceStatusPaid {
		status = models.OrderStatusNew
	}

	now := time.Now().UTC()
	order := models.Order{
		Number:      "CMD-" + now.Format("20060102-150405"),
		ClientId:    quote.ClientId,
		QuoteId:     &quote.ID,
		Status:      status,
		OrderDate:   now,
		VatPercent:  quote.VatPercent,
		Currency:    quote.Currency,
		Notes:       quote.Notes,
		CreatedById: actorId,
	}
	for _, line := range quote.Lines {
		order.Lines = append(order.Lines, models.OrderLine{
			Position:    line.Position,
			Code:        line.Code,
			Name:        line.Name,
			Dimension:   line.Dimension,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
			UnitPrice:   line.FinalPrice,
			Parameters:  line.Parameters,
			Accessories: line.Accessories,
		})
	}
	order.Recalculate()

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		if err := tx.Model(quote).Update("status", models.QuoteStatusOrdered).Error; err != nil {
			return err
		}
		if err := models.ApplyActivityTemplates(tx, order.ID, models.TriggerQuoteToOrder); err != nil {
			return err
		}
		models.LogAudit(tx, "order", order.ID, order.Number, "created_from_quote", quote.DisplayNumber(), actorId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder removes an order and its dependents explicitly: lines,
// pickings with their lines, delivery notes, activities and invoices.
// The source quote is reopened as accepted so it can be converted
// again. Stock movements stay, the journal is append-only.
func DeleteOrder(ctx context.Context, db *gorm.DB, orderId int) error {
	if !utils.GetIsAdminFromContext(ctx) {
		return utils.Authorizationf("deleting an order requires an administrator")
	}
	order, err := utils.FetchModel[models.Order](db, orderId)
	if err != nil {
		return err
	}
	actorId, _ := utils.GetUserIdFromContext(ctx)

	return db.Transaction(func(tx *gorm.DB) error {
		var pickings []models.Picking
		if err := tx.Where("order_id = ?", orderId).Find(&pickings).Error; err != nil {
			return err
		}
		for _, picking := range pickings {
			if err := tx.Where("picking_id = ?", picking.ID).Delete(&models.PickingLine{}).Error; err != nil {
				return err
			}
			if err := tx.Where("picking_id = ?", picking.ID).Delete(&models.DeliveryNote{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("order_id = ?", orderId).Delete(&models.Picking{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", orderId).Delete(&models.Activity{}).Error; err != nil {
			return err
		}

		var invoices []models.Invoice
		if err := tx.Where("order_id = ?", orderId).Find(&invoices).Error; err != nil {
			return err
		}
		for _, invoice := range invoices {
			if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceLine{}).Error; err != nil {
				return err
			}
			models.LogAudit(tx, "invoice", invoice.ID, invoice.FullNumber(), "deleted", "order "+order.Number, actorId)
		}
		if err := tx.Where("order_id = ?", orderId).Delete(&models.Invoice{}).Error; err != nil {
			return err
		}

		if err := tx.Where("order_id = ?", orderId).Delete(&models.OrderLine{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(order).Error; err != nil {
			return err
		}

		if order.QuoteId != nil {
			err := tx.Model(&models.Quote{}).Where("id = ?", *order.QuoteId).
				Update("status", models.QuoteStatusAccepted).Error
			if err != nil {
				return err
			}
		}
		models.LogAudit(tx, "order", order.ID, order.Number, "deleted", "", actorId)
		return nil
	})
}

// GenerateProformaFromQuote issues the RON proforma for an accepted or
// ordered quote, converting EUR amounts at today's billing rate.
func GenerateProformaFromQuote(ctx context.Context, db *gorm.DB, fetcher RateFetcher, quoteId, actorId int) (*models.Invoice, error) {
	quote, err := models.GetQuote(db, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusAccepted && quote.Status != models.QuoteStatusOrdered {
		return nil, utils.Statef("quote %s is %s, proformas need an accepted quote", quote.DisplayNumber(), quote.Status)
	}

	rate, err := billingRate(ctx, db, fetcher, quote.Currency)
	if err != nil {
		return nil, err
	}
	invoice, err := buildInvoice(db, models.InvoiceKindProforma, quote.ClientId, quote.VatPercent, rate, actorId)
	if err != nil {
		return nil, err
	}
	invoice.QuoteId = &quote.ID
	invoice.TotalEur = quote.Total
	invoice.Notes = "Proforma pentru oferta " + quote.DisplayNumber()
	for _, line := range quote.Lines {
		invoice.Lines = append(invoice.Lines, models.InvoiceLine{
			Position:  line.Position,
			Code:      line.Code,
			Name:      line.Name,
			Unit:      line.Unit,
			Quantity:  line.Quantity,
			UnitPrice: line.FinalPrice.Mul(rate).Round(2),
		})
	}
	invoice.Recalculate()

	if err := persistInvoice(db, invoice, actorId); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GenerateFiscalFromOrder issues the fiscal invoice for an order past
// approval.
func GenerateFiscalFromOrder(ctx context.Context, db *gorm.DB, fetcher RateFetcher, orderId, actorId int) (*models.Invoice, error) {
	order, err := models.GetOrder(db, orderId)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusPending || order.Status == models.OrderStatusCanceled {
		return nil, utils.Statef("order %s is %s, fiscal invoices need an approved order", order.Number, order.Status)
	}

	rate, err := billingRate(ctx, db, fetcher, order.Currency)
	if err != nil {
		return nil, err
	}
	invoice, err := buildInvoice(db, models.InvoiceKindFiscal, order.ClientId, order.VatPercent, rate, actorId)
	if err != nil {
		return nil, err
	}
	invoice.OrderId = &order.ID
	invoice.QuoteId = order.QuoteId
	invoice.TotalEur = order.Total
	invoice.Notes = "Factura pentru comanda " + order.Number
	for _, line := range order.Lines {
		invoice.Lines = append(invoice.Lines, models.InvoiceLine{
			Position:  line.Position,
			Code:      line.Code,
			Name:      line.Name,
			Unit:      line.Unit,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.Mul(rate).Round(2),
		})
	}
	invoice.Recalculate()

	// A fiscal invoice issued against an already paid proforma is born
	// paid, the money is in.
	if order.QuoteId != nil {
		var paid int64
		err = db.Model(&models.Invoice{}).
			Where("quote_id = ? AND kind = ? AND status = ?",
				*order.QuoteId, models.InvoiceKindProforma, models.InvoiceStatusPaid).
			Count(&paid).Error
		if err != nil {
			return nil, err
		}
		if paid > 0 {
			invoice.Status = models.InvoiceStatusPaid
			invoice.PaidAmount = invoice.Total
		}
	}

	if err := persistInvoice(db, invoice, actorId); err != nil {
		return nil, err
	}
	return invoice, nil
}

// billingRate resolves the conversion rate for a document currency.
// RON documents convert at 1.
func billingRate(ctx context.Context, db *gorm.DB, fetcher RateFetcher, currency string) (decimal.Decimal, error) {
	if currency == "" || currency == "RON" {
		return decimal.NewFromInt(1), nil
	}
	return GetTodayRate(ctx, db, fetcher, currency)
}

func buildInvoice(db *gorm.DB, kind models.InvoiceKind, clientId int, vatPercent, rate decimal.Decimal, actorId int) (*models.Invoice, error) {
	dueDays, err := models.GetSetting(db, "invoice_due_days", "15")
	if err != nil {
		return nil, err
	}
	days, err := strconv.Atoi(dueDays)
	if err != nil || days <= 0 {
		days = 15
	}
	now := time.Now().UTC()
	due := now.AddDate(0, 0, days)
	return &models.Invoice{
		Kind:         kind,
		Series:       models.SeriesFor(kind),
		ClientId:     clientId,
		Status:       models.InvoiceStatusIssued,
		IssueDate:    now,
		DueDate:      &due,
		VatPercent:   vatPercent,
		Currency:     "RON",
		ExchangeRate: rate,
		CreatedById:  actorId,
	}, nil
}

// persistInvoice allocates the next number in the kind's sequence and
// writes the invoice, both inside one transaction.
func persistInvoice(db *gorm.DB, invoice *models.Invoice, actorId int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		number, err := models.NextInvoiceNumber(lockForUpdate(tx), invoice.Kind)
		if err != nil {
			return err
		}
		invoice.Number = number
		if err := tx.Create(invoice).Error; err != nil {
			return err
		}
		models.LogAudit(tx, "invoice", invoice.ID, invoice.FullNumber(), "issued", "", actorId)
		return nil
	})
}
