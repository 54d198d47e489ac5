package models_test

import (
	"testing"

	"bitbucket.org/hslsolutions/erp_backend/models"
)

func TestOrderTransitions(t *testing.T) {
	cases := []struct {
		from, to models.OrderStatus
		want     bool
	}{
		{models.OrderStatusPending, models.OrderStatusNew, true},
		{models.OrderStatusPending, models.OrderStatusCanceled, true},
		{models.OrderStatusPending, models.OrderStatusConfirmed, false},
		{models.OrderStatusPending, models.OrderStatusDelivered, false},
		{models.OrderStatusNew, models.OrderStatusConfirmed, true},
		{models.OrderStatusNew, models.OrderStatusPending, false},
		{models.OrderStatusConfirmed, models.OrderStatusProduction, true},
		{models.OrderStatusConfirmed, models.OrderStatusDelivered, true},
		{models.OrderStatusProduction, models.OrderStatusReady, true},
		{models.OrderStatusReady, models.OrderStatusDelivered, true},
		{models.OrderStatusDelivered, models.OrderStatusFinalized, true},
		{models.OrderStatusDelivered, models.OrderStatusCanceled, false},
		{models.OrderStatusFinalized, models.OrderStatusDelivered, false},
		{models.OrderStatusCanceled, models.OrderStatusNew, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("order %s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestQuoteTransitions(t *testing.T) {
	cases := []struct {
		from, to models.QuoteStatus
		want     bool
	}{
		{models.QuoteStatusDraft, models.QuoteStatusSent, true},
		{models.QuoteStatusDraft, models.QuoteStatusOrdered, false},
		{models.QuoteStatusSent, models.QuoteStatusAccepted, true},
		{models.QuoteStatusAccepted, models.QuoteStatusOrdered, true},
		{models.QuoteStatusRefused, models.QuoteStatusSent, true},
		{models.QuoteStatusExpired, models.QuoteStatusSent, true},
		{models.QuoteStatusOrdered, models.QuoteStatusAccepted, true},
		{models.QuoteStatusOrdered, models.QuoteStatusRefused, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("quote %s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestReceiptTransitions(t *testing.T) {
	cases := []struct {
		from, to models.ReceiptStatus
		want     bool
	}{
		{models.ReceiptStatusDraft, models.ReceiptStatusBooked, true},
		{models.ReceiptStatusDraft, models.ReceiptStatusUnderVerification, true},
		{models.ReceiptStatusDraft, models.ReceiptStatusVerified, false},
		{models.ReceiptStatusBooked, models.ReceiptStatusUnderVerification, true},
		{models.ReceiptStatusUnderVerification, models.ReceiptStatusVerified, true},
		{models.ReceiptStatusUnderVerification, models.ReceiptStatusDraft, false},
		{models.ReceiptStatusVerified, models.ReceiptStatusUnderVerification, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("receipt %s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestInvoiceTransitions(t *testing.T) {
	cases := []struct {
		from, to models.InvoiceStatus
		want     bool
	}{
		{models.InvoiceStatusIssued, models.InvoiceStatusPaid, true},
		{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid, true},
		{models.InvoiceStatusPartiallyPaid, models.InvoiceStatusPaid, true},
		// Unreconciling rolls payments back.
		{models.InvoiceStatusPartiallyPaid, models.InvoiceStatusIssued, true},
		{models.InvoiceStatusPaid, models.InvoiceStatusIssued, true},
		{models.InvoiceStatusPaid, models.InvoiceStatusCanceled, false},
		{models.InvoiceStatusCanceled, models.InvoiceStatusIssued, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("invoice %s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStatusValidity(t *testing.T) {
	if models.OrderStatus("shipped").Valid() {
		t.Error("unknown order status accepted")
	}
	if !models.OrderStatusProduction.Valid() {
		t.Error("production rejected")
	}
	if models.PickingStatus("paused").Valid() {
		t.Error("unknown picking status accepted")
	}
	if !models.PickingStatusDelivered.Valid() {
		t.Error("delivered rejected")
	}
}
