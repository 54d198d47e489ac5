package models

// Closed enumerations for every document lifecycle, each with a single
// transition table. Status checks go through CanTransitionTo instead of
// string comparisons scattered across handlers.

type InvoiceKind string

const (
	InvoiceKindProforma InvoiceKind = "proforma"
	InvoiceKindFiscal   InvoiceKind = "fiscal"
)

type InvoiceStatus string

const (
	InvoiceStatusIssued        InvoiceStatus = "issued"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusConfirmed     InvoiceStatus = "confirmed"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusCanceled      InvoiceStatus = "canceled"
)

// UnpaidInvoiceStatuses are the statuses a payment can still be matched against.
var UnpaidInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusIssued,
	InvoiceStatusSent,
	InvoiceStatusPartiallyPaid,
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusIssued:        {InvoiceStatusSent, InvoiceStatusConfirmed, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCanceled},
	InvoiceStatusSent:          {InvoiceStatusConfirmed, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCanceled},
	InvoiceStatusConfirmed:     {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCanceled},
	InvoiceStatusPartiallyPaid: {InvoiceStatusPaid, InvoiceStatusIssued, InvoiceStatusCanceled},
	InvoiceStatusPaid:          {InvoiceStatusIssued},
	InvoiceStatusCanceled:      {},
}

func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceTransitions[s]
	return ok
}

func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, t := range invoiceTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRefused  QuoteStatus = "refused"
	QuoteStatusExpired  QuoteStatus = "expired"
	QuoteStatusOrdered  QuoteStatus = "ordered"
)

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft:    {QuoteStatusSent, QuoteStatusAccepted, QuoteStatusRefused, QuoteStatusExpired},
	QuoteStatusSent:     {QuoteStatusAccepted, QuoteStatusRefused, QuoteStatusExpired},
	QuoteStatusAccepted: {QuoteStatusOrdered, QuoteStatusRefused, QuoteStatusExpired},
	QuoteStatusRefused:  {QuoteStatusSent},
	QuoteStatusExpired:  {QuoteStatusSent},
	QuoteStatusOrdered:  {QuoteStatusAccepted},
}

func (s QuoteStatus) Valid() bool {
	_, ok := quoteTransitions[s]
	return ok
}

func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	for _, t := range quoteTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusNew        OrderStatus = "new"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProduction OrderStatus = "production"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusFinalized  OrderStatus = "finalized"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// PickableOrderStatuses are the order states a picking may be generated from.
var PickableOrderStatuses = []OrderStatus{
	OrderStatusConfirmed,
	OrderStatusProduction,
	OrderStatusReady,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusNew, OrderStatusCanceled}, // administrator only
	OrderStatusNew:        {OrderStatusConfirmed, OrderStatusCanceled},
	OrderStatusConfirmed:  {OrderStatusProduction, OrderStatusReady, OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusProduction: {OrderStatusReady, OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusReady:      {OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusDelivered:  {OrderStatusFinalized},
	OrderStatusFinalized:  {},
	OrderStatusCanceled:   {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type ReceiptStatus string

const (
	ReceiptStatusDraft             ReceiptStatus = "draft"
	ReceiptStatusBooked            ReceiptStatus = "booked"
	ReceiptStatusUnderVerification ReceiptStatus = "under_verification"
	ReceiptStatusVerified          ReceiptStatus = "verified"
)

var receiptTransitions = map[ReceiptStatus][]ReceiptStatus{
	ReceiptStatusDraft:             {ReceiptStatusBooked, ReceiptStatusUnderVerification},
	ReceiptStatusBooked:            {ReceiptStatusUnderVerification},
	ReceiptStatusUnderVerification: {ReceiptStatusVerified},
	ReceiptStatusVerified:          {},
}

func (s ReceiptStatus) Valid() bool {
	_, ok := receiptTransitions[s]
	return ok
}

func (s ReceiptStatus) CanTransitionTo(next ReceiptStatus) bool {
	for _, t := range receiptTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type PickingStatus string

const (
	PickingStatusNew        PickingStatus = "new"
	PickingStatusInProgress PickingStatus = "in_progress"
	PickingStatusComplete   PickingStatus = "complete"
	PickingStatusDelivered  PickingStatus = "delivered"
	PickingStatusCanceled   PickingStatus = "canceled"
)

var pickingTransitions = map[PickingStatus][]PickingStatus{
	PickingStatusNew:        {PickingStatusInProgress, PickingStatusCanceled},
	PickingStatusInProgress: {PickingStatusComplete, PickingStatusCanceled},
	PickingStatusComplete:   {PickingStatusDelivered, PickingStatusCanceled},
	PickingStatusDelivered:  {},
	PickingStatusCanceled:   {},
}

func (s PickingStatus) Valid() bool {
	_, ok := pickingTransitions[s]
	return ok
}

func (s PickingStatus) CanTransitionTo(next PickingStatus) bool {
	for _, t := range pickingTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnreconciled PaymentStatus = "unreconciled"
	PaymentStatusAuto         PaymentStatus = "auto"
	PaymentStatusManual       PaymentStatus = "manual"
	PaymentStatusIgnored      PaymentStatus = "ignored"
)

type PaymentSource string

const (
	PaymentSourceCSV    PaymentSource = "csv"
	PaymentSourceXLSX   PaymentSource = "xlsx"
	PaymentSourceMock   PaymentSource = "mock"
	PaymentSourceManual PaymentSource = "manual"
)

type MovementType string

const (
	MovementTypeReceipt     MovementType = "receipt"
	MovementTypeOrderExit   MovementType = "order_exit"
	MovementTypeTransfer    MovementType = "transfer"
	MovementTypeAdjustment  MovementType = "adjustment"
	MovementTypeInventory   MovementType = "inventory"
	MovementTypeReservation MovementType = "reservation"
)

// MatchType names the reconciliation priority that produced a match.
type MatchType string

const (
	MatchTypeReference    MatchType = "reference"
	MatchTypeAmountName   MatchType = "amount+name"
	MatchTypeUniqueAmount MatchType = "unique-amount"
	MatchTypeTaxId        MatchType = "tax-id"
	MatchTypeManual       MatchType = "manual"
)

type ActivityTrigger string

const (
	TriggerManual          ActivityTrigger = "manual"
	TriggerQuoteToOrder    ActivityTrigger = "quote_to_order"
	TriggerOrderConfirmed  ActivityTrigger = "order_confirmed"
	TriggerOrderProduction ActivityTrigger = "order_production"
	TriggerOrderDelivered  ActivityTrigger = "order_delivered"
)

type ActivityStatus string

const (
	ActivityStatusTodo       ActivityStatus = "todo"
	ActivityStatusInProgress ActivityStatus = "in_progress"
	ActivityStatusWaiting    ActivityStatus = "waiting"
	ActivityStatusDone       ActivityStatus = "done"
	ActivityStatusCanceled   ActivityStatus = "canceled"
)
