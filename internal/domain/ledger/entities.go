package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// JournalType is the kind of financial account
type JournalType string

const (
	JournalTypeCash JournalType = "cash"
	JournalTypeBank JournalType = "bank"
)

// TaxDirection is the usage direction of a tax
type TaxDirection string

const (
	TaxDirectionSale     TaxDirection = "sale"
	TaxDirectionPurchase TaxDirection = "purchase"
	TaxDirectionNone     TaxDirection = "none"
)

// IsValid returns true if the direction is valid
func (d TaxDirection) IsValid() bool {
	switch d {
	case TaxDirectionSale, TaxDirectionPurchase, TaxDirectionNone:
		return true
	default:
		return false
	}
}

// EntryKind identifies the kind of ledger entry. It is part of the
// deduplication key: two entries of different kinds may share an external id.
type EntryKind string

const (
	// EntryKindCustomerInvoice is a sales invoice
	EntryKindCustomerInvoice EntryKind = "out_invoice"
	// EntryKindVendorBill is a purchase bill
	EntryKindVendorBill EntryKind = "in_invoice"
	// EntryKindSalary is a salary accrual
	EntryKindSalary EntryKind = "salary"
	// EntryKindTax is a tax accrual
	EntryKindTax EntryKind = "tax"
)

// IsValid returns true if the kind is valid
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryKindCustomerInvoice, EntryKindVendorBill, EntryKindSalary, EntryKindTax:
		return true
	default:
		return false
	}
}

// IsPayable returns true for kinds that are settled by outgoing payments
func (k EntryKind) IsPayable() bool {
	return k == EntryKindVendorBill || k == EntryKindSalary || k == EntryKindTax
}

// PayableKinds lists the kinds considered by payment synchronization
func PayableKinds() []EntryKind {
	return []EntryKind{EntryKindVendorBill, EntryKindSalary, EntryKindTax}
}

// EntryState is the lifecycle state of an entry
type EntryState string

const (
	EntryStateDraft  EntryState = "draft"
	EntryStatePosted EntryState = "posted"
)

// PaymentState tracks settlement of an entry
type PaymentState string

const (
	PaymentStateNotPaid PaymentState = "not_paid"
	PaymentStatePartial PaymentState = "partial"
	PaymentStatePaid    PaymentState = "paid"
)

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// Journal is a cash or bank financial account
type Journal struct {
	ID         uuid.UUID
	ExternalID string
	Name       string
	Code       string
	Type       JournalType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LinkedExternalID returns the upstream id the journal is linked to
func (j *Journal) LinkedExternalID() string {
	return j.ExternalID
}

// Party is a customer, supplier or employee
type Party struct {
	ID           uuid.UUID
	ExternalID   string
	Name         string
	Email        string
	TaxNumber    string
	Street       string
	City         string
	Phone        string
	Comment      string
	IsCompany    bool
	SupplierRank int
	CustomerRank int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LinkedExternalID returns the upstream id the party is linked to
func (p *Party) LinkedExternalID() string {
	return p.ExternalID
}

// Product is a sellable or purchasable item
type Product struct {
	ID            uuid.UUID
	ExternalID    string
	Name          string
	Code          string
	Barcode       string
	ListPrice     decimal.Decimal
	StandardPrice decimal.Decimal
	SaleTaxID     *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LinkedExternalID returns the upstream id the product is linked to
func (p *Product) LinkedExternalID() string {
	return p.ExternalID
}

// Tax is a local tax rate. Amount is stored as a percentage (20 for 20%).
type Tax struct {
	ID                uuid.UUID
	Name              string
	Amount            decimal.Decimal
	Direction         TaxDirection
	PriceInclude      bool
	IncludeBaseAmount bool
	Active            bool
	// Priority is the primary ordering key; Sequence breaks ties and is
	// assigned by the store in creation order.
	Priority  int
	Sequence  int64
	GroupID   *uuid.UUID
	AccountID *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaxGroup groups taxes for reporting
type TaxGroup struct {
	ID   uuid.UUID
	Name string
}

// Account is a chart-of-accounts line
type Account struct {
	ID   uuid.UUID
	Code string
	Name string
}

// Line is one line of an entry
type Line struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	// TaxAmount is tax charged on top of the subtotal. It is zero for
	// untaxed lines and for taxes already included in the unit price.
	TaxAmount decimal.Decimal
	TaxID     *uuid.UUID
	ProductID *uuid.UUID
	AccountID *uuid.UUID
}

// Subtotal returns quantity * unit price
func (l Line) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Gross returns the amount owed for the line
func (l Line) Gross() decimal.Decimal {
	return l.Subtotal().Add(l.TaxAmount)
}

// Entry is an invoice, bill or journal entry
type Entry struct {
	ID               uuid.UUID
	ExternalID       string
	Kind             EntryKind
	State            EntryState
	PaymentState     PaymentState
	PartyID          *uuid.UUID
	PayableAccountID *uuid.UUID
	InvoiceDate      time.Time
	DueDate          time.Time
	Ref              string
	Lines            []Line
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Total returns the amount owed, excluded taxes included
func (e *Entry) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Gross())
	}
	return total
}

// IsPosted returns true if the entry is posted
func (e *Entry) IsPosted() bool {
	return e.State == EntryStatePosted
}

// SettlementState derives the payment state from the amount paid so far
func (e *Entry) SettlementState(paid decimal.Decimal) PaymentState {
	switch {
	case !paid.IsPositive():
		return PaymentStateNotPaid
	case paid.GreaterThanOrEqual(e.Total()):
		return PaymentStatePaid
	default:
		return PaymentStatePartial
	}
}

// Payment is a payment registered against an entry
type Payment struct {
	ID            uuid.UUID
	ExternalID    string
	EntryID       uuid.UUID
	JournalID     uuid.UUID
	Amount        decimal.Decimal
	Date          time.Time
	Communication string
	CreatedAt     time.Time
}
