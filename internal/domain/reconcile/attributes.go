package reconcile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var attributeValidator = validator.New()

// AccountAttributes are the attributes of a financial account
type AccountAttributes struct {
	Name        string `json:"name" validate:"required"`
	AccountType string `json:"account_type"`
	Currency    string `json:"currency"`
	BankName    string `json:"bank_name"`
	IBAN        string `json:"iban"`
}

// ContactAttributes are the attributes of a customer or supplier
type ContactAttributes struct {
	Name        string `json:"name" validate:"required"`
	ShortName   string `json:"short_name"`
	Email       string `json:"email"`
	TaxNumber   string `json:"tax_number"`
	TaxOffice   string `json:"tax_office"`
	Address     string `json:"address"`
	District    string `json:"district"`
	City        string `json:"city"`
	Phone       string `json:"phone"`
	MobilePhone string `json:"mobile_phone"`
	IBAN        string `json:"iban"`
	ContactType string `json:"contact_type"`
	AccountType string `json:"account_type"`
}

// EmployeeAttributes are the attributes of an employee
type EmployeeAttributes struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email"`
	TCKN  string `json:"tckn"`
	IBAN  string `json:"iban"`
}

// ProductAttributes are the attributes of a product
type ProductAttributes struct {
	Name        string              `json:"name" validate:"required"`
	Code        string              `json:"code"`
	Barcode     string              `json:"barcode"`
	ListPrice   decimal.NullDecimal `json:"list_price"`
	BuyingPrice decimal.NullDecimal `json:"buying_price"`
	VatRate     decimal.NullDecimal `json:"vat_rate"`
}

// DocumentAttributes are the header attributes of an invoice, bill, salary
// or tax record
type DocumentAttributes struct {
	Description string              `json:"description"`
	IssueDate   string              `json:"issue_date"`
	DueDate     string              `json:"due_date"`
	NetTotal    decimal.NullDecimal `json:"net_total"`
	GrossTotal  decimal.NullDecimal `json:"gross_total"`
	TotalVat    decimal.NullDecimal `json:"total_vat"`
	Remaining   decimal.NullDecimal `json:"remaining"`
	Currency    string              `json:"currency"`
}

// HeaderTotal returns net_total, else gross_total, else zero
func (a DocumentAttributes) HeaderTotal() decimal.Decimal {
	if a.NetTotal.Valid && !a.NetTotal.Decimal.IsZero() {
		return a.NetTotal.Decimal
	}
	if a.GrossTotal.Valid {
		return a.GrossTotal.Decimal
	}
	return decimal.Zero
}

// DetailAttributes are the attributes of one invoice or bill line
type DetailAttributes struct {
	Description string              `json:"description"`
	Name        string              `json:"name"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	NetTotal    decimal.NullDecimal `json:"net_total"`
	Total       decimal.NullDecimal `json:"total"`
	VatAmount   decimal.NullDecimal `json:"vat_amount"`
	VatRate     decimal.NullDecimal `json:"vat_rate"`
}

// Label returns the first non-empty of description and name
func (a DetailAttributes) Label() string {
	if a.Description != "" {
		return a.Description
	}
	return a.Name
}

// LineSource converts the detail into valuation input
func (a DetailAttributes) LineSource() LineSource {
	return LineSource{
		Quantity:  a.Quantity,
		UnitPrice: a.UnitPrice,
		NetTotal:  a.NetTotal,
		Total:     a.Total,
		VatAmount: a.VatAmount,
	}
}

// PaymentAttributes are the attributes of a payment
type PaymentAttributes struct {
	Amount   decimal.NullDecimal `json:"amount"`
	Date     string              `json:"date"`
	Notes    string              `json:"notes"`
	Currency string              `json:"currency"`
}

// DecodeAttributes decodes and validates a resource's raw attributes
func DecodeAttributes[T any](r *Resource) (*T, error) {
	var attrs T
	if len(r.Attributes) > 0 {
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrInvalidAttributes, r.Type, r.ID, err)
		}
	}
	if err := attributeValidator.Struct(&attrs); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrInvalidAttributes, r.Type, r.ID, err)
	}
	return &attrs, nil
}

// dateLayout is the upstream date format
const dateLayout = "2006-01-02"

// ParseDate parses an upstream date, returning fallback when the value is
// empty or malformed
func ParseDate(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, value); err != nil {
			return fallback
		}
	}
	return t
}
