package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// Kind is one synchronizable entity kind
type Kind string

const (
	KindAccounts      Kind = "accounts"
	KindContacts      Kind = "contacts"
	KindProducts      Kind = "products"
	KindSalesInvoices Kind = "sales_invoices"
	KindPurchaseBills Kind = "purchase_bills"
	KindSalaries      Kind = "salaries"
	KindTaxes         Kind = "taxes"
	KindPayments      Kind = "payments"
)

// Kinds returns every kind in dependency order: journals, parties and
// products before the documents that reference them, payments last
func Kinds() []Kind {
	return []Kind{
		KindAccounts,
		KindContacts,
		KindProducts,
		KindSalesInvoices,
		KindPurchaseBills,
		KindSalaries,
		KindTaxes,
		KindPayments,
	}
}

// ParseKind parses a kind name, accepting "parties" for contacts
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "parties" {
		return KindContacts, nil
	}
	for _, k := range Kinds() {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Result summarizes one orchestrator run
type Result struct {
	Kind      Kind `json:"kind"`
	Created   int  `json:"created"`
	Updated   int  `json:"updated"`
	Processed int  `json:"processed"`
	Skipped   int  `json:"skipped"`
	Truncated bool `json:"truncated"`
	// RateLimited is set when a 429 ended the payment loop early
	RateLimited bool          `json:"rate_limited,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// NewResult creates an empty result for a kind
func NewResult(kind Kind) *Result {
	return &Result{Kind: kind}
}

// String returns a one-line summary
func (r *Result) String() string {
	s := fmt.Sprintf("%s: %d created, %d updated, %d processed", r.Kind, r.Created, r.Updated, r.Processed)
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}
	if r.Truncated {
		s += " (truncated)"
	}
	if r.RateLimited {
		s += " (rate limited)"
	}
	return s
}
