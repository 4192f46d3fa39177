package reconcile

import (
	"context"
	"encoding/json"
)

// Resource types exposed by the upstream API
const (
	TypeAccounts            = "accounts"
	TypeContacts            = "contacts"
	TypeEmployees           = "employees"
	TypeProducts            = "products"
	TypeSalesInvoices       = "sales_invoices"
	TypeSalesInvoiceDetails = "sales_invoice_details"
	TypePurchaseBills       = "purchase_bills"
	TypePurchaseBillDetails = "purchase_bill_details"
	TypeSalaries            = "salaries"
	TypeTaxes               = "taxes"
	TypePayments            = "payments"
	TypeTransactions        = "transactions"
)

// Ref points at another resource by type and id
type Ref struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// IsZero returns true if the ref is empty
func (r Ref) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// Relationship holds the refs of one named relationship. Many is true when
// the upstream sent an array, even an empty one.
type Relationship struct {
	Refs []Ref
	Many bool
}

// One returns the first ref, if any
func (r Relationship) One() (Ref, bool) {
	if len(r.Refs) == 0 {
		return Ref{}, false
	}
	return r.Refs[0], true
}

// Resource is one upstream record, immutable for the duration of a run.
// Attributes stay raw until decoded into a typed struct with DecodeAttributes.
type Resource struct {
	Type          string
	ID            string
	Attributes    json.RawMessage
	Relationships map[string]Relationship
}

// Ref returns the resource's own (type, id) pair
func (r *Resource) Ref() Ref {
	return Ref{Type: r.Type, ID: r.ID}
}

// Relationship returns the named relationship; a missing name yields an
// empty relationship
func (r *Resource) Relationship(name string) Relationship {
	if r.Relationships == nil {
		return Relationship{}
	}
	return r.Relationships[name]
}

// RelatedID returns the id of the first ref of a relationship
func (r *Resource) RelatedID(name string) (string, bool) {
	ref, ok := r.Relationship(name).One()
	if !ok || ref.ID == "" {
		return "", false
	}
	return ref.ID, true
}

// Batch is one page: primary records plus the included set used to resolve
// their relationships. Relationships are never resolved across batches.
type Batch struct {
	Primary  []Resource
	Included []Resource
}

// Document is a single resource fetched with its included set
type Document struct {
	Primary  Resource
	Included []Resource
}

// Query carries the list parameters of a collection fetch
type Query struct {
	Include []string
	Sort    string
	Filters map[string]string
}

// FetchResult is the outcome of a paged fetch. Truncated is set when a
// page failed or the page cap stopped the loop before the upstream ran out
// of data, so a short result is never mistaken for "no more data".
type FetchResult struct {
	Batches   []Batch
	Truncated bool
	Pages     int
	// Err is the error that truncated the fetch, if any
	Err error
}

// RecordCount returns the number of primary records over all batches
func (r *FetchResult) RecordCount() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Primary)
	}
	return n
}

// Source is the upstream accounting service
type Source interface {
	// FetchAll retrieves every page of a collection. A failure after the
	// first request is reported through FetchResult.Truncated; only fatal
	// conditions (configuration, authentication) return an error.
	FetchAll(ctx context.Context, resourceType string, query Query) (*FetchResult, error)

	// FetchOne retrieves one resource with the given relationships included
	FetchOne(ctx context.Context, resourceType, id string, include ...string) (*Document, error)

	// TestConnection performs only the token exchange
	TestConnection(ctx context.Context) error
}
