package reconcile

import (
	"strings"

	"github.com/erp/ledgersync/internal/domain/ledger"
)

// Reference tag prefixes. The prefix of an entry's reference tag decides
// which endpoint its payment follow-up is fetched from, so these strings
// are part of the upstream contract.
const (
	TagSales    = "SLS-"
	TagPurchase = "PRS-"
	TagSalary   = "MAAS-"
	TagTax      = "VERGI-"
)

var tagByKind = map[ledger.EntryKind]string{
	ledger.EntryKindCustomerInvoice: TagSales,
	ledger.EntryKindVendorBill:      TagPurchase,
	ledger.EntryKindSalary:          TagSalary,
	ledger.EntryKindTax:             TagTax,
}

// ReferenceTag returns the namespaced tag of an upstream record
func ReferenceTag(kind ledger.EntryKind, externalID string) string {
	return tagByKind[kind] + externalID
}

// ParseTag splits a reference tag into its entry kind and external id
func ParseTag(ref string) (ledger.EntryKind, string, bool) {
	for kind, prefix := range tagByKind {
		if strings.HasPrefix(ref, prefix) {
			return kind, strings.TrimPrefix(ref, prefix), true
		}
	}
	return "", "", false
}

// EndpointForTag routes a payment follow-up by tag prefix: salaries for
// MAAS-, taxes for VERGI-, purchase bills for everything else
func EndpointForTag(ref string) string {
	switch {
	case strings.HasPrefix(ref, TagSalary):
		return TypeSalaries
	case strings.HasPrefix(ref, TagTax):
		return TypeTaxes
	default:
		return TypePurchaseBills
	}
}
