package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erp/ledgersync/internal/domain/ledger"
)

// ChartPolicy maps tax rates and entry kinds onto a concrete chart of
// accounts. Implementations return empty strings when they have no opinion.
type ChartPolicy interface {
	// TaxLabel is the deterministic name of a provisioned tax
	TaxLabel(percent decimal.Decimal, direction ledger.TaxDirection) string

	// TaxGroupHints are name fragments tried in order to find a tax group
	TaxGroupHints(percent decimal.Decimal, direction ledger.TaxDirection) []string

	// TaxAccountPrefix is the account code prefix attached to a provisioned tax
	TaxAccountPrefix(direction ledger.TaxDirection) string

	// ExpenseAccountPrefix is the account code prefix for fallback lines
	ExpenseAccountPrefix(kind ledger.EntryKind) string

	// PayableAccountPrefix is the account code prefix of the entry's payable side
	PayableAccountPrefix(kind ledger.EntryKind) string
}

// UniformChartPolicy follows the Turkish uniform chart of accounts
// (Tek Düzen Hesap Planı)
type UniformChartPolicy struct{}

// NewUniformChartPolicy creates the default chart policy
func NewUniformChartPolicy() *UniformChartPolicy {
	return &UniformChartPolicy{}
}

// TaxLabel implements ChartPolicy
func (UniformChartPolicy) TaxLabel(percent decimal.Decimal, direction ledger.TaxDirection) string {
	suffix := "Satış"
	switch direction {
	case ledger.TaxDirectionPurchase:
		suffix = "Alış"
	case ledger.TaxDirectionNone:
		suffix = "Genel"
	}
	return fmt.Sprintf("KDV %%%s Dahil (%s)", percent.String(), suffix)
}

// TaxGroupHints implements ChartPolicy
func (UniformChartPolicy) TaxGroupHints(percent decimal.Decimal, _ ledger.TaxDirection) []string {
	return []string{
		fmt.Sprintf("KDV %%%s", percent.String()),
		fmt.Sprintf("%%%s", percent.String()),
		"KDV",
	}
}

// TaxAccountPrefix implements ChartPolicy. Only purchase taxes get an
// account: 191 Indirilecek KDV.
func (UniformChartPolicy) TaxAccountPrefix(direction ledger.TaxDirection) string {
	if direction == ledger.TaxDirectionPurchase {
		return "191"
	}
	return ""
}

// ExpenseAccountPrefix implements ChartPolicy: 770 Genel Yönetim Giderleri
func (UniformChartPolicy) ExpenseAccountPrefix(kind ledger.EntryKind) string {
	switch kind {
	case ledger.EntryKindSalary, ledger.EntryKindTax:
		return "770"
	default:
		return ""
	}
}

// PayableAccountPrefix implements ChartPolicy: 335 Personele Borçlar,
// 360 Ödenecek Vergi ve Fonlar
func (UniformChartPolicy) PayableAccountPrefix(kind ledger.EntryKind) string {
	switch kind {
	case ledger.EntryKindSalary:
		return "335"
	case ledger.EntryKindTax:
		return "360"
	default:
		return ""
	}
}
