package reconcile

import (
	"github.com/shopspring/decimal"
)

// unitPricePlaces is the precision unit prices are rounded to
const unitPricePlaces = 6

// TaxMode is the pricing mode of a resolved tax
type TaxMode int

const (
	TaxModeNone TaxMode = iota
	TaxModeExclusive
	TaxModeInclusive
)

// String returns the string representation of TaxMode
func (m TaxMode) String() string {
	switch m {
	case TaxModeExclusive:
		return "exclusive"
	case TaxModeInclusive:
		return "inclusive"
	default:
		return "none"
	}
}

// ValuationBasis names the source field a unit price was derived from
type ValuationBasis string

const (
	BasisUnitPrice    ValuationBasis = "unit_price"
	BasisNetTotal     ValuationBasis = "net_total"
	BasisTotal        ValuationBasis = "total"
	BasisTotalLessVat ValuationBasis = "total_less_vat"
	BasisNetPlusVat   ValuationBasis = "net_plus_vat"
	BasisGrossedUp    ValuationBasis = "unit_price_grossed_up"
	BasisZeroFallback ValuationBasis = "zero"
)

// LineSource holds the optional price fields of one upstream line
type LineSource struct {
	Quantity  decimal.NullDecimal
	UnitPrice decimal.NullDecimal
	NetTotal  decimal.NullDecimal
	Total     decimal.NullDecimal
	VatAmount decimal.NullDecimal
}

// Valuation is the computed line price
type Valuation struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Basis     ValuationBasis
	// Ambiguous is set when every price field was empty and zero was used
	Ambiguous bool
}

// Valuate computes a line's unit price for the given tax match.
//
//   - no tax:    unit_price, else net_total/qty, else total/qty
//   - exclusive: unit_price, else net_total/qty, else (total-vat_amount)/qty
//   - inclusive: total/qty, else (net_total+vat_amount)/qty,
//     else unit_price*(1+rate/100)
//
// unit_price is per unit already and is never divided. Totals always are.
// Quantity defaults to 1 when absent or zero.
func Valuate(src LineSource, match TaxMatch) Valuation {
	qty := one
	if src.Quantity.Valid && !src.Quantity.Decimal.IsZero() {
		qty = src.Quantity.Decimal
	}
	unit := nonZero(src.UnitPrice)
	net := nonZero(src.NetTotal)
	total := nonZero(src.Total)
	vat := valueOrZero(src.VatAmount)

	v := Valuation{Quantity: qty}
	perUnit := func(value decimal.Decimal, basis ValuationBasis) Valuation {
		v.UnitPrice = value.Div(qty).Round(unitPricePlaces)
		v.Basis = basis
		return v
	}

	switch match.Mode() {
	case TaxModeInclusive:
		switch {
		case total != nil:
			return perUnit(*total, BasisTotal)
		case net != nil:
			return perUnit(net.Add(vat), BasisNetPlusVat)
		case unit != nil:
			v.UnitPrice = unit.Mul(one.Add(match.Rate.Div(hundred))).Round(unitPricePlaces)
			v.Basis = BasisGrossedUp
			return v
		}
	case TaxModeExclusive:
		switch {
		case unit != nil:
			v.UnitPrice = unit.Round(unitPricePlaces)
			v.Basis = BasisUnitPrice
			return v
		case net != nil:
			return perUnit(*net, BasisNetTotal)
		case total != nil:
			return perUnit(total.Sub(vat), BasisTotalLessVat)
		}
	default:
		switch {
		case unit != nil:
			v.UnitPrice = unit.Round(unitPricePlaces)
			v.Basis = BasisUnitPrice
			return v
		case net != nil:
			return perUnit(*net, BasisNetTotal)
		case total != nil:
			return perUnit(*total, BasisTotal)
		}
	}

	v.UnitPrice = decimal.Zero
	v.Basis = BasisZeroFallback
	v.Ambiguous = true
	return v
}

func nonZero(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid || d.Decimal.IsZero() {
		return nil
	}
	return &d.Decimal
}

func valueOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
