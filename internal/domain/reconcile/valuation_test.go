package reconcile

import (
	"testing"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestValuate(t *testing.T) {
	inclusive20 := TaxMatch{Rate: decimal.NewFromInt(20), Tax: &ledger.Tax{PriceInclude: true}, Inclusive: true}
	exclusive20 := TaxMatch{Rate: decimal.NewFromInt(20), Tax: &ledger.Tax{}, Inclusive: false}
	noTax := TaxMatch{}

	tests := []struct {
		name      string
		src       LineSource
		match     TaxMatch
		wantPrice string
		wantQty   string
		wantBasis ValuationBasis
		ambiguous bool
	}{
		{
			name:      "inclusive with gross total",
			src:       LineSource{Quantity: dec("2"), Total: dec("120"), VatAmount: dec("20")},
			match:     inclusive20,
			wantPrice: "60", wantQty: "2", wantBasis: BasisTotal,
		},
		{
			name:      "inclusive from net plus vat",
			src:       LineSource{Quantity: dec("4"), NetTotal: dec("100"), VatAmount: dec("20")},
			match:     inclusive20,
			wantPrice: "30", wantQty: "4", wantBasis: BasisNetPlusVat,
		},
		{
			name:      "inclusive grosses up unit price",
			src:       LineSource{Quantity: dec("3"), UnitPrice: dec("50")},
			match:     inclusive20,
			wantPrice: "60", wantQty: "3", wantBasis: BasisGrossedUp,
		},
		{
			name:      "exclusive keeps unit price",
			src:       LineSource{UnitPrice: dec("50")},
			match:     exclusive20,
			wantPrice: "50", wantQty: "1", wantBasis: BasisUnitPrice,
		},
		{
			name:      "exclusive from net total",
			src:       LineSource{Quantity: dec("5"), NetTotal: dec("250"), Total: dec("300")},
			match:     exclusive20,
			wantPrice: "50", wantQty: "5", wantBasis: BasisNetTotal,
		},
		{
			name:      "exclusive from total less vat",
			src:       LineSource{Quantity: dec("2"), Total: dec("120"), VatAmount: dec("20")},
			match:     exclusive20,
			wantPrice: "50", wantQty: "2", wantBasis: BasisTotalLessVat,
		},
		{
			name:      "no tax with only total",
			src:       LineSource{Quantity: dec("3"), Total: dec("300")},
			match:     noTax,
			wantPrice: "100", wantQty: "3", wantBasis: BasisTotal,
		},
		{
			name:      "no tax unit price is never divided",
			src:       LineSource{Quantity: dec("3"), UnitPrice: dec("40"), Total: dec("120")},
			match:     noTax,
			wantPrice: "40", wantQty: "3", wantBasis: BasisUnitPrice,
		},
		{
			name:      "no tax falls to net total when unit price is zero",
			src:       LineSource{Quantity: dec("2"), UnitPrice: dec("0"), NetTotal: dec("90")},
			match:     noTax,
			wantPrice: "45", wantQty: "2", wantBasis: BasisNetTotal,
		},
		{
			name:      "zero quantity defaults to one",
			src:       LineSource{Quantity: dec("0"), Total: dec("75")},
			match:     noTax,
			wantPrice: "75", wantQty: "1", wantBasis: BasisTotal,
		},
		{
			name:      "absent quantity defaults to one",
			src:       LineSource{Total: dec("118")},
			match:     inclusive20,
			wantPrice: "118", wantQty: "1", wantBasis: BasisTotal,
		},
		{
			name:      "all fields empty is ambiguous zero",
			src:       LineSource{Quantity: dec("2"), UnitPrice: dec("0")},
			match:     inclusive20,
			wantPrice: "0", wantQty: "2", wantBasis: BasisZeroFallback, ambiguous: true,
		},
		{
			name:      "repeating division is rounded",
			src:       LineSource{Quantity: dec("3"), Total: dec("100")},
			match:     noTax,
			wantPrice: "33.333333", wantQty: "3", wantBasis: BasisTotal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Valuate(tt.src, tt.match)
			assert.True(t, v.UnitPrice.Equal(decimal.RequireFromString(tt.wantPrice)), "unit price %s, want %s", v.UnitPrice, tt.wantPrice)
			assert.True(t, v.Quantity.Equal(decimal.RequireFromString(tt.wantQty)), "quantity %s, want %s", v.Quantity, tt.wantQty)
			assert.Equal(t, tt.wantBasis, v.Basis)
			assert.Equal(t, tt.ambiguous, v.Ambiguous)
		})
	}
}
