package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/ledgersync/internal/domain/ledger"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// TaxMatch is the local tax chosen for an upstream rate. A match without a
// Tax means "no applicable tax".
type TaxMatch struct {
	// Rate is the upstream rate as a percentage (20 for 20%)
	Rate      decimal.Decimal
	Direction ledger.TaxDirection
	Tax       *ledger.Tax
	Inclusive bool
}

// Found returns true if a local tax applies
func (m TaxMatch) Found() bool {
	return m.Tax != nil
}

// TaxID returns the local tax id, or nil when no tax applies
func (m TaxMatch) TaxID() *uuid.UUID {
	if m.Tax == nil {
		return nil
	}
	id := m.Tax.ID
	return &id
}

// Mode returns the pricing mode used by valuation
func (m TaxMatch) Mode() TaxMode {
	switch {
	case m.Tax == nil:
		return TaxModeNone
	case m.Inclusive:
		return TaxModeInclusive
	default:
		return TaxModeExclusive
	}
}

// ExcludedTax returns the tax an exclusive match adds on top of base. It
// is zero when no tax applies or the tax is included in the price.
func (m TaxMatch) ExcludedTax(base decimal.Decimal) decimal.Decimal {
	if m.Mode() != TaxModeExclusive {
		return decimal.Zero
	}
	_, fraction := NormalizeRate(m.Tax.Amount)
	return base.Mul(fraction)
}

// NormalizeRate returns a rate as both a percentage and a fraction. Values
// below 1 are taken to be fractions already (0.20), anything else a
// percentage (20).
func NormalizeRate(rate decimal.Decimal) (percent, fraction decimal.Decimal) {
	if rate.Abs().LessThan(one) {
		return rate.Mul(hundred), rate
	}
	return rate, rate.Div(hundred)
}

// TaxResolver maps upstream VAT rates onto local taxes
type TaxResolver struct {
	taxes  ledger.TaxRepository
	chart  ledger.ChartRepository
	policy ChartPolicy
}

// NewTaxResolver creates a tax resolver
func NewTaxResolver(taxes ledger.TaxRepository, chart ledger.ChartRepository, policy ChartPolicy) *TaxResolver {
	if policy == nil {
		policy = NewUniformChartPolicy()
	}
	return &TaxResolver{taxes: taxes, chart: chart, policy: policy}
}

// Resolve returns the inclusive tax for a rate and direction. A null or zero
// rate returns "no tax" without touching the store. Otherwise the search
// runs in order: exact rate and direction, exact rate in any direction, name
// containing the integer rate; all restricted to active inclusive taxes.
// When nothing matches an inclusive tax is provisioned.
func (r *TaxResolver) Resolve(ctx context.Context, rate decimal.NullDecimal, direction ledger.TaxDirection) (TaxMatch, error) {
	if !rate.Valid || rate.Decimal.IsZero() {
		return TaxMatch{Direction: direction}, nil
	}
	percent, fraction := NormalizeRate(rate.Decimal)
	amounts := []decimal.Decimal{percent, fraction}

	queries := []ledger.TaxQuery{
		{Direction: &direction, Amounts: amounts, InclusiveOnly: true, ActiveOnly: true},
		{Amounts: amounts, InclusiveOnly: true, ActiveOnly: true},
		{NameContains: percent.Truncate(0).String(), InclusiveOnly: true, ActiveOnly: true},
	}
	for _, q := range queries {
		tax, err := r.first(ctx, q)
		if err != nil {
			return TaxMatch{}, err
		}
		if tax != nil {
			return TaxMatch{Rate: percent, Direction: direction, Tax: tax, Inclusive: true}, nil
		}
	}

	tax, err := r.provision(ctx, percent, direction)
	if err != nil {
		return TaxMatch{}, err
	}
	return TaxMatch{Rate: percent, Direction: direction, Tax: tax, Inclusive: true}, nil
}

// Find looks for an active tax with the exact rate and direction regardless
// of pricing mode. It never provisions.
func (r *TaxResolver) Find(ctx context.Context, rate decimal.NullDecimal, direction ledger.TaxDirection) (TaxMatch, error) {
	if !rate.Valid || rate.Decimal.IsZero() {
		return TaxMatch{Direction: direction}, nil
	}
	percent, fraction := NormalizeRate(rate.Decimal)
	tax, err := r.first(ctx, ledger.TaxQuery{
		Direction:  &direction,
		Amounts:    []decimal.Decimal{percent, fraction},
		ActiveOnly: true,
	})
	if err != nil {
		return TaxMatch{}, err
	}
	if tax == nil {
		return TaxMatch{Rate: percent, Direction: direction}, nil
	}
	return TaxMatch{Rate: percent, Direction: direction, Tax: tax, Inclusive: tax.PriceInclude}, nil
}

// ResolveAnyMode honors a pre-configured exclusive tax before falling back
// to Resolve. Purchase bill lines use it so an operator's exclusive setup
// is valued as exclusive.
func (r *TaxResolver) ResolveAnyMode(ctx context.Context, rate decimal.NullDecimal, direction ledger.TaxDirection) (TaxMatch, error) {
	match, err := r.Find(ctx, rate, direction)
	if err != nil || match.Found() {
		return match, err
	}
	return r.Resolve(ctx, rate, direction)
}

func (r *TaxResolver) first(ctx context.Context, q ledger.TaxQuery) (*ledger.Tax, error) {
	taxes, err := r.taxes.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find taxes: %w", err)
	}
	if len(taxes) == 0 {
		return nil, nil
	}
	tax := taxes[0]
	return &tax, nil
}

func (r *TaxResolver) provision(ctx context.Context, percent decimal.Decimal, direction ledger.TaxDirection) (*ledger.Tax, error) {
	label := r.policy.TaxLabel(percent, direction)

	existing, err := r.taxes.FindByName(ctx, label)
	switch {
	case err == nil:
		existing.Active = true
		existing.PriceInclude = true
		existing.IncludeBaseAmount = false
		existing.UpdatedAt = time.Now()
		if err := r.taxes.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("reactivate tax %q: %w", label, err)
		}
		return existing, nil
	case !errors.Is(err, ledger.ErrNotFound):
		return nil, fmt.Errorf("find tax %q: %w", label, err)
	}

	now := time.Now()
	tax := &ledger.Tax{
		ID:                uuid.New(),
		Name:              label,
		Amount:            percent,
		Direction:         direction,
		PriceInclude:      true,
		IncludeBaseAmount: false,
		Active:            true,
		Priority:          1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if group, err := r.findGroup(ctx, percent, direction); err != nil {
		return nil, err
	} else if group != nil {
		tax.GroupID = &group.ID
	}
	if prefix := r.policy.TaxAccountPrefix(direction); prefix != "" {
		account, err := r.chart.FindAccountByCodePrefix(ctx, prefix)
		switch {
		case err == nil:
			tax.AccountID = &account.ID
		case !errors.Is(err, ledger.ErrNotFound):
			return nil, fmt.Errorf("find tax account %s: %w", prefix, err)
		}
	}

	if err := r.taxes.Create(ctx, tax); err != nil {
		return nil, fmt.Errorf("create tax %q: %w", label, err)
	}
	return tax, nil
}

func (r *TaxResolver) findGroup(ctx context.Context, percent decimal.Decimal, direction ledger.TaxDirection) (*ledger.TaxGroup, error) {
	for _, hint := range r.policy.TaxGroupHints(percent, direction) {
		group, err := r.chart.FindTaxGroup(ctx, hint)
		if err == nil {
			return group, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("find tax group %q: %w", hint, err)
		}
	}
	return nil, nil
}
