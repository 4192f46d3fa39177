package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store errors
var (
	ErrNotFound       = errors.New("ledger: not found")
	ErrInvalidEntry   = errors.New("ledger: invalid entry")
	ErrInvalidPayment = errors.New("ledger: invalid payment")
)

// IdentityLookup is the three-tier lookup used to match upstream records to
// local entities. Every finder returns ErrNotFound when nothing matches.
type IdentityLookup[T any] interface {
	// FindByExternalID finds the entity linked to an upstream id
	FindByExternalID(ctx context.Context, externalID string) (*T, error)

	// FindByNaturalKey finds the entity by its business key
	// (journal code, party tax number, product code)
	FindByNaturalKey(ctx context.Context, key string) (*T, error)

	// FindByName finds the first entity with the exact name
	FindByName(ctx context.Context, name string) (*T, error)

	// LinkExternalID stores externalID on the entity and persists it
	LinkExternalID(ctx context.Context, entity *T, externalID string) error
}

// JournalRepository persists journals
type JournalRepository interface {
	IdentityLookup[Journal]

	// ListCodes returns every journal code in use
	ListCodes(ctx context.Context) ([]string, error)

	// FindFirstByType returns the oldest journal of the given type
	FindFirstByType(ctx context.Context, journalType JournalType) (*Journal, error)

	Create(ctx context.Context, journal *Journal) error
	Update(ctx context.Context, journal *Journal) error
}

// PartyRepository persists parties
type PartyRepository interface {
	IdentityLookup[Party]

	Create(ctx context.Context, party *Party) error
	Update(ctx context.Context, party *Party) error
}

// ProductRepository persists products
type ProductRepository interface {
	IdentityLookup[Product]

	Create(ctx context.Context, product *Product) error
	Update(ctx context.Context, product *Product) error
}

// TaxQuery filters taxes. Zero values mean "no constraint".
type TaxQuery struct {
	// Direction restricts to one direction when set
	Direction *TaxDirection
	// Amounts matches any of the given percentages (numeric equality)
	Amounts []decimal.Decimal
	// NameContains matches a substring of the tax name
	NameContains string
	// InclusiveOnly keeps only price-inclusive taxes
	InclusiveOnly bool
	// ActiveOnly keeps only active taxes
	ActiveOnly bool
}

// Matches reports whether tax satisfies the query
func (q TaxQuery) Matches(tax *Tax) bool {
	if q.ActiveOnly && !tax.Active {
		return false
	}
	if q.InclusiveOnly && !tax.PriceInclude {
		return false
	}
	if q.Direction != nil && tax.Direction != *q.Direction {
		return false
	}
	if q.NameContains != "" && !strings.Contains(tax.Name, q.NameContains) {
		return false
	}
	if len(q.Amounts) > 0 {
		matched := false
		for _, a := range q.Amounts {
			if tax.Amount.Equal(a) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// SortTaxes orders taxes by priority, then by sequence
func SortTaxes(taxes []Tax) {
	sort.SliceStable(taxes, func(i, j int) bool {
		if taxes[i].Priority != taxes[j].Priority {
			return taxes[i].Priority < taxes[j].Priority
		}
		return taxes[i].Sequence < taxes[j].Sequence
	})
}

// TaxRepository persists taxes
type TaxRepository interface {
	// Find returns matching taxes ordered by priority then sequence
	Find(ctx context.Context, query TaxQuery) ([]Tax, error)

	// FindByName finds a tax by exact name, active or not
	FindByName(ctx context.Context, name string) (*Tax, error)

	// Create persists a new tax and assigns its sequence
	Create(ctx context.Context, tax *Tax) error
	Update(ctx context.Context, tax *Tax) error
}

// ChartRepository exposes the chart of accounts and tax groups
type ChartRepository interface {
	// FindTaxGroup returns the first tax group whose name contains the fragment
	FindTaxGroup(ctx context.Context, nameContains string) (*TaxGroup, error)
	CreateTaxGroup(ctx context.Context, group *TaxGroup) error

	// FindAccountByCodePrefix returns the account with the lowest code
	// starting with prefix
	FindAccountByCodePrefix(ctx context.Context, prefix string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
}

// EntryRepository persists entries
type EntryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// FindByExternalID finds an entry by its deduplication key
	FindByExternalID(ctx context.Context, kind EntryKind, externalID string) (*Entry, error)

	Create(ctx context.Context, entry *Entry) error

	// Update overwrites header fields and replaces all lines
	Update(ctx context.Context, entry *Entry) error

	SetDraft(ctx context.Context, id uuid.UUID) error
	Post(ctx context.Context, id uuid.UUID) error

	// FindOpenPayables returns posted, linked, not fully paid entries of
	// payable kinds, oldest first, at most limit rows
	FindOpenPayables(ctx context.Context, limit int) ([]Entry, error)
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*Payment, error)

	// Register stores the payment and recomputes the entry's payment state
	Register(ctx context.Context, payment *Payment) error

	// ListByEntry returns the payments of one entry
	ListByEntry(ctx context.Context, entryID uuid.UUID) ([]Payment, error)
}

// Store is the local ledger consumed by the synchronization engine
type Store interface {
	Journals() JournalRepository
	Parties() PartyRepository
	Products() ProductRepository
	Taxes() TaxRepository
	Chart() ChartRepository
	Entries() EntryRepository
	Payments() PaymentRepository
}

// IsOpenPayable reports whether an entry qualifies for payment follow-up
func IsOpenPayable(e *Entry) bool {
	return e.Kind.IsPayable() &&
		e.State == EntryStatePosted &&
		e.ExternalID != "" &&
		(e.PaymentState == PaymentStateNotPaid || e.PaymentState == PaymentStatePartial || e.PaymentState == "")
}

// ValidateEntry checks the invariants every stored entry must satisfy
func ValidateEntry(e *Entry) error {
	if !e.Kind.IsValid() {
		return ErrInvalidEntry
	}
	if len(e.Lines) == 0 {
		return ErrInvalidEntry
	}
	return nil
}

// ValidatePayment checks a payment before registration
func ValidatePayment(p *Payment) error {
	if p.EntryID == uuid.Nil || p.JournalID == uuid.Nil {
		return ErrInvalidPayment
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidPayment
	}
	return nil
}
