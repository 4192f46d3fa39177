// Package memstore provides an in-memory ledger.Store for dry runs and tests.
// Rows are kept in insertion order, which is the natural order finders use
// to break ties.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/ledgersync/internal/domain/ledger"
)

// Store implements ledger.Store in memory
type Store struct {
	mu       sync.RWMutex
	journals []*ledger.Journal
	parties  []*ledger.Party
	products []*ledger.Product
	taxes    []*ledger.Tax
	groups   []*ledger.TaxGroup
	accounts []*ledger.Account
	entries  []*ledger.Entry
	payments []*ledger.Payment
	taxSeq   int64
}

// New creates an empty store
func New() *Store {
	return &Store{}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) Journals() ledger.JournalRepository { return &journalRepo{s} }
func (s *Store) Parties() ledger.PartyRepository    { return &partyRepo{s} }
func (s *Store) Products() ledger.ProductRepository { return &productRepo{s} }
func (s *Store) Taxes() ledger.TaxRepository        { return &taxRepo{s} }
func (s *Store) Chart() ledger.ChartRepository      { return &chartRepo{s} }
func (s *Store) Entries() ledger.EntryRepository    { return &entryRepo{s} }
func (s *Store) Payments() ledger.PaymentRepository { return &paymentRepo{s} }

// Counts returns the number of stored rows per table
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"journals": len(s.journals),
		"parties":  len(s.parties),
		"products": len(s.products),
		"taxes":    len(s.taxes),
		"entries":  len(s.entries),
		"payments": len(s.payments),
	}
}

// AllEntries returns copies of every entry in insertion order
func (s *Store) AllEntries() []ledger.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, cloneEntry(e))
	}
	return out
}

// AllTaxes returns copies of every tax in insertion order
func (s *Store) AllTaxes() []ledger.Tax {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Tax, 0, len(s.taxes))
	for _, t := range s.taxes {
		out = append(out, *t)
	}
	return out
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func findFirst[T any](rows []*T, match func(*T) bool) (*T, error) {
	for _, row := range rows {
		if match(row) {
			c := *row
			return &c, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func indexOf[T any](rows []*T, match func(*T) bool) int {
	for i, row := range rows {
		if match(row) {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Journals
// ---------------------------------------------------------------------------

type journalRepo struct{ s *Store }

func (r *journalRepo) find(match func(*ledger.Journal) bool) (*ledger.Journal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findFirst(r.s.journals, match)
}

func (r *journalRepo) FindByExternalID(_ context.Context, externalID string) (*ledger.Journal, error) {
	return r.find(func(j *ledger.Journal) bool { return j.ExternalID == externalID })
}

func (r *journalRepo) FindByNaturalKey(_ context.Context, code string) (*ledger.Journal, error) {
	return r.find(func(j *ledger.Journal) bool { return j.Code == code })
}

func (r *journalRepo) FindByName(_ context.Context, name string) (*ledger.Journal, error) {
	return r.find(func(j *ledger.Journal) bool { return j.Name == name })
}

func (r *journalRepo) FindFirstByType(_ context.Context, t ledger.JournalType) (*ledger.Journal, error) {
	return r.find(func(j *ledger.Journal) bool { return j.Type == t })
}

func (r *journalRepo) LinkExternalID(ctx context.Context, j *ledger.Journal, externalID string) error {
	j.ExternalID = externalID
	return r.Update(ctx, j)
}

func (r *journalRepo) ListCodes(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	codes := make([]string, 0, len(r.s.journals))
	for _, j := range r.s.journals {
		codes = append(codes, j.Code)
	}
	return codes, nil
}

func (r *journalRepo) Create(_ context.Context, j *ledger.Journal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&j.ID)
	c := *j
	r.s.journals = append(r.s.journals, &c)
	return nil
}

func (r *journalRepo) Update(_ context.Context, j *ledger.Journal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := indexOf(r.s.journals, func(x *ledger.Journal) bool { return x.ID == j.ID })
	if i < 0 {
		return ledger.ErrNotFound
	}
	c := *j
	r.s.journals[i] = &c
	return nil
}

// ---------------------------------------------------------------------------
// Parties
// ---------------------------------------------------------------------------

type partyRepo struct{ s *Store }

func (r *partyRepo) find(match func(*ledger.Party) bool) (*ledger.Party, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findFirst(r.s.parties, match)
}

func (r *partyRepo) FindByExternalID(_ context.Context, externalID string) (*ledger.Party, error) {
	return r.find(func(p *ledger.Party) bool { return p.ExternalID == externalID })
}

func (r *partyRepo) FindByNaturalKey(_ context.Context, taxNumber string) (*ledger.Party, error) {
	return r.find(func(p *ledger.Party) bool { return p.TaxNumber == taxNumber })
}

func (r *partyRepo) FindByName(_ context.Context, name string) (*ledger.Party, error) {
	return r.find(func(p *ledger.Party) bool { return p.Name == name })
}

func (r *partyRepo) LinkExternalID(ctx context.Context, p *ledger.Party, externalID string) error {
	p.ExternalID = externalID
	return r.Update(ctx, p)
}

func (r *partyRepo) Create(_ context.Context, p *ledger.Party) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&p.ID)
	c := *p
	r.s.parties = append(r.s.parties, &c)
	return nil
}

func (r *partyRepo) Update(_ context.Context, p *ledger.Party) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := indexOf(r.s.parties, func(x *ledger.Party) bool { return x.ID == p.ID })
	if i < 0 {
		return ledger.ErrNotFound
	}
	c := *p
	r.s.parties[i] = &c
	return nil
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

type productRepo struct{ s *Store }

func (r *productRepo) find(match func(*ledger.Product) bool) (*ledger.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findFirst(r.s.products, match)
}

func (r *productRepo) FindByExternalID(_ context.Context, externalID string) (*ledger.Product, error) {
	return r.find(func(p *ledger.Product) bool { return p.ExternalID == externalID })
}

func (r *productRepo) FindByNaturalKey(_ context.Context, code string) (*ledger.Product, error) {
	return r.find(func(p *ledger.Product) bool { return p.Code == code })
}

func (r *productRepo) FindByName(_ context.Context, name string) (*ledger.Product, error) {
	return r.find(func(p *ledger.Product) bool { return p.Name == name })
}

func (r *productRepo) LinkExternalID(ctx context.Context, p *ledger.Product, externalID string) error {
	p.ExternalID = externalID
	return r.Update(ctx, p)
}

func (r *productRepo) Create(_ context.Context, p *ledger.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&p.ID)
	c := *p
	r.s.products = append(r.s.products, &c)
	return nil
}

func (r *productRepo) Update(_ context.Context, p *ledger.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := indexOf(r.s.products, func(x *ledger.Product) bool { return x.ID == p.ID })
	if i < 0 {
		return ledger.ErrNotFound
	}
	c := *p
	r.s.products[i] = &c
	return nil
}

// ---------------------------------------------------------------------------
// Taxes and chart
// ---------------------------------------------------------------------------

type taxRepo struct{ s *Store }

func (r *taxRepo) Find(_ context.Context, q ledger.TaxQuery) ([]ledger.Tax, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []ledger.Tax
	for _, t := range r.s.taxes {
		if q.Matches(t) {
			out = append(out, *t)
		}
	}
	ledger.SortTaxes(out)
	return out, nil
}

func (r *taxRepo) FindByName(_ context.Context, name string) (*ledger.Tax, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findFirst(r.s.taxes, func(t *ledger.Tax) bool { return t.Name == name })
}

func (r *taxRepo) Create(_ context.Context, t *ledger.Tax) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&t.ID)
	r.s.taxSeq++
	t.Sequence = r.s.taxSeq
	c := *t
	r.s.taxes = append(r.s.taxes, &c)
	return nil
}

func (r *taxRepo) Update(_ context.Context, t *ledger.Tax) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := indexOf(r.s.taxes, func(x *ledger.Tax) bool { return x.ID == t.ID })
	if i < 0 {
		return ledger.ErrNotFound
	}
	c := *t
	r.s.taxes[i] = &c
	return nil
}

type chartRepo struct{ s *Store }

func (r *chartRepo) FindTaxGroup(_ context.Context, nameContains string) (*ledger.TaxGroup, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findFirst(r.s.groups, func(g *ledger.TaxGroup) bool { return strings.Contains(g.Name, nameContains) })
}

func (r *chartRepo) CreateTaxGroup(_ context.Context, g *ledger.TaxGroup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&g.ID)
	c := *g
	r.s.groups = append(r.s.groups, &c)
	return nil
}

func (r *chartRepo) FindAccountByCodePrefix(_ context.Context, prefix string) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *ledger.Account
	for _, a := range r.s.accounts {
		if strings.HasPrefix(a.Code, prefix) && (best == nil || a.Code < best.Code) {
			best = a
		}
	}
	if best == nil {
		return nil, ledger.ErrNotFound
	}
	c := *best
	return &c, nil
}

func (r *chartRepo) CreateAccount(_ context.Context, a *ledger.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&a.ID)
	c := *a
	r.s.accounts = append(r.s.accounts, &c)
	return nil
}

// ---------------------------------------------------------------------------
// Entries and payments
// ---------------------------------------------------------------------------

func cloneEntry(e *ledger.Entry) ledger.Entry {
	c := *e
	c.Lines = append([]ledger.Line(nil), e.Lines...)
	return c
}

type entryRepo struct{ s *Store }

func (r *entryRepo) find(match func(*ledger.Entry) bool) (*ledger.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.entries {
		if match(e) {
			c := cloneEntry(e)
			return &c, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (r *entryRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.Entry, error) {
	return r.find(func(e *ledger.Entry) bool { return e.ID == id })
}

func (r *entryRepo) FindByExternalID(_ context.Context, kind ledger.EntryKind, externalID string) (*ledger.Entry, error) {
	return r.find(func(e *ledger.Entry) bool { return e.Kind == kind && e.ExternalID == externalID })
}

func (r *entryRepo) Create(_ context.Context, e *ledger.Entry) error {
	if err := ledger.ValidateEntry(e); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&e.ID)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.State == "" {
		e.State = ledger.EntryStateDraft
	}
	if e.PaymentState == "" {
		e.PaymentState = ledger.PaymentStateNotPaid
	}
	c := cloneEntry(e)
	r.s.entries = append(r.s.entries, &c)
	return nil
}

func (r *entryRepo) Update(_ context.Context, e *ledger.Entry) error {
	if err := ledger.ValidateEntry(e); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := indexOf(r.s.entries, func(x *ledger.Entry) bool { return x.ID == e.ID })
	if i < 0 {
		return ledger.ErrNotFound
	}
	e.PaymentState = e.SettlementState(r.s.paidLocked(e.ID))
	c := cloneEntry(e)
	r.s.entries[i] = &c
	return nil
}

func (r *entryRepo) setState(id uuid.UUID, state ledger.EntryState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := indexOf(r.s.entries, func(x *ledger.Entry) bool { return x.ID == id })
	if i < 0 {
		return ledger.ErrNotFound
	}
	r.s.entries[i].State = state
	r.s.entries[i].UpdatedAt = time.Now()
	return nil
}

func (r *entryRepo) SetDraft(_ context.Context, id uuid.UUID) error {
	return r.setState(id, ledger.EntryStateDraft)
}

func (r *entryRepo) Post(_ context.Context, id uuid.UUID) error {
	return r.setState(id, ledger.EntryStatePosted)
}

func (r *entryRepo) FindOpenPayables(_ context.Context, limit int) ([]ledger.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range r.s.entries {
		if ledger.IsOpenPayable(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) FindByExternalID(_ context.Context, externalID string) (*ledger.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findFirst(r.s.payments, func(p *ledger.Payment) bool { return p.ExternalID == externalID })
}

func (r *paymentRepo) ListByEntry(_ context.Context, entryID uuid.UUID) ([]ledger.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []ledger.Payment
	for _, p := range r.s.payments {
		if p.EntryID == entryID {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *paymentRepo) Register(_ context.Context, p *ledger.Payment) error {
	if err := ledger.ValidatePayment(p); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := indexOf(r.s.entries, func(x *ledger.Entry) bool { return x.ID == p.EntryID })
	if i < 0 {
		return ledger.ErrNotFound
	}
	ensureID(&p.ID)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	c := *p
	r.s.payments = append(r.s.payments, &c)

	entry := r.s.entries[i]
	entry.PaymentState = entry.SettlementState(r.s.paidLocked(p.EntryID))
	return nil
}

// paidLocked sums the payments of an entry; the caller holds mu
func (s *Store) paidLocked(entryID uuid.UUID) decimal.Decimal {
	paid := decimal.Zero
	for _, x := range s.payments {
		if x.EntryID == entryID {
			paid = paid.Add(x.Amount)
		}
	}
	return paid
}
