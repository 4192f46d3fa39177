package persistence

import (
	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
)

// LedgerStore implements ledger.Store on a GORM database
type LedgerStore struct {
	journals *GormJournalRepository
	parties  *GormPartyRepository
	products *GormProductRepository
	taxes    *GormTaxRepository
	chart    *GormChartRepository
	entries  *GormEntryRepository
	payments *GormPaymentRepository
}

// NewLedgerStore wires every repository to the same connection
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{
		journals: NewGormJournalRepository(db),
		parties:  NewGormPartyRepository(db),
		products: NewGormProductRepository(db),
		taxes:    NewGormTaxRepository(db),
		chart:    NewGormChartRepository(db),
		entries:  NewGormEntryRepository(db),
		payments: NewGormPaymentRepository(db),
	}
}

func (s *LedgerStore) Journals() ledger.JournalRepository { return s.journals }
func (s *LedgerStore) Parties() ledger.PartyRepository    { return s.parties }
func (s *LedgerStore) Products() ledger.ProductRepository { return s.products }
func (s *LedgerStore) Taxes() ledger.TaxRepository        { return s.taxes }
func (s *LedgerStore) Chart() ledger.ChartRepository      { return s.chart }
func (s *LedgerStore) Entries() ledger.EntryRepository    { return s.entries }
func (s *LedgerStore) Payments() ledger.PaymentRepository { return s.payments }

var _ ledger.Store = (*LedgerStore)(nil)
