package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/infrastructure/persistence/models"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllLedgerModels()...))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGormJournalRepository(t *testing.T) {
	store := NewLedgerStore(setupLedgerTestDB(t))
	repo := store.Journals()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	first := &ledger.Journal{Name: "Kasa", Code: "KASA", Type: ledger.JournalTypeCash, CreatedAt: base}
	second := &ledger.Journal{Name: "Kasa", Code: "KASA2", Type: ledger.JournalTypeCash, CreatedAt: base.Add(time.Minute)}
	bank := &ledger.Journal{Name: "Garanti", Code: "GRNT", Type: ledger.JournalTypeBank, CreatedAt: base.Add(2 * time.Minute)}
	for _, j := range []*ledger.Journal{first, second, bank} {
		require.NoError(t, repo.Create(ctx, j))
		assert.NotEqual(t, uuid.Nil, j.ID)
	}

	t.Run("name lookup returns the oldest match", func(t *testing.T) {
		got, err := repo.FindByName(ctx, "Kasa")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("natural key is the code", func(t *testing.T) {
		got, err := repo.FindByNaturalKey(ctx, "GRNT")
		require.NoError(t, err)
		assert.Equal(t, bank.ID, got.ID)
	})

	t.Run("first by type", func(t *testing.T) {
		got, err := repo.FindFirstByType(ctx, ledger.JournalTypeBank)
		require.NoError(t, err)
		assert.Equal(t, "GRNT", got.Code)
	})

	t.Run("link then find by external id", func(t *testing.T) {
		require.NoError(t, repo.LinkExternalID(ctx, second, "77"))
		got, err := repo.FindByExternalID(ctx, "77")
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
		assert.Equal(t, "KASA2", got.Code)
	})

	t.Run("list codes", func(t *testing.T) {
		codes, err := repo.ListCodes(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"KASA", "KASA2", "GRNT"}, codes)
	})

	t.Run("misses map to ErrNotFound", func(t *testing.T) {
		_, err := repo.FindByExternalID(ctx, "missing")
		assert.ErrorIs(t, err, ledger.ErrNotFound)

		err = repo.Update(ctx, &ledger.Journal{ID: uuid.New(), Name: "ghost", Code: "GHOST", Type: ledger.JournalTypeCash})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestGormPartyAndProductRepositories(t *testing.T) {
	store := NewLedgerStore(setupLedgerTestDB(t))
	ctx := context.Background()

	party := &ledger.Party{Name: "Acme Ltd", TaxNumber: "1234567890", IsCompany: true, CustomerRank: 1}
	require.NoError(t, store.Parties().Create(ctx, party))

	got, err := store.Parties().FindByNaturalKey(ctx, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", got.Name)
	assert.True(t, got.IsCompany)

	got.City = "Izmir"
	got.SupplierRank = 1
	require.NoError(t, store.Parties().Update(ctx, got))
	reloaded, err := store.Parties().FindByName(ctx, "Acme Ltd")
	require.NoError(t, err)
	assert.Equal(t, "Izmir", reloaded.City)
	assert.Equal(t, 1, reloaded.SupplierRank)

	taxID := uuid.New()
	product := &ledger.Product{Name: "Widget", Code: "W-1", ListPrice: dec("100.50"), SaleTaxID: &taxID}
	require.NoError(t, store.Products().Create(ctx, product))
	require.NoError(t, store.Products().LinkExternalID(ctx, product, "p-9"))

	p, err := store.Products().FindByExternalID(ctx, "p-9")
	require.NoError(t, err)
	assert.Equal(t, "W-1", p.Code)
	assert.True(t, p.ListPrice.Equal(dec("100.5")))
	require.NotNil(t, p.SaleTaxID)
	assert.Equal(t, taxID, *p.SaleTaxID)
}

func TestGormTaxRepository(t *testing.T) {
	store := NewLedgerStore(setupLedgerTestDB(t))
	repo := store.Taxes()
	ctx := context.Background()

	sale := ledger.TaxDirectionSale
	taxes := []*ledger.Tax{
		{Name: "KDV %20 Dahil (Satış)", Amount: dec("20"), Direction: sale, PriceInclude: true, Active: true, Priority: 2},
		{Name: "KDV %20", Amount: dec("20"), Direction: sale, Active: true, Priority: 1},
		{Name: "KDV %20 eski", Amount: dec("20"), Direction: sale, PriceInclude: true, Active: false, Priority: 1},
		{Name: "KDV %10 Dahil (Satış)", Amount: dec("10"), Direction: sale, PriceInclude: true, Active: true, Priority: 1},
	}
	for _, tax := range taxes {
		require.NoError(t, repo.Create(ctx, tax))
	}

	t.Run("sequence follows creation order", func(t *testing.T) {
		for i, tax := range taxes {
			assert.Equal(t, int64(i+1), tax.Sequence)
		}
	})

	t.Run("find filters and orders by priority then sequence", func(t *testing.T) {
		got, err := repo.Find(ctx, ledger.TaxQuery{
			Direction:  &sale,
			Amounts:    []decimal.Decimal{dec("20"), dec("0.20")},
			ActiveOnly: true,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "KDV %20", got[0].Name)
		assert.Equal(t, "KDV %20 Dahil (Satış)", got[1].Name)
	})

	t.Run("inclusive only", func(t *testing.T) {
		got, err := repo.Find(ctx, ledger.TaxQuery{InclusiveOnly: true, ActiveOnly: true, NameContains: "Dahil"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "KDV %10 Dahil (Satış)", got[0].Name)
	})

	t.Run("find by name includes inactive taxes", func(t *testing.T) {
		got, err := repo.FindByName(ctx, "KDV %20 eski")
		require.NoError(t, err)
		assert.False(t, got.Active)

		got.Active = true
		require.NoError(t, repo.Update(ctx, got))
		again, err := repo.FindByName(ctx, "KDV %20 eski")
		require.NoError(t, err)
		assert.True(t, again.Active)
	})
}

func TestGormChartRepository(t *testing.T) {
	repo := NewLedgerStore(setupLedgerTestDB(t)).Chart()
	ctx := context.Background()

	for _, code := range []string{"391.02", "391.01", "320.01"} {
		require.NoError(t, repo.CreateAccount(ctx, &ledger.Account{Code: code, Name: "acc " + code}))
	}
	require.NoError(t, repo.CreateTaxGroup(ctx, &ledger.TaxGroup{Name: "KDV Grubu"}))

	acc, err := repo.FindAccountByCodePrefix(ctx, "391")
	require.NoError(t, err)
	assert.Equal(t, "391.01", acc.Code)

	_, err = repo.FindAccountByCodePrefix(ctx, "600")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	group, err := repo.FindTaxGroup(ctx, "KDV")
	require.NoError(t, err)
	assert.Equal(t, "KDV Grubu", group.Name)

	_, err = repo.FindTaxGroup(ctx, "%")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func newBill(externalID string, created time.Time) *ledger.Entry {
	return &ledger.Entry{
		ExternalID:  externalID,
		Kind:        ledger.EntryKindVendorBill,
		InvoiceDate: created,
		CreatedAt:   created,
		Lines: []ledger.Line{
			{Description: "a", Quantity: dec("2"), UnitPrice: dec("50")},
			{Description: "b", Quantity: dec("1"), UnitPrice: dec("20")},
		},
	}
}

func TestGormEntryRepository(t *testing.T) {
	store := NewLedgerStore(setupLedgerTestDB(t))
	repo := store.Entries()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	bill := newBill("b-1", base)
	require.NoError(t, repo.Create(ctx, bill))
	assert.Equal(t, ledger.EntryStateDraft, bill.State)
	assert.Equal(t, ledger.PaymentStateNotPaid, bill.PaymentState)

	t.Run("rejects entries without lines", func(t *testing.T) {
		err := repo.Create(ctx, &ledger.Entry{Kind: ledger.EntryKindVendorBill})
		assert.ErrorIs(t, err, ledger.ErrInvalidEntry)
	})

	t.Run("lines keep their order", func(t *testing.T) {
		got, err := repo.FindByExternalID(ctx, ledger.EntryKindVendorBill, "b-1")
		require.NoError(t, err)
		require.Len(t, got.Lines, 2)
		assert.Equal(t, "a", got.Lines[0].Description)
		assert.True(t, got.Total().Equal(dec("120")))
	})

	t.Run("kind is part of the key", func(t *testing.T) {
		_, err := repo.FindByExternalID(ctx, ledger.EntryKindCustomerInvoice, "b-1")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("update replaces lines", func(t *testing.T) {
		bill.Ref = "INV-42"
		bill.Lines = []ledger.Line{{Description: "only", Quantity: dec("3"), UnitPrice: dec("10")}}
		require.NoError(t, repo.Update(ctx, bill))

		got, err := repo.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-42", got.Ref)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, "only", got.Lines[0].Description)
	})

	t.Run("post and draft", func(t *testing.T) {
		require.NoError(t, repo.Post(ctx, bill.ID))
		got, err := repo.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPosted())

		require.NoError(t, repo.SetDraft(ctx, bill.ID))
		got, err = repo.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		assert.False(t, got.IsPosted())

		assert.ErrorIs(t, repo.Post(ctx, uuid.New()), ledger.ErrNotFound)
	})
}

func TestGormFindOpenPayables(t *testing.T) {
	store := NewLedgerStore(setupLedgerTestDB(t))
	repo := store.Entries()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	older := newBill("b-old", base)
	newer := newBill("b-new", base.Add(time.Hour))
	draft := newBill("b-draft", base.Add(2*time.Hour))
	unlinked := newBill("", base.Add(3*time.Hour))
	paid := newBill("b-paid", base.Add(4*time.Hour))
	paid.PaymentState = ledger.PaymentStatePaid
	invoice := newBill("s-1", base.Add(5*time.Hour))
	invoice.Kind = ledger.EntryKindCustomerInvoice

	for _, e := range []*ledger.Entry{newer, older, draft, unlinked, paid, invoice} {
		require.NoError(t, repo.Create(ctx, e))
	}
	for _, e := range []*ledger.Entry{older, newer, unlinked, paid, invoice} {
		require.NoError(t, repo.Post(ctx, e.ID))
	}

	got, err := repo.FindOpenPayables(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b-old", got[0].ExternalID)
	assert.Equal(t, "b-new", got[1].ExternalID)

	limited, err := repo.FindOpenPayables(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b-old", limited[0].ExternalID)
}

func TestGormPaymentRepository(t *testing.T) {
	store := NewLedgerStore(setupLedgerTestDB(t))
	ctx := context.Background()

	bill := newBill("b-1", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Entries().Create(ctx, bill))
	journalID := uuid.New()

	tests := []struct {
		name       string
		externalID string
		amount     string
		want       ledger.PaymentState
	}{
		{"partial", "pay-1", "70", ledger.PaymentStatePartial},
		{"settles the rest", "pay-2", "50", ledger.PaymentStatePaid},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Payments().Register(ctx, &ledger.Payment{
				ExternalID: tt.externalID,
				EntryID:    bill.ID,
				JournalID:  journalID,
				Amount:     dec(tt.amount),
				Date:       time.Date(2024, 7, 2+i, 0, 0, 0, 0, time.UTC),
			})
			require.NoError(t, err)

			got, err := store.Entries().FindByID(ctx, bill.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.PaymentState)
		})
	}

	t.Run("lookup and listing", func(t *testing.T) {
		p, err := store.Payments().FindByExternalID(ctx, "pay-2")
		require.NoError(t, err)
		assert.True(t, p.Amount.Equal(dec("50")))

		list, err := store.Payments().ListByEntry(ctx, bill.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "pay-1", list[0].ExternalID)
	})

	t.Run("invalid payments", func(t *testing.T) {
		err := store.Payments().Register(ctx, &ledger.Payment{EntryID: bill.ID, JournalID: journalID, Amount: decimal.Zero})
		assert.ErrorIs(t, err, ledger.ErrInvalidPayment)

		err = store.Payments().Register(ctx, &ledger.Payment{EntryID: uuid.New(), JournalID: journalID, Amount: dec("1")})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestGormEntryRepository_UpdateResettles(t *testing.T) {
	store := NewLedgerStore(setupLedgerTestDB(t))
	ctx := context.Background()

	bill := newBill("b-1", time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Entries().Create(ctx, bill))
	require.NoError(t, store.Payments().Register(ctx, &ledger.Payment{
		ExternalID: "pay-1",
		EntryID:    bill.ID,
		JournalID:  uuid.New(),
		Amount:     dec("120"),
		Date:       time.Date(2024, 8, 2, 0, 0, 0, 0, time.UTC),
	}))

	tests := []struct {
		name  string
		lines []ledger.Line
		want  ledger.PaymentState
	}{
		{"grown total reopens", []ledger.Line{{Description: "a", Quantity: dec("1"), UnitPrice: dec("150")}}, ledger.PaymentStatePartial},
		{"shrunken total settles", []ledger.Line{{Description: "a", Quantity: dec("1"), UnitPrice: dec("100")}}, ledger.PaymentStatePaid},
		{"excluded tax counts", []ledger.Line{{Description: "a", Quantity: dec("1"), UnitPrice: dec("110"), TaxAmount: dec("22")}}, ledger.PaymentStatePartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill.Lines = tt.lines
			require.NoError(t, store.Entries().Update(ctx, bill))
			assert.Equal(t, tt.want, bill.PaymentState)

			got, err := store.Entries().FindByID(ctx, bill.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.PaymentState)
			assert.True(t, got.Total().Equal(tt.lines[0].Gross()), "total %s", got.Total())
		})
	}
}
