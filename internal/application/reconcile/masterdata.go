package reconcileapp

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/logger"
)

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// SyncAccounts mirrors upstream cash and bank accounts as journals. New
// journals get a code derived from the name that is unique in the ledger.
func (s *Service) SyncAccounts(ctx context.Context) (*reconcile.Result, error) {
	return s.run(ctx, reconcile.KindAccounts, func(ctx context.Context, res *reconcile.Result) error {
		batches, err := s.fetch(ctx, res, reconcile.TypeAccounts, reconcile.Query{})
		if err != nil {
			return err
		}
		codes, err := s.store.Journals().ListCodes(ctx)
		if err != nil {
			return fmt.Errorf("list journal codes: %w", err)
		}
		existing := reconcile.CodeSet(codes)

		for _, batch := range batches {
			for i := range batch.Primary {
				item := &batch.Primary[i]
				res.Processed++
				if err := s.syncAccount(ctx, res, item, existing); err != nil {
					skip(ctx, res, item, err)
				}
			}
		}
		return nil
	})
}

func (s *Service) syncAccount(ctx context.Context, res *reconcile.Result, item *reconcile.Resource, existing map[string]struct{}) error {
	attrs, err := reconcile.DecodeAttributes[reconcile.AccountAttributes](item)
	if err != nil {
		return err
	}
	journalType := ledger.JournalTypeBank
	if attrs.AccountType == "cash" {
		journalType = ledger.JournalTypeCash
	}

	match, err := s.journals.Resolve(ctx, reconcile.IdentityKey{ExternalID: item.ID, Name: attrs.Name})
	if err != nil {
		return err
	}
	warnRelinked(ctx, item.ID, match.Tier, match.Relinked)
	if match.Found() {
		j := match.Entity
		j.ExternalID = item.ID
		j.Name = attrs.Name
		j.Type = journalType
		if err := s.store.Journals().Update(ctx, j); err != nil {
			return fmt.Errorf("update journal: %w", err)
		}
		res.Updated++
		return nil
	}

	code, attempts := reconcile.GenerateJournalCode(attrs.Name, existing)
	if code == "" {
		return fmt.Errorf("no free journal code for %q after %d attempts", attrs.Name, attempts)
	}
	j := &ledger.Journal{
		ExternalID: item.ID,
		Name:       attrs.Name,
		Code:       code,
		Type:       journalType,
	}
	if err := s.store.Journals().Create(ctx, j); err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	existing[code] = struct{}{}
	res.Created++
	logger.L(ctx).Debug("journal created",
		zap.String("external_id", item.ID),
		zap.String("code", code),
		zap.Int("attempts", attempts),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

// SyncContacts mirrors upstream contacts as parties, matching on external
// id, then tax number, then name
func (s *Service) SyncContacts(ctx context.Context) (*reconcile.Result, error) {
	return s.run(ctx, reconcile.KindContacts, func(ctx context.Context, res *reconcile.Result) error {
		batches, err := s.fetch(ctx, res, reconcile.TypeContacts, reconcile.Query{Sort: "id"})
		if err != nil {
			return err
		}
		for _, batch := range batches {
			for i := range batch.Primary {
				item := &batch.Primary[i]
				res.Processed++
				if err := s.syncContact(ctx, res, item); err != nil {
					skip(ctx, res, item, err)
				}
			}
		}
		return nil
	})
}

func (s *Service) syncContact(ctx context.Context, res *reconcile.Result, item *reconcile.Resource) error {
	attrs, err := reconcile.DecodeAttributes[reconcile.ContactAttributes](item)
	if err != nil {
		return err
	}

	match, err := s.parties.Resolve(ctx, reconcile.IdentityKey{
		ExternalID: item.ID,
		NaturalKey: attrs.TaxNumber,
		Name:       attrs.Name,
	})
	if err != nil {
		return err
	}
	warnRelinked(ctx, item.ID, match.Tier, match.Relinked)

	party := &ledger.Party{}
	if match.Found() {
		party = match.Entity
	}
	applyContact(party, item.ID, attrs)

	if match.Found() {
		if err := s.store.Parties().Update(ctx, party); err != nil {
			return fmt.Errorf("update party: %w", err)
		}
		res.Updated++
		return nil
	}
	if err := s.store.Parties().Create(ctx, party); err != nil {
		return fmt.Errorf("create party: %w", err)
	}
	res.Created++
	return nil
}

// applyContact overwrites every mapped party field from the contact
func applyContact(p *ledger.Party, externalID string, a *reconcile.ContactAttributes) {
	p.ExternalID = externalID
	p.Name = a.Name
	p.Email = a.Email
	p.TaxNumber = a.TaxNumber
	p.City = a.City
	p.Street = joinLines(a.Address, a.District, labelled("Vergi D.", a.TaxOffice))
	p.Comment = joinLines(labelled("Kısa", a.ShortName), labelled("IBAN", a.IBAN), labelled("Cep", a.MobilePhone))
	p.Phone = a.Phone
	if p.Phone == "" {
		p.Phone = a.MobilePhone
	}
	p.IsCompany = a.ContactType == "company"

	role := a.AccountType
	if role == "" {
		role = a.ContactType
	}
	p.SupplierRank, p.CustomerRank = 0, 0
	switch role {
	case "supplier":
		p.SupplierRank = 1
	case "customer":
		p.CustomerRank = 1
	}
}

func warnRelinked(ctx context.Context, externalID string, tier reconcile.MatchTier, previous string) {
	if previous == "" {
		return
	}
	logger.L(ctx).Warn("matched entity relinked from another upstream record",
		zap.String("external_id", externalID),
		zap.String("previous_external_id", previous),
		zap.Stringer("tier", tier),
	)
}

func labelled(label, value string) string {
	if value == "" {
		return ""
	}
	return label + ": " + value
}

// joinLines joins the non-empty parts with newlines
func joinLines(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// SyncProducts mirrors upstream products, matching on external id, then
// product code, then name. The VAT rate selects the default sale tax among
// existing taxes; products never provision taxes.
func (s *Service) SyncProducts(ctx context.Context) (*reconcile.Result, error) {
	return s.run(ctx, reconcile.KindProducts, func(ctx context.Context, res *reconcile.Result) error {
		batches, err := s.fetch(ctx, res, reconcile.TypeProducts, reconcile.Query{Sort: "id"})
		if err != nil {
			return err
		}
		for _, batch := range batches {
			for i := range batch.Primary {
				item := &batch.Primary[i]
				res.Processed++
				if err := s.syncProduct(ctx, res, item); err != nil {
					skip(ctx, res, item, err)
				}
			}
		}
		return nil
	})
}

func (s *Service) syncProduct(ctx context.Context, res *reconcile.Result, item *reconcile.Resource) error {
	attrs, err := reconcile.DecodeAttributes[reconcile.ProductAttributes](item)
	if err != nil {
		return err
	}

	match, err := s.products.Resolve(ctx, reconcile.IdentityKey{
		ExternalID: item.ID,
		NaturalKey: attrs.Code,
		Name:       attrs.Name,
	})
	if err != nil {
		return err
	}
	warnRelinked(ctx, item.ID, match.Tier, match.Relinked)
	tax, err := s.taxes.Find(ctx, attrs.VatRate, ledger.TaxDirectionSale)
	if err != nil {
		return err
	}

	product := &ledger.Product{}
	if match.Found() {
		product = match.Entity
	}
	product.ExternalID = item.ID
	product.Name = attrs.Name
	product.Code = attrs.Code
	product.Barcode = attrs.Barcode
	product.ListPrice = attrs.ListPrice.Decimal
	product.StandardPrice = attrs.BuyingPrice.Decimal
	product.SaleTaxID = tax.TaxID()

	if match.Found() {
		if err := s.store.Products().Update(ctx, product); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		res.Updated++
		return nil
	}
	if err := s.store.Products().Create(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	res.Created++
	return nil
}
