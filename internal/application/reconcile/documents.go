package reconcileapp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/domain/ledger"
	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/logger"
)

// employeePrefix namespaces employee parties so they never collide with
// contact ids
const employeePrefix = "EMP-"

var one = decimal.NewFromInt(1)

// documentKind describes how one upstream document collection maps onto
// ledger entries
type documentKind struct {
	kind      reconcile.Kind
	entryKind ledger.EntryKind
	endpoint  string
	query     reconcile.Query
	// partyRelationship names the counterparty relationship; empty when the
	// document has none
	partyRelationship string
	partyRequired     bool
	// detailType is the included type of line details; empty for
	// header-only documents
	detailType    string
	direction     ledger.TaxDirection
	fallbackLabel string
	// nameFirst prefers the detail name over its description
	nameFirst bool
}

var (
	salesInvoices = documentKind{
		kind:              reconcile.KindSalesInvoices,
		entryKind:         ledger.EntryKindCustomerInvoice,
		endpoint:          reconcile.TypeSalesInvoices,
		query:             reconcile.Query{Include: []string{"details", "contact"}, Sort: "-issue_date"},
		partyRelationship: "contact",
		partyRequired:     true,
		detailType:        reconcile.TypeSalesInvoiceDetails,
		direction:         ledger.TaxDirectionSale,
		fallbackLabel:     "Sales Line",
	}
	purchaseBills = documentKind{
		kind:              reconcile.KindPurchaseBills,
		entryKind:         ledger.EntryKindVendorBill,
		endpoint:          reconcile.TypePurchaseBills,
		query:             reconcile.Query{Include: []string{"details", "supplier"}, Sort: "-issue_date"},
		partyRelationship: "supplier",
		partyRequired:     true,
		detailType:        reconcile.TypePurchaseBillDetails,
		direction:         ledger.TaxDirectionPurchase,
		fallbackLabel:     "Purchase Line",
		nameFirst:         true,
	}
	salaryAccruals = documentKind{
		kind:              reconcile.KindSalaries,
		entryKind:         ledger.EntryKindSalary,
		endpoint:          reconcile.TypeSalaries,
		query:             reconcile.Query{Include: []string{"employee"}, Sort: "-issue_date"},
		partyRelationship: "employee",
		partyRequired:     true,
		direction:         ledger.TaxDirectionNone,
		fallbackLabel:     "Maaş",
	}
	taxAccruals = documentKind{
		kind:          reconcile.KindTaxes,
		entryKind:     ledger.EntryKindTax,
		endpoint:      reconcile.TypeTaxes,
		query:         reconcile.Query{Sort: "-issue_date"},
		direction:     ledger.TaxDirectionNone,
		fallbackLabel: "Vergi",
	}
)

// SyncSalesInvoices mirrors sales invoices as posted customer invoices
func (s *Service) SyncSalesInvoices(ctx context.Context) (*reconcile.Result, error) {
	return s.syncDocuments(ctx, salesInvoices)
}

// SyncPurchaseBills mirrors purchase bills as posted vendor bills
func (s *Service) SyncPurchaseBills(ctx context.Context) (*reconcile.Result, error) {
	return s.syncDocuments(ctx, purchaseBills)
}

// SyncSalaries mirrors salary accruals. Each becomes a single-line entry
// against the salary expense account, payable to the employee.
func (s *Service) SyncSalaries(ctx context.Context) (*reconcile.Result, error) {
	return s.syncDocuments(ctx, salaryAccruals)
}

// SyncTaxes mirrors tax accruals as single-line entries without a party
func (s *Service) SyncTaxes(ctx context.Context) (*reconcile.Result, error) {
	return s.syncDocuments(ctx, taxAccruals)
}

func (s *Service) syncDocuments(ctx context.Context, dk documentKind) (*reconcile.Result, error) {
	return s.run(ctx, dk.kind, func(ctx context.Context, res *reconcile.Result) error {
		batches, err := s.fetch(ctx, res, dk.endpoint, dk.query)
		if err != nil {
			return err
		}
		accounts, err := s.documentAccounts(ctx, dk.entryKind)
		if err != nil {
			return err
		}
		for _, batch := range batches {
			idx := reconcile.NewReferenceIndex(batch.Included)
			for i := range batch.Primary {
				item := &batch.Primary[i]
				res.Processed++
				if err := s.syncDocument(ctx, res, dk, accounts, item, idx); err != nil {
					skip(ctx, res, item, err)
				}
			}
		}
		return nil
	})
}

// entryAccounts are the chart accounts resolved once per run
type entryAccounts struct {
	expense *uuid.UUID
	payable *uuid.UUID
}

func (s *Service) documentAccounts(ctx context.Context, kind ledger.EntryKind) (entryAccounts, error) {
	var accounts entryAccounts
	var err error
	if accounts.expense, err = s.accountByPrefix(ctx, s.policy.ExpenseAccountPrefix(kind)); err != nil {
		return accounts, err
	}
	if accounts.payable, err = s.accountByPrefix(ctx, s.policy.PayableAccountPrefix(kind)); err != nil {
		return accounts, err
	}
	return accounts, nil
}

// accountByPrefix returns nil when the policy has no opinion or the chart
// lacks the account
func (s *Service) accountByPrefix(ctx context.Context, prefix string) (*uuid.UUID, error) {
	if prefix == "" {
		return nil, nil
	}
	account, err := s.store.Chart().FindAccountByCodePrefix(ctx, prefix)
	if isNotFound(err) {
		logger.L(ctx).Warn("chart account missing, lines left unassigned", zap.String("prefix", prefix))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account %s: %w", prefix, err)
	}
	id := account.ID
	return &id, nil
}

func (s *Service) syncDocument(ctx context.Context, res *reconcile.Result, dk documentKind, accounts entryAccounts, item *reconcile.Resource, idx *reconcile.ReferenceIndex) error {
	attrs, err := reconcile.DecodeAttributes[reconcile.DocumentAttributes](item)
	if err != nil {
		return err
	}
	partyID, err := s.documentParty(ctx, dk, item, idx)
	if err != nil {
		return err
	}
	lines, err := s.documentLines(ctx, dk, item, attrs, idx)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		lines = []ledger.Line{fallbackLine(dk, attrs)}
	}
	for i := range lines {
		if lines[i].AccountID == nil {
			lines[i].AccountID = accounts.expense
		}
	}

	today := s.today()
	invoiceDate := reconcile.ParseDate(attrs.IssueDate, today)
	header := ledger.Entry{
		ExternalID:       item.ID,
		Kind:             dk.entryKind,
		PartyID:          partyID,
		PayableAccountID: accounts.payable,
		InvoiceDate:      invoiceDate,
		DueDate:          reconcile.ParseDate(attrs.DueDate, invoiceDate),
		Ref:              reconcile.ReferenceTag(dk.entryKind, item.ID),
		Lines:            lines,
	}

	entries := s.store.Entries()
	existing, err := entries.FindByExternalID(ctx, dk.entryKind, item.ID)
	switch {
	case isNotFound(err):
		if err := entries.Create(ctx, &header); err != nil {
			return fmt.Errorf("create entry: %w", err)
		}
		if err := entries.Post(ctx, header.ID); err != nil {
			return fmt.Errorf("post entry: %w", err)
		}
		res.Created++
		return nil
	case err != nil:
		return fmt.Errorf("find entry: %w", err)
	}

	if err := entries.SetDraft(ctx, existing.ID); err != nil {
		return fmt.Errorf("reset entry to draft: %w", err)
	}
	existing.PartyID = header.PartyID
	existing.PayableAccountID = header.PayableAccountID
	existing.InvoiceDate = header.InvoiceDate
	existing.DueDate = header.DueDate
	existing.Ref = header.Ref
	existing.Lines = header.Lines
	existing.State = ledger.EntryStateDraft
	if err := entries.Update(ctx, existing); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if err := entries.Post(ctx, existing.ID); err != nil {
		return fmt.Errorf("post entry: %w", err)
	}
	res.Updated++
	return nil
}

// documentParty resolves the counterparty of a document. A required party
// that cannot be resolved skips the document.
func (s *Service) documentParty(ctx context.Context, dk documentKind, item *reconcile.Resource, idx *reconcile.ReferenceIndex) (*uuid.UUID, error) {
	if dk.partyRelationship == "" {
		return nil, nil
	}
	ref, ok := item.Relationship(dk.partyRelationship).One()
	if !ok || ref.ID == "" {
		if !dk.partyRequired {
			return nil, nil
		}
		return nil, &reconcile.UnresolvedReferenceError{
			Kind:         string(dk.kind),
			ExternalID:   item.ID,
			Relationship: dk.partyRelationship,
		}
	}

	var party *ledger.Party
	var err error
	if dk.partyRelationship == "employee" {
		party, err = s.employeeParty(ctx, ref, idx)
	} else {
		party, err = s.store.Parties().FindByExternalID(ctx, ref.ID)
	}
	if isNotFound(err) {
		return nil, &reconcile.UnresolvedReferenceError{
			Kind:         string(dk.kind),
			ExternalID:   item.ID,
			Relationship: dk.partyRelationship,
			TargetID:     ref.ID,
		}
	}
	if err != nil {
		return nil, err
	}
	id := party.ID
	return &id, nil
}

// employeeParty finds the party of an employee by its namespaced external
// id. The mapped fields are overwritten from the included employee record
// on every sighting, and the party is created on first sight. Employees
// never match contacts by tax number or name.
func (s *Service) employeeParty(ctx context.Context, ref reconcile.Ref, idx *reconcile.ReferenceIndex) (*ledger.Party, error) {
	externalID := employeePrefix + ref.ID
	party, err := s.store.Parties().FindByExternalID(ctx, externalID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	exists := err == nil

	node, ok := idx.ResolveAs(reconcile.TypeEmployees, ref)
	if !ok {
		if exists {
			return party, nil
		}
		return nil, ledger.ErrNotFound
	}
	attrs, err := reconcile.DecodeAttributes[reconcile.EmployeeAttributes](node)
	if err != nil {
		return nil, err
	}
	if !exists {
		party = &ledger.Party{ExternalID: externalID}
	}
	party.Name = attrs.Name
	party.Email = attrs.Email
	party.TaxNumber = attrs.TCKN
	party.Comment = labelled("IBAN", attrs.IBAN)

	if exists {
		if err := s.store.Parties().Update(ctx, party); err != nil {
			return nil, fmt.Errorf("update employee party: %w", err)
		}
		return party, nil
	}
	if err := s.store.Parties().Create(ctx, party); err != nil {
		return nil, fmt.Errorf("create employee party: %w", err)
	}
	logger.L(ctx).Info("employee party created", zap.String("external_id", externalID))
	return party, nil
}

// documentLines builds one line per included detail. Details missing from
// the included set are ignored.
func (s *Service) documentLines(ctx context.Context, dk documentKind, item *reconcile.Resource, header *reconcile.DocumentAttributes, idx *reconcile.ReferenceIndex) ([]ledger.Line, error) {
	if dk.detailType == "" {
		return nil, nil
	}
	details := idx.Related(item, "details", dk.detailType)
	lines := make([]ledger.Line, 0, len(details))
	for _, detail := range details {
		attrs, err := reconcile.DecodeAttributes[reconcile.DetailAttributes](detail)
		if err != nil {
			return nil, err
		}

		var match reconcile.TaxMatch
		if dk.direction == ledger.TaxDirectionPurchase {
			match, err = s.taxes.ResolveAnyMode(ctx, attrs.VatRate, dk.direction)
		} else {
			match, err = s.taxes.Resolve(ctx, attrs.VatRate, dk.direction)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve tax: %w", err)
		}

		value := reconcile.Valuate(attrs.LineSource(), match)
		if value.Ambiguous {
			logger.L(ctx).Warn("line has no price fields, valued at zero",
				zap.String("external_id", item.ID),
				zap.String("detail_id", detail.ID),
			)
		}

		productID, err := s.detailProduct(ctx, detail)
		if err != nil {
			return nil, err
		}

		lines = append(lines, ledger.Line{
			Description: lineLabel(dk, attrs, header),
			Quantity:    value.Quantity,
			UnitPrice:   value.UnitPrice,
			TaxAmount:   match.ExcludedTax(value.Quantity.Mul(value.UnitPrice)),
			TaxID:       match.TaxID(),
			ProductID:   productID,
		})
	}
	return lines, nil
}

// detailProduct links a line to its product when the product is known
// locally. An unknown product leaves the line unlinked.
func (s *Service) detailProduct(ctx context.Context, detail *reconcile.Resource) (*uuid.UUID, error) {
	productRef, ok := detail.RelatedID("product")
	if !ok {
		return nil, nil
	}
	product, err := s.store.Products().FindByExternalID(ctx, productRef)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	id := product.ID
	return &id, nil
}

// lineLabel picks the detail text, then the header description, then the
// kind's default label
func lineLabel(dk documentKind, detail *reconcile.DetailAttributes, header *reconcile.DocumentAttributes) string {
	label := detail.Label()
	if dk.nameFirst && detail.Name != "" {
		label = detail.Name
	}
	if label != "" {
		return label
	}
	if header.Description != "" {
		return header.Description
	}
	return dk.fallbackLabel
}

// fallbackLine carries the header total when a document has no usable
// details
func fallbackLine(dk documentKind, header *reconcile.DocumentAttributes) ledger.Line {
	label := header.Description
	if label == "" {
		label = dk.fallbackLabel
	}
	return ledger.Line{
		Description: label,
		Quantity:    one,
		UnitPrice:   header.HeaderTotal(),
	}
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
