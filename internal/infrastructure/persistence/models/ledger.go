package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/ledgersync/internal/domain/ledger"
)

// ---------------------------------------------------------------------------
// Journals, parties, products
// ---------------------------------------------------------------------------

// JournalModel is the persistence model for ledger.Journal
type JournalModel struct {
	BaseModel
	ExternalID string             `gorm:"type:varchar(64);index"`
	Name       string             `gorm:"type:varchar(200);not null;index"`
	Code       string             `gorm:"type:varchar(16);not null;uniqueIndex"`
	Type       ledger.JournalType `gorm:"type:varchar(10);not null"`
}

// TableName returns the table name for GORM
func (JournalModel) TableName() string {
	return "ledger_journals"
}

// ToDomain converts the model to a journal
func (m *JournalModel) ToDomain() *ledger.Journal {
	return &ledger.Journal{
		ID:         m.ID,
		ExternalID: m.ExternalID,
		Name:       m.Name,
		Code:       m.Code,
		Type:       m.Type,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// JournalFromDomain builds the model from a journal
func JournalFromDomain(j *ledger.Journal) *JournalModel {
	return &JournalModel{
		BaseModel:  BaseModel{ID: j.ID, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt},
		ExternalID: j.ExternalID,
		Name:       j.Name,
		Code:       j.Code,
		Type:       j.Type,
	}
}

// PartyModel is the persistence model for ledger.Party
type PartyModel struct {
	BaseModel
	ExternalID   string `gorm:"type:varchar(64);index"`
	Name         string `gorm:"type:varchar(200);not null;index"`
	Email        string `gorm:"type:varchar(200)"`
	TaxNumber    string `gorm:"type:varchar(32);index"`
	Street       string `gorm:"type:text"`
	City         string `gorm:"type:varchar(100)"`
	Phone        string `gorm:"type:varchar(50)"`
	Comment      string `gorm:"type:text"`
	IsCompany    bool   `gorm:"not null;default:false"`
	SupplierRank int    `gorm:"not null;default:0"`
	CustomerRank int    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (PartyModel) TableName() string {
	return "ledger_parties"
}

// ToDomain converts the model to a party
func (m *PartyModel) ToDomain() *ledger.Party {
	return &ledger.Party{
		ID:           m.ID,
		ExternalID:   m.ExternalID,
		Name:         m.Name,
		Email:        m.Email,
		TaxNumber:    m.TaxNumber,
		Street:       m.Street,
		City:         m.City,
		Phone:        m.Phone,
		Comment:      m.Comment,
		IsCompany:    m.IsCompany,
		SupplierRank: m.SupplierRank,
		CustomerRank: m.CustomerRank,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// PartyFromDomain builds the model from a party
func PartyFromDomain(p *ledger.Party) *PartyModel {
	return &PartyModel{
		BaseModel:    BaseModel{ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt},
		ExternalID:   p.ExternalID,
		Name:         p.Name,
		Email:        p.Email,
		TaxNumber:    p.TaxNumber,
		Street:       p.Street,
		City:         p.City,
		Phone:        p.Phone,
		Comment:      p.Comment,
		IsCompany:    p.IsCompany,
		SupplierRank: p.SupplierRank,
		CustomerRank: p.CustomerRank,
	}
}

// ProductModel is the persistence model for ledger.Product
type ProductModel struct {
	BaseModel
	ExternalID    string          `gorm:"type:varchar(64);index"`
	Name          string          `gorm:"type:varchar(200);not null;index"`
	Code          string          `gorm:"type:varchar(64);index"`
	Barcode       string          `gorm:"type:varchar(64)"`
	ListPrice     decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	StandardPrice decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	SaleTaxID     *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "ledger_products"
}

// ToDomain converts the model to a product
func (m *ProductModel) ToDomain() *ledger.Product {
	return &ledger.Product{
		ID:            m.ID,
		ExternalID:    m.ExternalID,
		Name:          m.Name,
		Code:          m.Code,
		Barcode:       m.Barcode,
		ListPrice:     m.ListPrice,
		StandardPrice: m.StandardPrice,
		SaleTaxID:     m.SaleTaxID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ProductFromDomain builds the model from a product
func ProductFromDomain(p *ledger.Product) *ProductModel {
	return &ProductModel{
		BaseModel:     BaseModel{ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt},
		ExternalID:    p.ExternalID,
		Name:          p.Name,
		Code:          p.Code,
		Barcode:       p.Barcode,
		ListPrice:     p.ListPrice,
		StandardPrice: p.StandardPrice,
		SaleTaxID:     p.SaleTaxID,
	}
}

// ---------------------------------------------------------------------------
// Taxes and chart of accounts
// ---------------------------------------------------------------------------

// TaxModel is the persistence model for ledger.Tax
type TaxModel struct {
	BaseModel
	Name              string              `gorm:"type:varchar(100);not null;index"`
	Amount            decimal.Decimal     `gorm:"type:decimal(9,4);not null"`
	Direction         ledger.TaxDirection `gorm:"type:varchar(10);not null"`
	PriceInclude      bool                `gorm:"not null;default:false"`
	IncludeBaseAmount bool                `gorm:"not null;default:false"`
	Active            bool                `gorm:"not null;default:true"`
	Priority          int                 `gorm:"not null;default:1"`
	Sequence          int64               `gorm:"not null;index"`
	GroupID           *uuid.UUID          `gorm:"type:uuid"`
	AccountID         *uuid.UUID          `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (TaxModel) TableName() string {
	return "ledger_taxes"
}

// ToDomain converts the model to a tax
func (m *TaxModel) ToDomain() *ledger.Tax {
	return &ledger.Tax{
		ID:                m.ID,
		Name:              m.Name,
		Amount:            m.Amount,
		Direction:         m.Direction,
		PriceInclude:      m.PriceInclude,
		IncludeBaseAmount: m.IncludeBaseAmount,
		Active:            m.Active,
		Priority:          m.Priority,
		Sequence:          m.Sequence,
		GroupID:           m.GroupID,
		AccountID:         m.AccountID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// TaxFromDomain builds the model from a tax
func TaxFromDomain(t *ledger.Tax) *TaxModel {
	return &TaxModel{
		BaseModel:         BaseModel{ID: t.ID, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt},
		Name:              t.Name,
		Amount:            t.Amount,
		Direction:         t.Direction,
		PriceInclude:      t.PriceInclude,
		IncludeBaseAmount: t.IncludeBaseAmount,
		Active:            t.Active,
		Priority:          t.Priority,
		Sequence:          t.Sequence,
		GroupID:           t.GroupID,
		AccountID:         t.AccountID,
	}
}

// TaxGroupModel is the persistence model for ledger.TaxGroup
type TaxGroupModel struct {
	BaseModel
	Name string `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (TaxGroupModel) TableName() string {
	return "ledger_tax_groups"
}

// AccountModel is the persistence model for ledger.Account
type AccountModel struct {
	BaseModel
	Code string `gorm:"type:varchar(32);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "ledger_accounts"
}

// ---------------------------------------------------------------------------
// Entries and payments
// ---------------------------------------------------------------------------

// EntryModel is the persistence model for ledger.Entry
type EntryModel struct {
	BaseModel
	ExternalID       string              `gorm:"type:varchar(64);index:idx_entry_kind_external,priority:2"`
	Kind             ledger.EntryKind    `gorm:"type:varchar(20);not null;index:idx_entry_kind_external,priority:1"`
	State            ledger.EntryState   `gorm:"type:varchar(10);not null;default:'draft'"`
	PaymentState     ledger.PaymentState `gorm:"type:varchar(10);not null;default:'not_paid'"`
	PartyID          *uuid.UUID          `gorm:"type:uuid;index"`
	PayableAccountID *uuid.UUID          `gorm:"type:uuid"`
	InvoiceDate      time.Time
	DueDate          time.Time
	Ref              string           `gorm:"type:varchar(100);index"`
	Lines            []EntryLineModel `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (EntryModel) TableName() string {
	return "ledger_entries"
}

// EntryLineModel is one persisted entry line
type EntryLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EntryID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	Description string          `gorm:"type:text"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	TaxID       *uuid.UUID      `gorm:"type:uuid"`
	ProductID   *uuid.UUID      `gorm:"type:uuid"`
	AccountID   *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (EntryLineModel) TableName() string {
	return "ledger_entry_lines"
}

// ToDomain converts the model and its lines to an entry
func (m *EntryModel) ToDomain() *ledger.Entry {
	e := &ledger.Entry{
		ID:               m.ID,
		ExternalID:       m.ExternalID,
		Kind:             m.Kind,
		State:            m.State,
		PaymentState:     m.PaymentState,
		PartyID:          m.PartyID,
		PayableAccountID: m.PayableAccountID,
		InvoiceDate:      m.InvoiceDate,
		DueDate:          m.DueDate,
		Ref:              m.Ref,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Lines:            make([]ledger.Line, 0, len(m.Lines)),
	}
	for _, l := range m.Lines {
		e.Lines = append(e.Lines, ledger.Line{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxAmount:   l.TaxAmount,
			TaxID:       l.TaxID,
			ProductID:   l.ProductID,
			AccountID:   l.AccountID,
		})
	}
	return e
}

// EntryFromDomain builds the header model from an entry; lines are built
// separately with LinesFromDomain
func EntryFromDomain(e *ledger.Entry) *EntryModel {
	return &EntryModel{
		BaseModel:        BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt},
		ExternalID:       e.ExternalID,
		Kind:             e.Kind,
		State:            e.State,
		PaymentState:     e.PaymentState,
		PartyID:          e.PartyID,
		PayableAccountID: e.PayableAccountID,
		InvoiceDate:      e.InvoiceDate,
		DueDate:          e.DueDate,
		Ref:              e.Ref,
	}
}

// LinesFromDomain builds line models in their original order
func LinesFromDomain(entryID uuid.UUID, lines []ledger.Line) []EntryLineModel {
	out := make([]EntryLineModel, 0, len(lines))
	for i, l := range lines {
		out = append(out, EntryLineModel{
			ID:          uuid.New(),
			EntryID:     entryID,
			Position:    i,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxAmount:   l.TaxAmount,
			TaxID:       l.TaxID,
			ProductID:   l.ProductID,
			AccountID:   l.AccountID,
		})
	}
	return out
}

// PaymentModel is the persistence model for ledger.Payment
type PaymentModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ExternalID    string          `gorm:"type:varchar(64);index"`
	EntryID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	JournalID     uuid.UUID       `gorm:"type:uuid;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Date          time.Time
	Communication string `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "ledger_payments"
}

// ToDomain converts the model to a payment
func (m *PaymentModel) ToDomain() *ledger.Payment {
	return &ledger.Payment{
		ID:            m.ID,
		ExternalID:    m.ExternalID,
		EntryID:       m.EntryID,
		JournalID:     m.JournalID,
		Amount:        m.Amount,
		Date:          m.Date,
		Communication: m.Communication,
		CreatedAt:     m.CreatedAt,
	}
}

// PaymentFromDomain builds the model from a payment
func PaymentFromDomain(p *ledger.Payment) *PaymentModel {
	return &PaymentModel{
		ID:            p.ID,
		ExternalID:    p.ExternalID,
		EntryID:       p.EntryID,
		JournalID:     p.JournalID,
		Amount:        p.Amount,
		Date:          p.Date,
		Communication: p.Communication,
		CreatedAt:     p.CreatedAt,
	}
}

// AllLedgerModels lists every model for AutoMigrate
func AllLedgerModels() []any {
	return []any{
		&JournalModel{},
		&PartyModel{},
		&ProductModel{},
		&TaxGroupModel{},
		&AccountModel{},
		&TaxModel{},
		&EntryModel{},
		&EntryLineModel{},
		&PaymentModel{},
	}
}
