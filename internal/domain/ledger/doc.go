// Package ledger contains the local ledger bounded context as seen by the
// synchronization engine.
//
// Key concepts:
//   - Journal: a cash or bank financial account
//   - Party: a customer, supplier or employee
//   - Product: a sellable/purchasable item
//   - Tax, TaxGroup, Account: tax configuration and chart-of-accounts lines
//   - Entry: an invoice, bill or journal entry with ordered lines
//   - Payment: a payment registered against an Entry
//
// Every synchronized entity carries an ExternalID, the durable link back to
// the upstream accounting service. An empty ExternalID means the entity was
// created locally or has not been matched yet.
//
// Design Pattern: Ports & Adapters
//   - Store (the port) is defined here
//   - Adapters live in infrastructure/persistence (GORM) and
//     infrastructure/persistence/memstore (in-memory)
package ledger
