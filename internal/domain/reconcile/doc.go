// Package reconcile contains the reconciliation engine that maps upstream
// accounting resources onto the local ledger.
//
// Key concepts:
//   - Resource / Batch: one page of upstream records plus its included set
//   - ReferenceIndex: resolves relationship pointers inside a batch, with a
//     central table of alternate type spellings
//   - IdentityResolver: external id, then natural key, then name
//   - TaxResolver: maps an upstream VAT rate to a local tax, provisioning
//     an inclusive tax when nothing matches
//   - Valuate: picks a line unit price from inconsistently populated fields
//   - ChartPolicy: pluggable chart-of-accounts heuristics
//
// Design Pattern: Ports & Adapters
//   - Source (the upstream port) is defined here
//   - The Parasut adapter lives in infrastructure/parasut
package reconcile
