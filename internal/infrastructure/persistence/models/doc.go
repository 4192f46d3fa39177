// Package models contains the GORM persistence models of the local ledger.
// They are kept separate from the ledger domain types so the domain stays
// free of ORM tags; the mapper functions convert in both directions.
package models
