package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledgersync/internal/domain/ledger"
)

// MatchTier records which lookup found an entity
type MatchTier int

const (
	// MatchNone means no entity matched; the caller creates one
	MatchNone MatchTier = iota
	// MatchExternalID is a hit on the stored external id
	MatchExternalID
	// MatchNaturalKey is a hit on the kind-specific business key
	MatchNaturalKey
	// MatchName is a hit on the exact name
	MatchName
)

// String returns the string representation of MatchTier
func (t MatchTier) String() string {
	switch t {
	case MatchExternalID:
		return "external_id"
	case MatchNaturalKey:
		return "natural_key"
	case MatchName:
		return "name"
	default:
		return "none"
	}
}

// IdentityKey carries the three lookup keys of one upstream record. Empty
// keys skip their tier.
type IdentityKey struct {
	ExternalID string
	NaturalKey string
	Name       string
}

// Match is the result of identity resolution
type Match[T any] struct {
	Entity *T
	Tier   MatchTier
	// Relinked holds the external id a fallback hit was linked to before
	// it was relinked; empty when the entity was unlinked
	Relinked string
}

// linkedEntity exposes the external id an entity is currently linked to
type linkedEntity interface {
	LinkedExternalID() string
}

// Found returns true if an existing entity matched
func (m Match[T]) Found() bool {
	return m.Entity != nil
}

// IdentityResolver maps upstream records to local entities of one kind
type IdentityResolver[T any] struct {
	lookup ledger.IdentityLookup[T]
}

// NewIdentityResolver creates a resolver over a store lookup
func NewIdentityResolver[T any](lookup ledger.IdentityLookup[T]) *IdentityResolver[T] {
	return &IdentityResolver[T]{lookup: lookup}
}

// Resolve tries external id, then natural key, then name. The first hit
// wins. A hit on a fallback tier is linked to key.ExternalID so the next run
// matches on the first tier.
func (r *IdentityResolver[T]) Resolve(ctx context.Context, key IdentityKey) (Match[T], error) {
	tiers := []struct {
		tier  MatchTier
		value string
		find  func(context.Context, string) (*T, error)
	}{
		{MatchExternalID, key.ExternalID, r.lookup.FindByExternalID},
		{MatchNaturalKey, key.NaturalKey, r.lookup.FindByNaturalKey},
		{MatchName, key.Name, r.lookup.FindByName},
	}

	for _, t := range tiers {
		if t.value == "" {
			continue
		}
		entity, err := t.find(ctx, t.value)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return Match[T]{}, fmt.Errorf("resolve by %s: %w", t.tier, err)
		}
		match := Match[T]{Entity: entity, Tier: t.tier}
		if t.tier != MatchExternalID && key.ExternalID != "" {
			if linked, ok := any(entity).(linkedEntity); ok {
				if prev := linked.LinkedExternalID(); prev != "" && prev != key.ExternalID {
					match.Relinked = prev
				}
			}
			if err := r.lookup.LinkExternalID(ctx, entity, key.ExternalID); err != nil {
				return Match[T]{}, fmt.Errorf("link external id %s: %w", key.ExternalID, err)
			}
		}
		return match, nil
	}
	return Match[T]{Tier: MatchNone}, nil
}
