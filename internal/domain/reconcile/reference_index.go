package reconcile

// DefaultAliases lists the alternate spellings under which the upstream may
// emit an included resource type. Lookups try the requested type first and
// then each alias in order.
var DefaultAliases = map[string][]string{
	TypeProducts:            {"product"},
	"product":               {TypeProducts},
	TypeContacts:            {"contact"},
	"contact":               {TypeContacts},
	TypePayments:            {"payment"},
	"payment":               {TypePayments},
	TypeEmployees:           {"employee"},
	"employee":              {TypeEmployees},
	TypeAccounts:            {"account"},
	"account":               {TypeAccounts},
	TypeSalesInvoiceDetails: {"sales_invoice_detail"},
	TypePurchaseBillDetails: {"purchase_bill_detail"},
}

// Lookup scans included for an exact (type, id) match
func Lookup(included []Resource, resourceType, id string) (*Resource, bool) {
	for i := range included {
		if included[i].Type == resourceType && included[i].ID == id {
			return &included[i], true
		}
	}
	return nil, false
}

// ReferenceIndex resolves (type, id) pairs against one batch's included set
type ReferenceIndex struct {
	byRef   map[Ref]*Resource
	aliases map[string][]string
}

// NewReferenceIndex indexes included with the default alias table. When the
// same (type, id) appears twice the first occurrence wins, matching a
// linear scan.
func NewReferenceIndex(included []Resource) *ReferenceIndex {
	return NewReferenceIndexWithAliases(included, DefaultAliases)
}

// NewReferenceIndexWithAliases indexes included with a custom alias table
func NewReferenceIndexWithAliases(included []Resource, aliases map[string][]string) *ReferenceIndex {
	idx := &ReferenceIndex{
		byRef:   make(map[Ref]*Resource, len(included)),
		aliases: aliases,
	}
	for i := range included {
		ref := included[i].Ref()
		if _, exists := idx.byRef[ref]; !exists {
			idx.byRef[ref] = &included[i]
		}
	}
	return idx
}

// Len returns the number of indexed resources
func (x *ReferenceIndex) Len() int {
	return len(x.byRef)
}

// Resolve looks up an exact (type, id) pair without aliases
func (x *ReferenceIndex) Resolve(resourceType, id string) (*Resource, bool) {
	r, ok := x.byRef[Ref{Type: resourceType, ID: id}]
	return r, ok
}

// ResolveRef looks up a ref, falling back to the alias table for its type
func (x *ReferenceIndex) ResolveRef(ref Ref) (*Resource, bool) {
	if r, ok := x.Resolve(ref.Type, ref.ID); ok {
		return r, true
	}
	for _, alt := range x.aliases[ref.Type] {
		if r, ok := x.Resolve(alt, ref.ID); ok {
			return r, true
		}
	}
	return nil, false
}

// ResolveAs looks up id under an expected type, trying aliases of that type
// and finally the type the ref itself declared
func (x *ReferenceIndex) ResolveAs(expectedType string, ref Ref) (*Resource, bool) {
	if r, ok := x.ResolveRef(Ref{Type: expectedType, ID: ref.ID}); ok {
		return r, true
	}
	if ref.Type != "" && ref.Type != expectedType {
		return x.ResolveRef(ref)
	}
	return nil, false
}

// Related resolves every ref of a relationship, skipping refs whose target
// was not included
func (x *ReferenceIndex) Related(r *Resource, relationship, expectedType string) []*Resource {
	rel := r.Relationship(relationship)
	out := make([]*Resource, 0, len(rel.Refs))
	for _, ref := range rel.Refs {
		if target, ok := x.ResolveAs(expectedType, ref); ok {
			out = append(out, target)
		}
	}
	return out
}
