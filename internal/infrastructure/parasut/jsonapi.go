package parasut

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// flexibleID accepts ids sent either as JSON strings or numbers
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("parasut: invalid id %s", data)
	}
	*id = flexibleID(n.String())
	return nil
}

type refObject struct {
	Type string     `json:"type"`
	ID   flexibleID `json:"id"`
}

type relationshipObject struct {
	Data json.RawMessage `json:"data"`
}

type resourceObject struct {
	Type          string                        `json:"type"`
	ID            flexibleID                    `json:"id"`
	Attributes    json.RawMessage               `json:"attributes"`
	Relationships map[string]relationshipObject `json:"relationships"`
}

type pageMeta struct {
	PageCount  int `json:"page_count"`
	TotalCount int `json:"total_count"`
}

type collectionDocument struct {
	Data     []resourceObject `json:"data"`
	Included []resourceObject `json:"included"`
	Meta     pageMeta         `json:"meta"`
}

type singleDocument struct {
	Data     *resourceObject  `json:"data"`
	Included []resourceObject `json:"included"`
}

// decodeCollection parses one page of a collection endpoint
func decodeCollection(body []byte) (reconcile.Batch, pageMeta, error) {
	var doc collectionDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return reconcile.Batch{}, pageMeta{}, fmt.Errorf("parasut: failed to parse response: %w", err)
	}
	primary, err := toResources(doc.Data)
	if err != nil {
		return reconcile.Batch{}, pageMeta{}, err
	}
	included, err := toResources(doc.Included)
	if err != nil {
		return reconcile.Batch{}, pageMeta{}, err
	}
	return reconcile.Batch{Primary: primary, Included: included}, doc.Meta, nil
}

// decodeSingle parses a single-resource response
func decodeSingle(body []byte) (*reconcile.Document, error) {
	var doc singleDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parasut: failed to parse response: %w", err)
	}
	if doc.Data == nil {
		return nil, fmt.Errorf("parasut: response has no data")
	}
	primary, err := toResource(*doc.Data)
	if err != nil {
		return nil, err
	}
	included, err := toResources(doc.Included)
	if err != nil {
		return nil, err
	}
	return &reconcile.Document{Primary: primary, Included: included}, nil
}

func toResources(objs []resourceObject) ([]reconcile.Resource, error) {
	out := make([]reconcile.Resource, 0, len(objs))
	for _, o := range objs {
		r, err := toResource(o)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func toResource(o resourceObject) (reconcile.Resource, error) {
	r := reconcile.Resource{
		Type:       o.Type,
		ID:         string(o.ID),
		Attributes: o.Attributes,
	}
	if len(o.Relationships) == 0 {
		return r, nil
	}
	r.Relationships = make(map[string]reconcile.Relationship, len(o.Relationships))
	for name, rel := range o.Relationships {
		decoded, err := decodeRelationship(rel.Data)
		if err != nil {
			return reconcile.Resource{}, fmt.Errorf("parasut: %s %s relationship %s: %w", o.Type, o.ID, name, err)
		}
		r.Relationships[name] = decoded
	}
	return r, nil
}

// decodeRelationship accepts a single ref, an array of refs, or null
func decodeRelationship(data json.RawMessage) (reconcile.Relationship, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return reconcile.Relationship{}, nil
	}

	if trimmed[0] == '[' {
		var refs []refObject
		if err := json.Unmarshal(trimmed, &refs); err != nil {
			return reconcile.Relationship{}, err
		}
		out := reconcile.Relationship{Refs: make([]reconcile.Ref, 0, len(refs)), Many: true}
		for _, ref := range refs {
			out.Refs = append(out.Refs, reconcile.Ref{Type: ref.Type, ID: string(ref.ID)})
		}
		return out, nil
	}

	var ref refObject
	if err := json.Unmarshal(trimmed, &ref); err != nil {
		return reconcile.Relationship{}, err
	}
	return reconcile.Relationship{Refs: []reconcile.Ref{{Type: ref.Type, ID: string(ref.ID)}}}, nil
}

// pageParam formats the bracketed JSON:API page parameters
func pageParam(name string, value int) (string, string) {
	return "page[" + name + "]", strconv.Itoa(value)
}
