package genesis

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/roach88/genesis/internal/ir"
)

// ChainIDField is the top-level field holding the chain id.
const ChainIDField = "chain_id"

// Document is a decoded genesis file.
type Document struct {
	root    map[string]any
	chainID string
	digest  string
}

// Decode reads a whole genesis document from r.
func Decode(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return Parse(raw)
}

// Parse decodes raw genesis JSON.
func Parse(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, &MalformedError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, &MalformedError{Reason: "document root is not an object"}
	}

	doc, err := FromMap(obj)
	if err != nil {
		return nil, err
	}
	doc.digest = ir.DocumentDigest(raw)
	return doc, nil
}

// FromMap wraps an already decoded document. The map must not be modified
// afterwards. Documents built this way have no digest.
//
// Numbers should be json.Number (decoded with UseNumber). Plain float64
// values are accepted only when they are integers of magnitude at most 2^53;
// anything else fails extraction as malformed.
func FromMap(root map[string]any) (*Document, error) {
	v, ok := root[ChainIDField]
	if !ok {
		return nil, &MalformedError{Path: ChainIDField, Reason: "missing"}
	}
	chainID, ok := v.(string)
	if !ok || chainID == "" {
		return nil, &MalformedError{Path: ChainIDField, Reason: "must be a non-empty string"}
	}
	return &Document{root: root, chainID: chainID}, nil
}

// ChainID returns the chain id of the document.
func (d *Document) ChainID() string {
	return d.chainID
}

// Digest returns the content digest of the raw document, or "" when the
// document was built with FromMap.
func (d *Document) Digest() string {
	return d.digest
}

// Node returns the raw value found at p.
func (d *Document) Node(p ir.Path) (any, error) {
	var cur any = d.root
	for i, step := range p {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, &MalformedError{
				Path:   p[:i].String(),
				Reason: "expected an object",
			}
		}
		next, ok := obj[step]
		if !ok {
			return nil, &MalformedError{Path: p[:i+1].String(), Reason: "missing"}
		}
		cur = next
	}
	return cur, nil
}

// Lookup returns the list of records found at p. The path must exist and
// hold a list of objects; an empty list is valid.
func (d *Document) Lookup(p ir.Path) ([]ir.Record, error) {
	node, err := d.Node(p)
	if err != nil {
		return nil, err
	}
	recs, err := ir.AsRecords(node)
	if err != nil {
		return nil, &MalformedError{Path: p.String(), Reason: err.Error()}
	}
	return recs, nil
}
