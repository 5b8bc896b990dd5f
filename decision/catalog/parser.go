package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	cmperrors "saas-compare/pkg/errors"
)

// Format is a catalog document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Catalog is a parsed catalog document.
type Catalog struct {
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
	Currency string   `json:"currency,omitempty" yaml:"currency,omitempty"`
	Entities []Entity `json:"entities" yaml:"entities"`
}

// Parser parses catalog documents. Documents are either a bare list of
// entities or an object with an "entities" key.
type Parser struct {
	// AllowDuplicates keeps later entities that reuse an earlier id instead of
	// rejecting the document.
	AllowDuplicates bool
	// DefaultCurrency applies when neither the entity nor the document names
	// a currency.
	DefaultCurrency string
}

// NewParser creates a new catalog parser
func NewParser() *Parser {
	return &Parser{}
}

// FormatForPath guesses the document format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFile parses a catalog file, choosing the format by extension.
func (p *Parser) ParseFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()
	return p.Parse(f, FormatForPath(path))
}

// Parse parses a catalog document from a reader.
func (p *Parser) Parse(r io.Reader, format Format) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return p.ParseBytes(data, format)
}

// ParseBytes parses a catalog document from bytes.
func (p *Parser) ParseBytes(data []byte, format Format) (*Catalog, error) {
	var (
		cat *Catalog
		err error
	)
	switch format {
	case FormatYAML:
		cat, err = decodeYAML(data)
	default:
		cat, err = decodeJSON(data)
	}
	if err != nil {
		return nil, err
	}
	if err := p.finish(cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func decodeJSON(data []byte) (*Catalog, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &Catalog{Entities: []Entity{}}, nil
	}
	var cat Catalog
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &cat.Entities); err != nil {
			return nil, fmt.Errorf("failed to decode catalog JSON: %w", err)
		}
		return &cat, nil
	}
	if err := json.Unmarshal(trimmed, &cat); err != nil {
		return nil, fmt.Errorf("failed to decode catalog JSON: %w", err)
	}
	return &cat, nil
}

func decodeYAML(data []byte) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode catalog YAML: %w", err)
	}
	var cat Catalog
	if len(root.Content) == 0 {
		return &Catalog{Entities: []Entity{}}, nil
	}
	doc := root.Content[0]
	var err error
	if doc.Kind == yaml.SequenceNode {
		err = doc.Decode(&cat.Entities)
	} else {
		err = doc.Decode(&cat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode catalog YAML: %w", err)
	}
	return &cat, nil
}

// finish validates entities, rejects duplicate ids and applies the catalog
// currency to entities that do not name their own.
func (p *Parser) finish(cat *Catalog) error {
	if cat.Entities == nil {
		cat.Entities = []Entity{}
	}
	currency := cat.Currency
	if currency == "" {
		currency = p.DefaultCurrency
	}
	seen := make(map[string]int, len(cat.Entities))
	kept := cat.Entities[:0]
	for i := range cat.Entities {
		e := cat.Entities[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		if e.Currency == "" {
			e.Currency = currency
		}
		if first, dup := seen[e.ID]; dup {
			if !p.AllowDuplicates {
				return fmt.Errorf("entity %d: %w", i,
					cmperrors.NewInvalidEntityError("id", e.ID, fmt.Sprintf("duplicate id (first seen at entity %d)", first)))
			}
			kept[first] = e
			continue
		}
		seen[e.ID] = len(kept)
		kept = append(kept, e)
	}
	cat.Entities = kept
	return nil
}

// MarshalCanonical encodes entities as JSON with map keys sorted, suitable for
// content hashing.
func MarshalCanonical(entities []Entity) ([]byte, error) {
	return json.Marshal(entities)
}
