package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PriceKind distinguishes the three states a tier price can be in.
type PriceKind int

const (
	// PriceUnset means the tier exists but carries no price.
	PriceUnset PriceKind = iota
	// PriceAmount is a numeric price in the entity's currency.
	PriceAmount
	// PriceLabel is a non-numeric marker such as "Custom", kept verbatim.
	PriceLabel
)

// Price is a tier price. A label is never coerced to a number, and an unset
// price is distinct from an amount of zero.
type Price struct {
	Kind   PriceKind
	Amount decimal.Decimal
	Label  string
}

// NewPrice returns a numeric price.
func NewPrice(amount decimal.Decimal) Price {
	return Price{Kind: PriceAmount, Amount: amount}
}

// PriceFromInt is a convenience for whole-unit prices.
func PriceFromInt(amount int64) Price {
	return NewPrice(decimal.NewFromInt(amount))
}

// LabelPrice returns a non-numeric price such as "Custom".
func LabelPrice(label string) Price {
	return Price{Kind: PriceLabel, Label: label}
}

// IsSet reports whether the price carries either an amount or a label.
func (p Price) IsSet() bool {
	return p.Kind != PriceUnset
}

func (p Price) String() string {
	switch p.Kind {
	case PriceAmount:
		return p.Amount.String()
	case PriceLabel:
		return p.Label
	default:
		return ""
	}
}

// MarshalJSON writes numbers as JSON numbers, labels as strings and unset as null.
func (p Price) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PriceAmount:
		return []byte(p.Amount.String()), nil
	case PriceLabel:
		return json.Marshal(p.Label)
	default:
		return []byte("null"), nil
	}
}

// An empty label would read back from storage as an unset price; catalogs
// use null for that.
var errEmptyLabel = errors.New("empty price label, use null for an unpriced tier")

// UnmarshalJSON accepts null, a JSON number or a non-empty JSON string.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*p = Price{}
		return nil
	case data[0] == '"':
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return fmt.Errorf("invalid price label: %w", err)
		}
		if strings.TrimSpace(label) == "" {
			return errEmptyLabel
		}
		*p = LabelPrice(label)
		return nil
	default:
		amount, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("invalid price %s: %w", data, err)
		}
		*p = NewPrice(amount)
		return nil
	}
}

// UnmarshalYAML mirrors UnmarshalJSON: quoted scalars stay labels even when
// they look numeric.
func (p *Price) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a scalar", node.Line)
	}
	switch node.Tag {
	case "!!null":
		*p = Price{}
	case "!!int", "!!float":
		amount, err := decimal.NewFromString(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid price %q: %w", node.Line, node.Value, err)
		}
		*p = NewPrice(amount)
	default:
		if strings.TrimSpace(node.Value) == "" {
			return fmt.Errorf("line %d: %w", node.Line, errEmptyLabel)
		}
		*p = LabelPrice(node.Value)
	}
	return nil
}

// MarshalYAML keeps the three states round-trippable.
func (p Price) MarshalYAML() (interface{}, error) {
	switch p.Kind {
	case PriceAmount:
		tag := "!!float"
		if p.Amount.Equal(p.Amount.Truncate(0)) {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: p.Amount.String()}, nil
	case PriceLabel:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Label, Style: yaml.DoubleQuotedStyle}, nil
	default:
		return nil, nil
	}
}
