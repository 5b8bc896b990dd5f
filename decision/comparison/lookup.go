package comparison

import (
	"github.com/shopspring/decimal"

	"saas-compare/decision/catalog"
	"saas-compare/pkg/units"
)

// Sentinel display values for the pricing view.
const (
	NotAvailable  = "Not available"
	NotApplicable = "N/A"
)

// CellState is the structured meaning of a matrix cell.
type CellState string

const (
	StatePresent      CellState = "present"
	StateAbsent       CellState = "absent"
	StateNotAvailable CellState = "not_available"
	StatePrice        CellState = "price"
	StateCustom       CellState = "custom"
	StateNA           CellState = "na"
)

// Cell is one (row, entity) value.
type Cell struct {
	State   CellState        `json:"state"`
	Present bool             `json:"present"`
	Value   string           `json:"value,omitempty"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
}

// Offered reports whether the entity has the row at all: the attribute for
// boolean views, the tier for the pricing view.
func (c Cell) Offered() bool {
	switch c.State {
	case StatePresent, StatePrice, StateCustom, StateNA:
		return true
	default:
		return false
	}
}

// Has reports whether entity has name in any non-nil tier (features,
// limitations) or among its tags. The check is existential across tiers: a
// feature offered only at the top tier counts the same as one offered
// everywhere.
func Has(entity *catalog.Entity, name string, mode Mode) bool {
	if mode == ModeTags {
		for _, tag := range entity.Tags {
			if tag == name {
				return true
			}
		}
		return false
	}
	for _, tier := range entity.AttributeGroups {
		if tier == nil {
			continue
		}
		for _, n := range tierNames(tier, mode) {
			if n == name {
				return true
			}
		}
	}
	return false
}

// TierValue returns the pricing cell for entity at tierKey.
func TierValue(entity *catalog.Entity, tierKey string) Cell {
	tier := entity.Tier(tierKey)
	if tier == nil {
		return Cell{State: StateNotAvailable, Value: NotAvailable}
	}
	cell := Cell{Present: true, Value: FormatPrice(tier.Price, entity.CurrencyCode())}
	switch tier.Price.Kind {
	case catalog.PriceAmount:
		amount := tier.Price.Amount
		cell.State = StatePrice
		cell.Amount = &amount
	case catalog.PriceLabel:
		cell.State = StateCustom
	default:
		cell.State = StateNA
	}
	return cell
}

// FormatPrice renders a tier price: numeric amounts are currency formatted,
// labels such as "Custom" are returned verbatim, and an unset price is "N/A".
func FormatPrice(p catalog.Price, currency string) string {
	switch p.Kind {
	case catalog.PriceAmount:
		return units.FormatMoney(p.Amount, currency)
	case catalog.PriceLabel:
		return p.Label
	default:
		return NotApplicable
	}
}

func presenceCell(ok bool) Cell {
	if ok {
		return Cell{State: StatePresent, Present: true}
	}
	return Cell{State: StateAbsent}
}
