// Package htmlimport reads a vendor pricing comparison table into a catalog
// entity.
//
// The expected markup is a table with class "pricing". The header row names
// the tiers (data-tier on each header cell, or the cell text). A row with
// class "price" carries data-price on each cell; numbers become amounts and
// anything else a label such as "Custom". Other rows are features, or
// limitations when the row has class "limitation", with a check mark in the
// cell of every tier that has them. A price cell with class "unavailable"
// marks the tier as not offered.
package htmlimport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"saas-compare/decision/catalog"
	"saas-compare/pkg/platform"
	"saas-compare/pkg/units"
)

// Options describe the entity being imported.
type Options struct {
	ID       string
	Name     string
	Category string
	Currency string
	// Selector overrides the table selector.
	Selector string
}

const defaultSelector = "table.pricing"

var (
	yesMarks = map[string]bool{"✓": true, "✔": true, "yes": true, "true": true, "included": true}
	slugRe   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Parse reads the pricing table from an HTML document.
func Parse(r io.Reader, opts Options) (*catalog.Entity, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	sel := opts.Selector
	if sel == "" {
		sel = defaultSelector
	}
	table := doc.Find(sel).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no pricing table matching %q", sel)
	}

	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil, fmt.Errorf("pricing table has no rows")
	}

	tiers := headerTiers(rows.First())
	if len(tiers) == 0 {
		return nil, fmt.Errorf("pricing table header names no tiers")
	}

	entity := &catalog.Entity{
		ID:              opts.ID,
		Name:            opts.Name,
		Category:        opts.Category,
		Kind:            catalog.KindTool,
		Currency:        opts.Currency,
		AttributeGroups: make(map[string]*catalog.AttributeSet, len(tiers)),
		Tags:            []string{},
	}
	if entity.Name == "" {
		entity.Name = strings.TrimSpace(doc.Find("title").First().Text())
	}
	for _, key := range tiers {
		entity.AttributeGroups[key] = &catalog.AttributeSet{Features: []string{}, Limitations: []string{}}
	}

	rows.Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		cells := row.Children()
		if cells.Length() < 2 {
			return
		}
		label := clean(cells.First().Text())
		values := cells.Slice(1, goquery.ToEnd)

		switch {
		case row.HasClass("price"):
			values.Each(func(i int, cell *goquery.Selection) {
				if i >= len(tiers) {
					return
				}
				if cell.HasClass("unavailable") {
					entity.AttributeGroups[tiers[i]] = nil
					return
				}
				if set := entity.AttributeGroups[tiers[i]]; set != nil {
					set.Price = parsePrice(cell)
					if period, ok := cell.Attr("data-period"); ok {
						set.BillingPeriod = units.ParsePeriod(period)
					}
				}
			})
		case row.HasClass("integrations"):
			values.Each(func(_ int, cell *goquery.Selection) {
				for _, tag := range strings.Split(cell.Text(), ",") {
					if tag = clean(tag); tag != "" && !contains(entity.Tags, tag) {
						entity.Tags = append(entity.Tags, tag)
					}
				}
			})
		default:
			if label == "" {
				return
			}
			limitation := row.HasClass("limitation")
			values.Each(func(i int, cell *goquery.Selection) {
				if i >= len(tiers) || !checked(cell) {
					return
				}
				set := entity.AttributeGroups[tiers[i]]
				if set == nil {
					return
				}
				if limitation {
					set.Limitations = append(set.Limitations, label)
				} else {
					set.Features = append(set.Features, label)
				}
			})
		}
	})

	return entity, nil
}

// Fetch downloads url and parses its pricing table.
func Fetch(ctx context.Context, client *platform.HTTPClient, url string, opts Options) (*catalog.Entity, error) {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return Parse(resp.Body, opts)
}

func headerTiers(header *goquery.Selection) []string {
	var tiers []string
	header.Children().Slice(1, goquery.ToEnd).Each(func(_ int, cell *goquery.Selection) {
		key, ok := cell.Attr("data-tier")
		if !ok || strings.TrimSpace(key) == "" {
			key = Slug(cell.Text())
		}
		tiers = append(tiers, strings.TrimSpace(key))
	})
	return tiers
}

func parsePrice(cell *goquery.Selection) catalog.Price {
	raw, ok := cell.Attr("data-price")
	if !ok {
		return catalog.Price{}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return catalog.Price{}
	}
	if amount, err := decimal.NewFromString(raw); err == nil {
		return catalog.NewPrice(amount)
	}
	return catalog.LabelPrice(raw)
}

func checked(cell *goquery.Selection) bool {
	if v, ok := cell.Attr("data-value"); ok {
		return yesMarks[strings.ToLower(strings.TrimSpace(v))]
	}
	return yesMarks[strings.ToLower(clean(cell.Text()))]
}

// Slug turns a header label into a tier key: "Pay as you go" -> "pay_as_you_go".
func Slug(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	return strings.Trim(s, "_")
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
