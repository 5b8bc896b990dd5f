// Package awspricing builds a cloud catalog entity from the AWS Price List
// API. Each purchase term becomes a tier: on-demand and reserved terms map to
// the on_demand and reserved tiers, and zero-priced on-demand free tier
// dimensions add a free_tier tier.
package awspricing

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"saas-compare/decision/catalog"
	"saas-compare/pkg/units"
)

// The Price List API is only served from a few regions.
const apiRegion = "us-east-1"

const (
	DefaultTierAttribute = "instanceType"
	DefaultMaxFeatures   = 50
	DefaultMaxPages      = 20
)

// Options control one import.
type Options struct {
	ServiceCode   string
	Region        string
	TierAttribute string
	MaxFeatures   int
	MaxPages      int
}

func (o *Options) withDefaults() {
	if o.TierAttribute == "" {
		o.TierAttribute = DefaultTierAttribute
	}
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = DefaultMaxFeatures
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
}

type Importer struct {
	client pricing.GetProductsAPIClient
	logger *zap.Logger
}

func NewImporter(client pricing.GetProductsAPIClient, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{client: client, logger: logger}
}

// NewFromEnvironment loads AWS credentials the standard way and returns an
// importer bound to the Price List endpoint.
func NewFromEnvironment(ctx context.Context, logger *zap.Logger) (*Importer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(apiRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewImporter(pricing.NewFromConfig(cfg), logger), nil
}

// Import pages through GetProducts for the service and region and folds the
// products into a single entity.
func (im *Importer) Import(ctx context.Context, opts Options) (*catalog.Entity, error) {
	opts.withDefaults()
	if opts.ServiceCode == "" || opts.Region == "" {
		return nil, fmt.Errorf("service code and region are required")
	}

	input := &pricing.GetProductsInput{
		ServiceCode:   aws.String(opts.ServiceCode),
		FormatVersion: aws.String("aws_v1"),
		Filters: []types.Filter{
			{Field: aws.String("regionCode"), Type: types.FilterTypeTermMatch, Value: aws.String(opts.Region)},
		},
		MaxResults: aws.Int32(100),
	}

	agg := newAggregator(opts)
	paginator := pricing.NewGetProductsPaginator(im.client, input)
	for page := 0; paginator.HasMorePages() && page < opts.MaxPages; page++ {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("GetProducts page %d: %w", page+1, err)
		}
		for _, doc := range out.PriceList {
			var p product
			if err := json.Unmarshal([]byte(doc), &p); err != nil {
				im.logger.Warn("Skipping malformed price list entry", zap.Error(err))
				continue
			}
			agg.add(&p)
		}
	}

	entity := agg.entity()
	im.logger.Info("Imported AWS pricing",
		zap.String("service", opts.ServiceCode),
		zap.String("region", opts.Region),
		zap.Int("products", agg.products),
		zap.Int("tiers", len(entity.AttributeGroups)))
	return entity, nil
}

// ============================================================================
// Price list documents
// ============================================================================

type product struct {
	Product struct {
		ProductFamily string            `json:"productFamily"`
		Attributes    map[string]string `json:"attributes"`
		SKU           string            `json:"sku"`
	} `json:"product"`
	ServiceCode string                     `json:"serviceCode"`
	Terms       map[string]map[string]term `json:"terms"`
}

type term struct {
	PriceDimensions map[string]priceDimension `json:"priceDimensions"`
	TermAttributes  map[string]string         `json:"termAttributes"`
}

type priceDimension struct {
	Unit         string            `json:"unit"`
	Description  string            `json:"description"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

// ============================================================================
// Aggregation
// ============================================================================

type tierAcc struct {
	price       *decimal.Decimal
	unit        string
	features    []string
	seenFeature map[string]bool
	limitations []string
	seenLimit   map[string]bool
}

// offer keeps the cheapest price seen. Equal prices keep the smaller unit
// name so the result does not depend on map order.
func (t *tierAcc) offer(price decimal.Decimal, unit string) {
	if t.price == nil || price.LessThan(*t.price) || (price.Equal(*t.price) && unit < t.unit) {
		p := price
		t.price = &p
		t.unit = unit
	}
}

func (t *tierAcc) feature(f string, limit int) {
	if f == "" || t.seenFeature[f] || len(t.features) >= limit {
		return
	}
	t.seenFeature[f] = true
	t.features = append(t.features, f)
}

func (t *tierAcc) limitation(l string) {
	if l == "" || t.seenLimit[l] {
		return
	}
	t.seenLimit[l] = true
	t.limitations = append(t.limitations, l)
}

type aggregator struct {
	opts     Options
	family   string
	products int
	tiers    map[string]*tierAcc
}

func newAggregator(opts Options) *aggregator {
	return &aggregator{opts: opts, tiers: make(map[string]*tierAcc)}
}

func (a *aggregator) tier(key string) *tierAcc {
	t, ok := a.tiers[key]
	if !ok {
		t = &tierAcc{seenFeature: map[string]bool{}, seenLimit: map[string]bool{}}
		a.tiers[key] = t
	}
	return t
}

func (a *aggregator) add(p *product) {
	a.products++
	if a.family == "" {
		a.family = p.Product.ProductFamily
	}
	feature := ""
	if v := p.Product.Attributes[a.opts.TierAttribute]; v != "" {
		feature = a.opts.TierAttribute + ": " + v
	}

	for _, termType := range sortedKeys(p.Terms) {
		offers := p.Terms[termType]
		for _, offerCode := range sortedKeys(offers) {
			offer := offers[offerCode]
			for _, rateCode := range sortedKeys(offer.PriceDimensions) {
				dim := offer.PriceDimensions[rateCode]
				usd, ok := dim.PricePerUnit["USD"]
				if !ok {
					continue
				}
				price, err := decimal.NewFromString(usd)
				if err != nil {
					continue
				}
				key := TierKeyFor(termType, price, dim.Description)
				if key == "" {
					continue
				}
				t := a.tier(key)
				if key == "free_tier" || price.IsPositive() {
					t.offer(price, dim.Unit)
				}
				t.feature(feature, a.opts.MaxFeatures)
				if key == "reserved" {
					t.limitation(commitment(offer.TermAttributes))
				}
			}
		}
	}
}

func (a *aggregator) entity() *catalog.Entity {
	e := &catalog.Entity{
		ID:              strings.ToLower(a.opts.ServiceCode) + "-" + a.opts.Region,
		Name:            a.opts.ServiceCode + " (" + a.opts.Region + ")",
		Category:        a.family,
		Kind:            catalog.KindCloud,
		Provider:        catalog.AWS,
		Currency:        "USD",
		AttributeGroups: make(map[string]*catalog.AttributeSet, len(a.tiers)),
		Tags:            []string{a.opts.Region},
	}
	for key, t := range a.tiers {
		set := &catalog.AttributeSet{
			BillingPeriod: PeriodForUnit(t.unit),
			Features:      append([]string{}, t.features...),
			Limitations:   append([]string{}, t.limitations...),
		}
		sort.Strings(set.Limitations)
		if t.price != nil {
			set.Price = catalog.NewPrice(*t.price)
		}
		e.AttributeGroups[key] = set
	}
	return e
}

// TierKeyFor maps a price list term onto a tier key of the AWS tier set.
func TierKeyFor(termType string, price decimal.Decimal, description string) string {
	switch termType {
	case "OnDemand":
		if price.IsZero() && strings.Contains(strings.ToLower(description), "free tier") {
			return "free_tier"
		}
		return "on_demand"
	case "Reserved":
		return "reserved"
	default:
		return ""
	}
}

// PeriodForUnit maps a price list unit onto a billing period.
func PeriodForUnit(unit string) units.BillingPeriod {
	switch strings.ToLower(unit) {
	case "hrs", "hour", "hours":
		return units.PeriodHourly
	case "quantity":
		return units.PeriodOneTime
	default:
		return units.PeriodMonthly
	}
}

func commitment(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+attrs[k])
	}
	return "Commitment " + strings.Join(parts, ", ")
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
