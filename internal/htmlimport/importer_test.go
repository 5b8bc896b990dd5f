package htmlimport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-compare/decision/catalog"
	"saas-compare/decision/comparison"
	"saas-compare/pkg/platform"
	"saas-compare/pkg/units"
)

const page = `<html><head><title>ToolX Pricing</title></head><body>
<table class="pricing">
  <thead>
    <tr><th></th><th data-tier="free">Free</th><th>Starter</th><th data-tier="pro">Pro</th><th>Enterprise</th></tr>
  </thead>
  <tbody>
    <tr class="price"><th>Price</th>
      <td class="unavailable">-</td>
      <td data-price="25">$25</td>
      <td data-price="900" data-period="yearly">$900/yr</td>
      <td data-price="Custom">Contact sales</td>
    </tr>
    <tr><th>Unlimited   projects</th><td>✗</td><td>✓</td><td>✓</td><td>✓</td></tr>
    <tr><th>SSO</th><td></td><td>✗</td><td>✗</td><td data-value="yes">Included</td></tr>
    <tr class="limitation"><th>5 seats max</th><td>✓</td><td>✓</td><td>✗</td><td>✗</td></tr>
    <tr class="integrations"><th>Integrations</th><td colspan="4">Slack, Zoom, Slack</td></tr>
  </tbody>
</table>
</body></html>`

func TestParse(t *testing.T) {
	e, err := Parse(strings.NewReader(page), Options{ID: "toolx", Category: "pm"})
	require.NoError(t, err)
	require.NoError(t, e.Validate())

	assert.Equal(t, "ToolX Pricing", e.Name)
	assert.Equal(t, []string{"Slack", "Zoom"}, e.Tags)
	assert.Equal(t, []string{"free", "starter", "pro", "enterprise"}, e.TierKeys())
	assert.Nil(t, e.AttributeGroups["free"])

	starter := e.Tier("starter")
	require.NotNil(t, starter)
	assert.Equal(t, "25", starter.Price.Amount.String())
	assert.Equal(t, []string{"Unlimited projects"}, starter.Features)
	assert.Equal(t, []string{"5 seats max"}, starter.Limitations)

	pro := e.Tier("pro")
	assert.Equal(t, units.PeriodAnnual, pro.BillingPeriod)
	assert.Empty(t, pro.Limitations)

	enterprise := e.Tier("enterprise")
	assert.Equal(t, catalog.PriceLabel, enterprise.Price.Kind)
	assert.Equal(t, "Custom", enterprise.Price.Label)
	assert.Equal(t, []string{"Unlimited projects", "SSO"}, enterprise.Features)

	assert.Equal(t, "Not available", comparison.TierValue(e, "free").Value)
	assert.Equal(t, "Custom", comparison.TierValue(e, "enterprise").Value)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(page), Options{})
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(`<p>no table</p>`), Options{ID: "x"})
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(`<table class="pricing"><tr><th></th></tr></table>`), Options{ID: "x"})
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	client := platform.NewHTTPClient(0, time.Second)
	e, err := Fetch(context.Background(), client, srv.URL+"/pricing", Options{ID: "toolx", Name: "ToolX"})
	require.NoError(t, err)
	assert.Equal(t, "ToolX", e.Name)

	_, err = Fetch(context.Background(), client, srv.URL+"/missing", Options{ID: "toolx"})
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "pay_as_you_go", Slug(" Pay as you go "))
	assert.Equal(t, "pro_plus", Slug("Pro+ Plus"))
}
