package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"saas-compare/decision/catalog"
	"saas-compare/pkg/platform"
)

// HTTPSource reads entities from a remote catalog API:
//
//	GET {base}/entities?ids=a,b&category=..&kind=..&q=..&limit=..
//
// The body is a catalog document, either a bare entity list or an object
// with an "entities" key.
type HTTPSource struct {
	BaseURL string
	Client  *platform.HTTPClient
	parser  *catalog.Parser
}

func NewHTTPSource(baseURL string, client *platform.HTTPClient) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
		parser:  &catalog.Parser{AllowDuplicates: true},
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Fetch(ctx context.Context, q Query) Result {
	var raw json.RawMessage
	if err := s.Client.GetJSON(ctx, s.url(q), &raw); err != nil {
		return Failure(s.Name(), err)
	}
	cat, err := s.parser.ParseBytes(raw, catalog.FormatJSON)
	if err != nil {
		return Failure(s.Name(), fmt.Errorf("remote catalog: %w", err))
	}
	return Success(s.Name(), q, cat.Entities)
}

func (s *HTTPSource) url(q Query) string {
	v := url.Values{}
	if len(q.IDs) > 0 {
		v.Set("ids", strings.Join(q.IDs, ","))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Kind != "" {
		v.Set("kind", q.Kind)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	u := s.BaseURL + "/entities"
	if enc := v.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
