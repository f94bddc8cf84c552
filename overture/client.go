package overture

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/valyala/fasthttp"

	"github.com/mapfold/geograph/geomodel"
)

// Source is the feature-catalog boundary the resolvers consume. An empty
// result set is a valid answer; transport failures surface as
// geomodel.ErrProviderUnavailable.
type Source interface {
	Query(ctx context.Context, kind Kind, bbox orb.Bound, limit int) ([]Feature, error)
}

// Client queries an Overture-style catalog endpoint serving GeoJSON feature
// collections per theme. Constructed once at process start and passed to
// every resolver.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
	log     *slog.Logger
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &fasthttp.Client{},
		timeout: 30 * time.Second,
		log:     slog.With("component", "overture"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Query(ctx context.Context, kind Kind, bbox orb.Bound, limit int) ([]Feature, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf(
		"%s/features/%s?bbox=%g,%g,%g,%g&limit=%d",
		c.baseURL, kind,
		bbox.Min.Lon(), bbox.Min.Lat(), bbox.Max.Lon(), bbox.Max.Lat(),
		limit,
	))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/geo+json")

	if err := c.http.DoTimeout(req, resp, c.queryTimeout(ctx)); err != nil {
		return nil, fmt.Errorf("%w: overture %s query: %v", geomodel.ErrProviderUnavailable, kind, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: overture %s query: status %d", geomodel.ErrProviderUnavailable, kind, resp.StatusCode())
	}

	fc, err := geojson.UnmarshalFeatureCollection(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: overture %s response: %v", geomodel.ErrProviderUnavailable, kind, err)
	}

	features := make([]Feature, 0, len(fc.Features))
	for _, gf := range fc.Features {
		f, err := DecodeFeature(kind, gf)
		if err != nil {
			// Malformed features are skipped, never fatal to the query.
			c.log.Debug("skipping malformed feature", "kind", kind, "error", err)
			continue
		}
		features = append(features, f)
		if len(features) >= limit {
			break
		}
	}
	return features, nil
}

// queryTimeout bounds the call by the caller deadline when one is set,
// falling back to the client default.
func (c *Client) queryTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < c.timeout {
			return remaining
		}
	}
	return c.timeout
}
