package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/paulmach/orb"
	"github.com/valyala/fasthttp"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
	"github.com/mapfold/geograph/routing"
	"github.com/mapfold/geograph/spatial"
)

type staticSource struct {
	features map[overture.Kind][]overture.Feature
}

func (s *staticSource) Query(ctx context.Context, kind overture.Kind, bbox orb.Bound, limit int) ([]overture.Feature, error) {
	return s.features[kind], nil
}

func newTestServer(source overture.Source, store graph.Store) *server {
	return &server{
		source:   source,
		store:    store,
		linker:   spatial.NewLinker(source, store),
		resolver: routing.NewResolver(store),
	}
}

func postCtx(body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetBodyString(body)
	return ctx
}

func roadNetworkSource() *staticSource {
	return &staticSource{features: map[overture.Kind][]overture.Feature{
		overture.KindConnector: {
			{ID: "ca", Kind: overture.KindConnector, Geometry: orb.Point{0, 0}, Connector: &overture.ConnectorAttrs{}},
			{ID: "cb", Kind: overture.KindConnector, Geometry: orb.Point{0.01, 0}, Connector: &overture.ConnectorAttrs{}},
		},
		overture.KindSegment: {
			{
				ID:       "s1",
				Kind:     overture.KindSegment,
				Geometry: orb.LineString{{0, 0}, {0.01, 0}},
				Segment: &overture.SegmentAttrs{
					Names:        overture.Names{Primary: "Main St"},
					Class:        "primary",
					ConnectorIDs: []string{"ca", "cb"},
				},
			},
		},
	}}
}

func TestNetworkLoadThenRoute(t *testing.T) {
	store := graph.NewMemoryStore()
	s := newTestServer(roadNetworkSource(), store)

	loadCtx := postCtx(`{
		"points": [
			{"address": "1 Main St", "lat": 0.001, "lon": 0.0005},
			{"address": "2 Main St", "lat": -0.001, "lon": 0.0095}
		],
		"radius_km": 2
	}`)
	s.NetworkLoadHandler(loadCtx)
	if loadCtx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("load failed: %d %s", loadCtx.Response.StatusCode(), loadCtx.Response.Body())
	}
	var loadResp map[string]int
	if err := json.Unmarshal(loadCtx.Response.Body(), &loadResp); err != nil {
		t.Fatal(err)
	}
	if loadResp["intersections"] != 2 || loadResp["segments"] != 1 || loadResp["linked_points"] != 2 {
		t.Errorf("unexpected load response: %v", loadResp)
	}

	routeCtx := postCtx(`{"origin": "1 Main St", "destination": "2 Main St", "algorithm": "astar"}`)
	s.ShortestPathHandler(routeCtx)
	if routeCtx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("route failed: %d %s", routeCtx.Response.StatusCode(), routeCtx.Response.Body())
	}
	var result geomodel.RouteResult
	if err := json.Unmarshal(routeCtx.Response.Body(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Found || result.IntersectionCount != 2 {
		t.Errorf("unexpected route: %+v", result)
	}
}

func TestShortestPathRejectsUnlinkedEndpoint(t *testing.T) {
	s := newTestServer(roadNetworkSource(), graph.NewMemoryStore())

	ctx := postCtx(`{"origin": "nowhere", "destination": "also nowhere"}`)
	s.ShortestPathHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusBadRequest {
		t.Errorf("unlinked endpoints are a client error, got %d", ctx.Response.StatusCode())
	}
}

func TestShortestPathRejectsBadPayload(t *testing.T) {
	s := newTestServer(roadNetworkSource(), graph.NewMemoryStore())

	ctx := postCtx(`{"origin": 42}`)
	s.ShortestPathHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed body, got %d", ctx.Response.StatusCode())
	}

	ctx = postCtx(`{"origin": "a", "destination": "b", "algorithm": "bfs"}`)
	s.ShortestPathHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown algorithm, got %d", ctx.Response.StatusCode())
	}
}

func TestResolveHandlerCountsPoints(t *testing.T) {
	source := &staticSource{features: map[overture.Kind][]overture.Feature{}}
	s := newTestServer(source, graph.NewMemoryStore())

	ctx := postCtx(`[{"address": "1 Main St", "lat": 0, "lon": 0}, {"address": "no coords"}]`)
	s.ResolveHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("resolve failed: %d %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var resp map[string]int
	if err := json.Unmarshal(ctx.Response.Body(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["resolved"] != 2 {
		t.Errorf("expected 2 accepted points, got %v", resp)
	}
}

func TestNetworkStatusHandler(t *testing.T) {
	store := graph.NewMemoryStore()
	s := newTestServer(roadNetworkSource(), store)

	loadCtx := postCtx(`{"points": [{"address": "1 Main St", "lat": 0, "lon": 0}], "region": "piedmont"}`)
	s.NetworkLoadHandler(loadCtx)
	if loadCtx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("load failed: %d", loadCtx.Response.StatusCode())
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.SetUserValue("region", "piedmont")
	s.NetworkStatusHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("status failed: %d", ctx.Response.StatusCode())
	}
	var status geomodel.NetworkStatus
	if err := json.Unmarshal(ctx.Response.Body(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.HasNetwork || status.IntersectionCount != 2 || status.LinkedPointCount != 1 {
		t.Errorf("unexpected status: %+v", status)
	}
}
