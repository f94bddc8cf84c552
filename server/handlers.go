package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/valyala/fasthttp"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/roadnet"
	"github.com/mapfold/geograph/routing"
)

type shortestPathRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Algorithm   string `json:"algorithm"`
}

// ShortestPathHandler routes between two previously resolved locations,
// identified by their address keys. An endpoint never linked to the network
// is a client error; a missing path is a 200 with found=false.
func (s *server) ShortestPathHandler(ctx *fasthttp.RequestCtx) {
	metricRouteCallCount.Inc()

	var req shortestPathRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		writeJSONError(ctx, http.StatusBadRequest, err)
		return
	}
	algorithm, err := routing.ParseAlgorithm(req.Algorithm)
	if err != nil {
		writeJSONError(ctx, http.StatusBadRequest, err)
		return
	}

	origin := graph.NodeRef{Label: "Location", KeyField: "address", KeyValue: req.Origin}
	destination := graph.NodeRef{Label: "Location", KeyField: "address", KeyValue: req.Destination}

	result, err := s.resolver.Route(ctx, origin, destination, algorithm)
	if err != nil {
		if errors.Is(err, geomodel.ErrUnlinkedEndpoint) {
			writeJSONError(ctx, http.StatusBadRequest, err)
		} else {
			writeJSONError(ctx, http.StatusBadGateway, err)
		}
		return
	}
	if !result.Found {
		metricRouteNotFoundCount.Inc()
	}
	writeJSON(ctx, result)
}

func (s *server) NetworkStatusHandler(ctx *fasthttp.RequestCtx) {
	region := ctx.UserValue("region").(string)

	status, err := s.store.NetworkStatus(ctx, region)
	if err != nil {
		writeJSONError(ctx, http.StatusBadGateway, err)
		return
	}
	writeJSON(ctx, status)
}

type resolvePoint struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

func (p resolvePoint) location() geomodel.Location {
	loc := geomodel.Location{Address: p.Address}
	if p.Lat != nil && p.Lon != nil {
		loc.Coords = &geomodel.Point{Lat: *p.Lat, Lon: *p.Lon}
	}
	return loc
}

// ResolveHandler runs the spatial resolutions for a batch of points.
func (s *server) ResolveHandler(ctx *fasthttp.RequestCtx) {
	metricResolveCallCount.Inc()

	var points []resolvePoint
	if err := json.Unmarshal(ctx.Request.Body(), &points); err != nil {
		writeJSONError(ctx, http.StatusBadRequest, err)
		return
	}
	metricResolvedPoints.Add(float64(len(points)))

	locations := make([]geomodel.Location, 0, len(points))
	for _, p := range points {
		locations = append(locations, p.location())
	}
	if err := s.linker.LinkBatch(ctx, locations); err != nil {
		writeJSONError(ctx, http.StatusBadGateway, err)
		return
	}
	writeJSON(ctx, map[string]int{"resolved": len(locations)})
}

type networkLoadRequest struct {
	Points      []resolvePoint `json:"points"`
	RadiusKm    float64        `json:"radius_km"`
	RoadClasses []string       `json:"road_classes"`
	Region      string         `json:"region"`
}

// NetworkLoadHandler ingests and commits the road network around a batch of
// points, then links each point to its nearest intersection.
func (s *server) NetworkLoadHandler(ctx *fasthttp.RequestCtx) {
	metricNetworkLoadCallCount.Inc()

	var req networkLoadRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		writeJSONError(ctx, http.StatusBadRequest, err)
		return
	}

	opts := []roadnet.Option{roadnet.WithRegion(req.Region), roadnet.WithRoadClasses(req.RoadClasses)}
	if req.RadiusKm > 0 {
		opts = append(opts, roadnet.WithRadiusKm(req.RadiusKm))
	}
	builder := roadnet.NewBuilder(s.source, s.store, opts...)

	anchors := make([]roadnet.Anchor, 0, len(req.Points))
	for _, p := range req.Points {
		loc := p.location()
		anchors = append(anchors, roadnet.Anchor{Node: loc, Coords: loc.Coords})
	}

	stats, err := builder.Load(ctx, anchors)
	if err != nil {
		writeJSONError(ctx, http.StatusBadGateway, err)
		return
	}
	writeJSON(ctx, map[string]int{
		"intersections":    stats.Intersections,
		"segments":         stats.Segments,
		"dropped_segments": stats.DroppedSegments,
		"linked_points":    stats.LinkedPoints,
	})
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to marshal response")
		return
	}
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetBody(body)
}
