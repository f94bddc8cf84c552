package routing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
)

// Resolver answers route queries between two already-linked points. It is
// read-only and safe to run concurrently with itself; a query racing an
// in-flight network load may see a partially committed network, which is
// accepted eventual consistency.
type Resolver struct {
	store graph.Store
	log   *slog.Logger
}

func NewResolver(store graph.Store) *Resolver {
	return &Resolver{
		store: store,
		log:   slog.With("component", "routing"),
	}
}

// Route resolves both endpoints to their nearest intersections and searches
// the road subgraph between them. Returns geomodel.ErrUnlinkedEndpoint when
// either point was never linked to the network.
func (r *Resolver) Route(ctx context.Context, origin, destination graph.NodeRef, algorithm Algorithm) (geomodel.RouteResult, error) {
	sourceID, err := r.store.LinkedIntersection(ctx, origin)
	if err != nil {
		return geomodel.RouteResult{}, fmt.Errorf("origin: %w", err)
	}
	targetID, err := r.store.LinkedIntersection(ctx, destination)
	if err != nil {
		return geomodel.RouteResult{}, fmt.Errorf("destination: %w", err)
	}

	rg, err := r.store.RoadGraph(ctx)
	if err != nil {
		return geomodel.RouteResult{}, err
	}

	result := Search(rg, sourceID, targetID, algorithm)
	if result.Found {
		result.Message = fmt.Sprintf("Route found with %d intersections", result.IntersectionCount)
	} else {
		result.Message = "No path found between the specified locations. The road network may be incomplete."
	}
	r.log.Debug("route query",
		"source", sourceID, "target", targetID,
		"algorithm", algorithm, "found", result.Found, "distance_m", result.DistanceM)
	return result, nil
}
