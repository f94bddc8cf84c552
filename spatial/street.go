package spatial

import (
	"context"
	"fmt"
	"math"

	"github.com/mapfold/geograph/geomatch"
	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
)

// ResolveStreet links the location to the nearest road segment within 1 km.
// Segments are lines, so there is no containment pass and no distance
// threshold beyond the query radius.
func (l *Linker) ResolveStreet(ctx context.Context, loc geomodel.Location) (geomodel.RoadSegment, error) {
	if loc.Coords == nil {
		return geomodel.RoadSegment{}, geomodel.ErrMissingCoordinates
	}
	pt := *loc.Coords

	candidates, err := l.source.Query(ctx, overture.KindSegment, overture.RadiusBound(pt, streetRadiusKm), 50)
	if err != nil {
		return geomodel.RoadSegment{}, fmt.Errorf("query segments: %w", err)
	}

	found, _, ok := geomatch.Nearest(pt, candidates, math.Inf(1))
	if !ok {
		return geomodel.RoadSegment{}, geomodel.ErrNoCandidate
	}

	name := found.Segment.Names.Primary
	if name == "" {
		name = "Unnamed Road"
	}
	street := geomodel.RoadSegment{
		GersID:    found.ID,
		Name:      name,
		RoadClass: found.Segment.Class,
		// Associated with the search point, not the segment geometry.
		Coords: pt,
	}

	if err := graph.UpsertEntity(ctx, l.store, street); err != nil {
		return geomodel.RoadSegment{}, err
	}
	if err := graph.Link(ctx, l.store, graph.RelLocatedOn, loc, street); err != nil {
		return geomodel.RoadSegment{}, err
	}
	return street, nil
}
