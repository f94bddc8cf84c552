package spatial

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/mapfold/geograph/geomatch"
	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
)

// ResolveNearbyPlaces upserts the points of interest around the location and
// links each with HAS_NEARBY_PLACE. Every place is then matched against the
// address catalog; a place without a matching address keeps only the
// proximity edge.
func (l *Linker) ResolveNearbyPlaces(ctx context.Context, loc geomodel.Location) ([]geomodel.Place, error) {
	if loc.Coords == nil {
		return nil, geomodel.ErrMissingCoordinates
	}
	pt := *loc.Coords

	candidates, err := l.source.Query(ctx, overture.KindPlace, overture.BufferBound(pt, placeBuffer), 20)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}

	var found []geomodel.Place
	for _, candidate := range candidates {
		place := placeOf(candidate)
		if err := graph.UpsertEntity(ctx, l.store, place); err != nil {
			return found, err
		}
		if err := graph.Link(ctx, l.store, graph.RelHasNearbyPlace, loc, place); err != nil {
			return found, err
		}
		found = append(found, place)

		if _, err := l.ResolvePlaceAddress(ctx, place); err != nil && !errors.Is(err, geomodel.ErrNoCandidate) {
			l.log.Warn("place address skipped", "place", place.Name, "error", err)
		}
	}
	return found, nil
}

func placeOf(f overture.Feature) geomodel.Place {
	var coords geomodel.Point
	if p, ok := f.Geometry.(orb.Point); ok {
		coords = geomodel.Point{Lat: p.Lat(), Lon: p.Lon()}
	} else {
		coords = geomatch.Centroid(f.Geometry)
	}
	return geomodel.Place{
		Name:       f.Place.Names.DisplayName(),
		GersID:     f.ID,
		Category:   f.Place.Category,
		Coords:     coords,
		Address:    f.Place.Address,
		Confidence: f.Place.Confidence,
		Source:     "overture",
		Brand:      f.Place.Brand,
	}
}
