package spatial

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/mapfold/geograph/geomatch"
	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
)

// ResolveAddress matches the location to a catalog address within a strict
// ~20 m threshold and materializes the canonical, catalog-keyed form of the
// same place: the original node stays untouched and links to the canonical
// one with SAME_AS. The canonical point also gets its division hierarchy.
func (l *Linker) ResolveAddress(ctx context.Context, loc geomodel.Location) (geomodel.Location, error) {
	if loc.Coords == nil {
		return geomodel.Location{}, geomodel.ErrMissingCoordinates
	}
	pt := *loc.Coords

	candidates, err := l.source.Query(ctx, overture.KindAddress, overture.BufferBound(pt, addressBuffer), 20)
	if err != nil {
		return geomodel.Location{}, fmt.Errorf("query addresses: %w", err)
	}

	found, _, ok := geomatch.Nearest(pt, candidates, addressThreshold)
	if !ok {
		return geomodel.Location{}, geomodel.ErrNoCandidate
	}

	canonical := canonicalLocation(found, loc)

	if err := graph.UpsertEntity(ctx, l.store, canonical); err != nil {
		return geomodel.Location{}, err
	}
	if err := graph.Link(ctx, l.store, graph.RelSameAs, loc, canonical); err != nil {
		return geomodel.Location{}, err
	}

	// Bridge the canonical point to its administrative context. A failure
	// here does not undo the address match.
	if _, err := l.ResolveDivisions(ctx, canonical, *canonical.Coords); err != nil {
		l.log.Warn("division bridge skipped", "address", canonical.Address, "error", err)
	}
	return canonical, nil
}

// ResolvePlaceAddress is the place-side variant: the nearest catalog address
// within the strict threshold becomes the place's HAS_ADDRESS target.
func (l *Linker) ResolvePlaceAddress(ctx context.Context, place geomodel.Place) (geomodel.Location, error) {
	pt := place.Coords

	candidates, err := l.source.Query(ctx, overture.KindAddress, overture.BufferBound(pt, addressBuffer), 20)
	if err != nil {
		return geomodel.Location{}, fmt.Errorf("query addresses: %w", err)
	}

	found, _, ok := geomatch.Nearest(pt, candidates, addressThreshold)
	if !ok {
		return geomodel.Location{}, geomodel.ErrNoCandidate
	}

	address := canonicalLocation(found, geomodel.Location{Address: place.Address})

	if err := graph.UpsertEntity(ctx, l.store, place); err != nil {
		return geomodel.Location{}, err
	}
	if err := graph.UpsertEntity(ctx, l.store, address); err != nil {
		return geomodel.Location{}, err
	}
	if err := graph.Link(ctx, l.store, graph.RelHasAddress, place, address); err != nil {
		return geomodel.Location{}, err
	}
	return address, nil
}

// canonicalLocation builds the catalog-keyed location for a matched address
// feature, preferring the feature's precise geometry over the original
// coordinates.
func canonicalLocation(found overture.Feature, original geomodel.Location) geomodel.Location {
	address := original.Address
	if found.Address.Number != "" && found.Address.Street != "" {
		address = fmt.Sprintf("%s %s", found.Address.Number, found.Address.Street)
	}
	if address == "" {
		address = found.ID
	}

	var coords geomodel.Point
	if p, ok := found.Geometry.(orb.Point); ok {
		coords = geomodel.Point{Lat: p.Lat(), Lon: p.Lon()}
	} else {
		coords = geomatch.Centroid(found.Geometry)
	}

	return geomodel.Location{
		Address: address,
		GersID:  found.ID,
		City:    original.City,
		Zip:     found.Address.Postcode,
		Coords:  &coords,
	}
}
