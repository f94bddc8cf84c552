package spatial

import (
	"context"
	"fmt"

	"github.com/mapfold/geograph/geomatch"
	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
)

// ResolveBuilding finds the building containing the location, falling back
// to the nearest one within ~220 m. The building node is stored at its
// footprint centroid and linked with LOCATED_IN.
func (l *Linker) ResolveBuilding(ctx context.Context, loc geomodel.Location) (geomodel.Building, error) {
	if loc.Coords == nil {
		return geomodel.Building{}, geomodel.ErrMissingCoordinates
	}
	pt := *loc.Coords

	candidates, err := l.source.Query(ctx, overture.KindBuilding, overture.BufferBound(pt, buildingBuffer), 50)
	if err != nil {
		return geomodel.Building{}, fmt.Errorf("query buildings: %w", err)
	}

	found, ok := geomatch.Containing(pt, candidates)
	if !ok {
		found, _, ok = geomatch.Nearest(pt, candidates, buildingThreshold)
	}
	if !ok {
		return geomodel.Building{}, geomodel.ErrNoCandidate
	}

	name := "Building"
	if found.Building.Class != "" {
		name = fmt.Sprintf("Building (%s)", found.Building.Class)
	}
	building := geomodel.Building{
		GersID:    found.ID,
		Name:      name,
		TypeClass: found.Building.Class,
		Height:    found.Building.Height,
		Levels:    found.Building.Levels,
		Coords:    geomatch.Centroid(found.Geometry),
	}

	if err := graph.UpsertEntity(ctx, l.store, building); err != nil {
		return geomodel.Building{}, err
	}
	if err := graph.Link(ctx, l.store, graph.RelLocatedIn, loc, building); err != nil {
		return geomodel.Building{}, err
	}
	return building, nil
}
