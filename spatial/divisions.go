package spatial

import (
	"context"
	"fmt"

	"github.com/mapfold/geograph/geomatch"
	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
)

// ResolveDivisions enumerates every administrative division containing the
// point, links the input to each with WITHIN_DIVISION, and then links the
// divisions themselves into a strict parent chain.
//
// When the catalog returns several containing divisions of the same kind
// (overlapping locality boundaries), the last one enumerated wins the slot
// in the hierarchy. Accepted simplification.
func (l *Linker) ResolveDivisions(ctx context.Context, from geomodel.Entity, pt geomodel.Point) ([]geomodel.Division, error) {
	if (pt == geomodel.Point{}) {
		return nil, geomodel.ErrMissingCoordinates
	}

	candidates, err := l.source.Query(ctx, overture.KindDivision, overture.BufferBound(pt, divisionBuffer), 50)
	if err != nil {
		return nil, fmt.Errorf("query divisions: %w", err)
	}

	var found []geomodel.Division
	byKind := map[string]geomodel.Division{}

	for _, candidate := range candidates {
		if !geomatch.Contains(pt, candidate) {
			continue
		}
		division := geomodel.Division{
			GersID:     candidate.ID,
			Name:       candidate.Division.Names.DisplayName(),
			Subtype:    candidate.Division.Subtype,
			CountryISO: candidate.Division.CountryISO,
		}
		found = append(found, division)
		if l.kindRank(division.Subtype) >= 0 {
			byKind[division.Subtype] = division
		}

		if err := graph.UpsertEntity(ctx, l.store, division); err != nil {
			return found, err
		}
		if err := graph.Link(ctx, l.store, graph.RelWithinDivision, from, division); err != nil {
			return found, err
		}
	}

	if err := l.linkHierarchy(ctx, byKind); err != nil {
		return found, err
	}
	return found, nil
}

// linkHierarchy chains each found division to the nearest strictly larger
// kind present in the batch: a locality links straight to its region when no
// county was found, and absent kinds never break the chain.
func (l *Linker) linkHierarchy(ctx context.Context, byKind map[string]geomodel.Division) error {
	for i, kind := range l.hierarchy[:len(l.hierarchy)-1] {
		child, ok := byKind[kind]
		if !ok {
			continue
		}
		for _, parentKind := range l.hierarchy[i+1:] {
			parent, ok := byKind[parentKind]
			if !ok {
				continue
			}
			if err := graph.Link(ctx, l.store, graph.RelWithinDivision, child, parent); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (l *Linker) kindRank(kind string) int {
	for i, k := range l.hierarchy {
		if k == kind {
			return i
		}
	}
	return -1
}
