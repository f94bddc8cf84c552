// Package geomatch holds the pure geometry predicates the resolvers share:
// point-in-polygon containment and nearest-feature-within-threshold. All
// distances are planar approximations in degrees, which is accurate enough
// at the sub-kilometer scales the thresholds operate on.
package geomatch

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/overture"
)

// Containing returns the first candidate whose geometry contains the point,
// in input order. Ties between overlapping candidates resolve to whichever
// the source listed first. Non-areal and malformed geometries are skipped.
func Containing(p geomodel.Point, candidates []overture.Feature) (overture.Feature, bool) {
	point := orb.Point{p.Lon, p.Lat}
	for _, c := range candidates {
		if contains(c.Geometry, point) {
			return c, true
		}
	}
	return overture.Feature{}, false
}

// Nearest scans every candidate and returns the one at minimum
// point-to-geometry distance, provided that distance is strictly below
// maxDistance (degrees). Candidates at exactly maxDistance do not qualify.
func Nearest(p geomodel.Point, candidates []overture.Feature, maxDistance float64) (overture.Feature, float64, bool) {
	point := orb.Point{p.Lon, p.Lat}

	var best overture.Feature
	bestDist := math.Inf(1)
	for _, c := range candidates {
		if c.Geometry == nil {
			continue
		}
		dist := planar.DistanceFrom(c.Geometry, point)
		if dist < bestDist {
			best = c
			bestDist = dist
		}
	}

	if bestDist < maxDistance {
		return best, bestDist, true
	}
	return overture.Feature{}, 0, false
}

// Centroid is the areal centroid for polygons, the midpoint-weighted
// centroid for lines, and the point itself for points.
func Centroid(g orb.Geometry) geomodel.Point {
	c, _ := planar.CentroidArea(g)
	return geomodel.Point{Lat: c.Lat(), Lon: c.Lon()}
}

// Contains reports whether a single feature's geometry contains the point.
func Contains(p geomodel.Point, f overture.Feature) bool {
	return contains(f.Geometry, orb.Point{p.Lon, p.Lat})
}

func contains(g orb.Geometry, point orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, point)
	default:
		return false
	}
}
