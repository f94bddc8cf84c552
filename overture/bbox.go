package overture

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/mapfold/geograph/geomodel"
)

const kmPerDegree = 111.0

// BufferBound is a square box of buffer degrees in every direction around
// the point. Used for the small containment/nearest searches where a planar
// degree buffer is accurate enough.
func BufferBound(p geomodel.Point, buffer float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{p.Lon - buffer, p.Lat - buffer},
		Max: orb.Point{p.Lon + buffer, p.Lat + buffer},
	}
}

// RadiusBound converts a metric radius to a bounding box, scaling the
// longitude span by cos(lat) so the box stays roughly square away from the
// equator.
func RadiusBound(p geomodel.Point, radiusKm float64) orb.Bound {
	latDelta := radiusKm / kmPerDegree
	lonDelta := radiusKm / (kmPerDegree * math.Cos(p.Lat*math.Pi/180))
	return orb.Bound{
		Min: orb.Point{p.Lon - lonDelta, p.Lat - latDelta},
		Max: orb.Point{p.Lon + lonDelta, p.Lat + latDelta},
	}
}
