package geomodel

import "fmt"

// Point is a WGS84 coordinate. Immutable once produced by a resolution step.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lon)
}

// Entity is anything that can be merged into the graph as a node.
// Key returns the field and value the store merges on.
type Entity interface {
	Label() string
	Key() (field string, value string)
	Attributes() map[string]any
}

// Location is a physical address, optionally geocoded.
type Location struct {
	Address string `json:"address"`
	GersID  string `json:"gers_id,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Coords  *Point `json:"coords,omitempty"`
}

func (l Location) Label() string              { return "Location" }
func (l Location) Key() (string, string)      { return "address", l.Address }
func (l Location) Attributes() map[string]any {
	attrs := map[string]any{
		"address": l.Address,
	}
	setIf(attrs, "gers_id", l.GersID)
	setIf(attrs, "city", l.City)
	setIf(attrs, "country", l.Country)
	setIf(attrs, "zip", l.Zip)
	if l.Coords != nil {
		attrs["latitude"] = l.Coords.Lat
		attrs["longitude"] = l.Coords.Lon
	}
	return attrs
}

// Place is a point of interest.
type Place struct {
	Name       string  `json:"name"`
	GersID     string  `json:"gers_id,omitempty"`
	Category   string  `json:"category"`
	Coords     Point   `json:"coords"`
	Address    string  `json:"address,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Source     string  `json:"source,omitempty"`
	Brand      string  `json:"brand,omitempty"`
}

func (p Place) Label() string         { return "Place" }
func (p Place) Key() (string, string) { return "name", p.Name }
func (p Place) Attributes() map[string]any {
	attrs := map[string]any{
		"name":      p.Name,
		"category":  p.Category,
		"latitude":  p.Coords.Lat,
		"longitude": p.Coords.Lon,
	}
	setIf(attrs, "gers_id", p.GersID)
	setIf(attrs, "address", p.Address)
	setIf(attrs, "source", p.Source)
	setIf(attrs, "brand", p.Brand)
	if p.Confidence > 0 {
		attrs["confidence"] = p.Confidence
	}
	return attrs
}

// Building is a building footprint, stored at its centroid.
type Building struct {
	GersID    string  `json:"gers_id"`
	Name      string  `json:"name,omitempty"`
	TypeClass string  `json:"type_class,omitempty"`
	Height    float64 `json:"height,omitempty"`
	Levels    int     `json:"levels,omitempty"`
	Coords    Point   `json:"coords"`
}

func (b Building) Label() string         { return "Building" }
func (b Building) Key() (string, string) { return "gers_id", b.GersID }
func (b Building) Attributes() map[string]any {
	attrs := map[string]any{
		"gers_id":   b.GersID,
		"latitude":  b.Coords.Lat,
		"longitude": b.Coords.Lon,
	}
	setIf(attrs, "name", b.Name)
	setIf(attrs, "class", b.TypeClass)
	if b.Height > 0 {
		attrs["height"] = b.Height
	}
	if b.Levels > 0 {
		attrs["levels"] = b.Levels
	}
	return attrs
}

// Division is an administrative boundary (locality, county, region, country).
type Division struct {
	GersID     string `json:"gers_id"`
	Name       string `json:"name"`
	Subtype    string `json:"subtype"`
	CountryISO string `json:"country_iso,omitempty"`
}

func (d Division) Label() string         { return "Division" }
func (d Division) Key() (string, string) { return "gers_id", d.GersID }
func (d Division) Attributes() map[string]any {
	attrs := map[string]any{
		"gers_id": d.GersID,
		"name":    d.Name,
		"subtype": d.Subtype,
	}
	setIf(attrs, "country_iso", d.CountryISO)
	return attrs
}

// RoadSegment is a road center-line, associated with the point it was
// resolved for rather than its own geometry.
type RoadSegment struct {
	GersID    string `json:"gers_id"`
	Name      string `json:"name"`
	RoadClass string `json:"road_class"`
	Coords    Point  `json:"coords"`
}

func (r RoadSegment) Label() string         { return "RoadSegment" }
func (r RoadSegment) Key() (string, string) { return "gers_id", r.GersID }
func (r RoadSegment) Attributes() map[string]any {
	return map[string]any{
		"gers_id":    r.GersID,
		"name":       r.Name,
		"road_class": r.RoadClass,
		"latitude":   r.Coords.Lat,
		"longitude":  r.Coords.Lon,
	}
}

// Intersection is a road network vertex (an Overture connector).
type Intersection struct {
	ID     string `json:"intersection_id"`
	Coords Point  `json:"coords"`
	Source string `json:"source,omitempty"`
	Region string `json:"region,omitempty"`
}

func (i Intersection) Label() string         { return "Intersection" }
func (i Intersection) Key() (string, string) { return "intersection_id", i.ID }
func (i Intersection) Attributes() map[string]any {
	attrs := map[string]any{
		"intersection_id": i.ID,
		"latitude":        i.Coords.Lat,
		"longitude":       i.Coords.Lon,
	}
	setIf(attrs, "source", i.Source)
	setIf(attrs, "region", i.Region)
	return attrs
}

// RouteResult is the outcome of a shortest-path query. A missing path is a
// legitimate negative result, not an error: Found is false and the route is
// empty.
type RouteResult struct {
	Route             []Point `json:"route"`
	DistanceM         float64 `json:"distance_m"`
	IntersectionCount int     `json:"intersection_count"`
	Found             bool    `json:"found"`
	Message           string  `json:"message,omitempty"`
}

// NetworkStatus reports the state of the committed road network for a region.
type NetworkStatus struct {
	IntersectionCount int  `json:"intersection_count"`
	SegmentCount      int  `json:"segment_count"`
	LinkedPointCount  int  `json:"linked_point_count"`
	HasNetwork        bool `json:"has_network"`
}

func setIf(attrs map[string]any, key, value string) {
	if value != "" {
		attrs[key] = value
	}
}
