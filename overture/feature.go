package overture

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mapfold/geograph/geomodel"
)

// Kind selects an Overture feature theme.
type Kind string

const (
	KindPlace     Kind = "place"
	KindBuilding  Kind = "building"
	KindAddress   Kind = "address"
	KindDivision  Kind = "division"
	KindSegment   Kind = "segment"
	KindConnector Kind = "connector"
)

// Feature is a single catalog feature with its kind-specific attributes
// decoded. Exactly one of the attribute structs is non-nil, matching Kind.
// Features are read-only to everything downstream of the source.
type Feature struct {
	ID       string
	Kind     Kind
	Geometry orb.Geometry

	Building  *BuildingAttrs
	Address   *AddressAttrs
	Division  *DivisionAttrs
	Segment   *SegmentAttrs
	Connector *ConnectorAttrs
	Place     *PlaceAttrs
}

// Names carries the Overture naming block. DisplayName resolves
// primary-then-common, defaulting to "Unknown".
type Names struct {
	Primary string
	Common  []string
}

func (n Names) DisplayName() string {
	if n.Primary != "" {
		return n.Primary
	}
	if len(n.Common) > 0 && n.Common[0] != "" {
		return n.Common[0]
	}
	return "Unknown"
}

type BuildingAttrs struct {
	Class  string
	Height float64
	Levels int
}

type AddressAttrs struct {
	Number   string
	Street   string
	Postcode string
}

type DivisionAttrs struct {
	Names      Names
	Subtype    string
	CountryISO string
}

type SegmentAttrs struct {
	Names        Names
	Class        string
	ConnectorIDs []string
}

type ConnectorAttrs struct{}

type PlaceAttrs struct {
	Names      Names
	Category   string
	Confidence float64
	Brand      string
	Address    string
}

// DecodeFeature validates a raw GeoJSON feature against the schema for the
// given kind. Schema violations are geometry-parse failures, not silent
// defaults.
func DecodeFeature(kind Kind, gf *geojson.Feature) (Feature, error) {
	if gf == nil || gf.Geometry == nil {
		return Feature{}, fmt.Errorf("%w: feature without geometry", geomodel.ErrGeometryParse)
	}

	id, ok := featureID(gf)
	if !ok {
		return Feature{}, fmt.Errorf("%w: feature without id", geomodel.ErrGeometryParse)
	}

	f := Feature{ID: id, Kind: kind, Geometry: gf.Geometry}
	props := map[string]any(gf.Properties)

	var err error
	switch kind {
	case KindBuilding:
		f.Building, err = decodeBuilding(props)
	case KindAddress:
		f.Address, err = decodeAddress(props)
	case KindDivision:
		f.Division, err = decodeDivision(props)
	case KindSegment:
		f.Segment, err = decodeSegment(props)
		if _, ok := gf.Geometry.(orb.LineString); err == nil && !ok {
			err = fmt.Errorf("%w: segment geometry is not a line", geomodel.ErrGeometryParse)
		}
	case KindConnector:
		f.Connector = &ConnectorAttrs{}
		if _, ok := gf.Geometry.(orb.Point); !ok {
			err = fmt.Errorf("%w: connector geometry is not a point", geomodel.ErrGeometryParse)
		}
	case KindPlace:
		f.Place, err = decodePlace(props)
	default:
		err = fmt.Errorf("%w: unknown feature kind %q", geomodel.ErrGeometryParse, kind)
	}
	if err != nil {
		return Feature{}, err
	}
	return f, nil
}

func featureID(gf *geojson.Feature) (string, bool) {
	switch id := gf.ID.(type) {
	case string:
		return id, id != ""
	case float64:
		return fmt.Sprintf("%.0f", id), true
	}
	if s, ok := gf.Properties["id"].(string); ok && s != "" {
		return s, true
	}
	return "", false
}

func decodeBuilding(props map[string]any) (*BuildingAttrs, error) {
	a := &BuildingAttrs{}
	a.Class, _ = props["class"].(string)
	if v, present := props["height"]; present {
		h, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: building height is not numeric", geomodel.ErrGeometryParse)
		}
		a.Height = h
	}
	if v, present := props["num_floors"]; present {
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: building num_floors is not numeric", geomodel.ErrGeometryParse)
		}
		a.Levels = int(n)
	}
	return a, nil
}

func decodeAddress(props map[string]any) (*AddressAttrs, error) {
	a := &AddressAttrs{}
	a.Number, _ = props["number"].(string)
	a.Street, _ = props["street"].(string)
	a.Postcode, _ = props["postcode"].(string)
	return a, nil
}

func decodeDivision(props map[string]any) (*DivisionAttrs, error) {
	subtype, ok := props["subtype"].(string)
	if !ok || subtype == "" {
		return nil, fmt.Errorf("%w: division without subtype", geomodel.ErrGeometryParse)
	}
	names, err := decodeNames(props["names"])
	if err != nil {
		return nil, err
	}
	a := &DivisionAttrs{Names: names, Subtype: subtype}
	a.CountryISO, _ = props["country_iso"].(string)
	return a, nil
}

func decodeSegment(props map[string]any) (*SegmentAttrs, error) {
	a := &SegmentAttrs{}
	var err error
	a.Names, err = decodeNames(props["names"])
	if err != nil {
		return nil, err
	}
	a.Class, _ = props["class"].(string)
	if a.Class == "" {
		a.Class = "unknown"
	}

	raw, present := props["connectors"]
	if !present {
		return a, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: segment connectors is not a list", geomodel.ErrGeometryParse)
	}
	for _, item := range list {
		switch c := item.(type) {
		case string:
			a.ConnectorIDs = append(a.ConnectorIDs, c)
		case map[string]any:
			id, ok := c["connector_id"].(string)
			if !ok || id == "" {
				return nil, fmt.Errorf("%w: segment connector entry without connector_id", geomodel.ErrGeometryParse)
			}
			a.ConnectorIDs = append(a.ConnectorIDs, id)
		default:
			return nil, fmt.Errorf("%w: segment connector entry has unsupported type %T", geomodel.ErrGeometryParse, item)
		}
	}
	return a, nil
}

func decodePlace(props map[string]any) (*PlaceAttrs, error) {
	names, err := decodeNames(props["names"])
	if err != nil {
		return nil, err
	}
	a := &PlaceAttrs{Names: names, Category: "unknown"}
	if cats, ok := props["categories"].(map[string]any); ok {
		if primary, ok := cats["primary"].(string); ok && primary != "" {
			a.Category = primary
		}
	}
	if v, present := props["confidence"]; present {
		c, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: place confidence is not numeric", geomodel.ErrGeometryParse)
		}
		a.Confidence = c
	}
	if brand, ok := props["brand"].(map[string]any); ok {
		if bn, err := decodeNames(brand["names"]); err == nil {
			a.Brand = bn.Primary
		}
	}
	a.Address, _ = props["address"].(string)
	return a, nil
}

func decodeNames(raw any) (Names, error) {
	if raw == nil {
		return Names{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Names{}, fmt.Errorf("%w: names block is not an object", geomodel.ErrGeometryParse)
	}
	n := Names{}
	n.Primary, _ = m["primary"].(string)
	if common, ok := m["common"].([]any); ok {
		for _, item := range common {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := entry["value"].(string); ok && v != "" {
				n.Common = append(n.Common, v)
			}
		}
	}
	return n, nil
}
