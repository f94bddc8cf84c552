package spatial_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"github.com/thejerf/slogassert"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
	"github.com/mapfold/geograph/spatial"
)

// kindSource serves canned features per kind, with optional per-kind
// failures.
type kindSource struct {
	features map[overture.Kind][]overture.Feature
	errs     map[overture.Kind]error
}

func (s *kindSource) Query(ctx context.Context, kind overture.Kind, bbox orb.Bound, limit int) ([]overture.Feature, error) {
	if err := s.errs[kind]; err != nil {
		return nil, err
	}
	return s.features[kind], nil
}

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func division(id, subtype, name string, geom orb.Geometry) overture.Feature {
	return overture.Feature{
		ID:       id,
		Kind:     overture.KindDivision,
		Geometry: geom,
		Division: &overture.DivisionAttrs{
			Names:   overture.Names{Primary: name},
			Subtype: subtype,
		},
	}
}

func locationAt(address string, lat, lon float64) geomodel.Location {
	return geomodel.Location{Address: address, Coords: &geomodel.Point{Lat: lat, Lon: lon}}
}

func TestResolveBuildingPrefersContainment(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	source := &kindSource{features: map[overture.Kind][]overture.Feature{
		overture.KindBuilding: {
			{
				ID:       "b-near",
				Kind:     overture.KindBuilding,
				Geometry: square(0.0002, 0.0002, 0.0004, 0.0004),
				Building: &overture.BuildingAttrs{Class: "commercial"},
			},
			{
				ID:       "b-contains",
				Kind:     overture.KindBuilding,
				Geometry: square(-0.0001, -0.0001, 0.0001, 0.0001),
				Building: &overture.BuildingAttrs{Class: "residential", Height: 9, Levels: 3},
			},
		},
	}}

	linker := spatial.NewLinker(source, store)
	building, err := linker.ResolveBuilding(ctx, locationAt("1 Main St", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if building.GersID != "b-contains" {
		t.Errorf("containment must beat proximity, got %s", building.GersID)
	}
	if building.Name != "Building (residential)" {
		t.Errorf("unexpected name %q", building.Name)
	}
	if building.Coords != (geomodel.Point{Lat: 0, Lon: 0}) {
		t.Errorf("expected footprint centroid, got %v", building.Coords)
	}
	if n := len(store.EdgesOf(graph.RelLocatedIn)); n != 1 {
		t.Errorf("expected one LOCATED_IN edge, got %d", n)
	}
}

func TestResolveBuildingFallsBackToNearest(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	source := &kindSource{features: map[overture.Kind][]overture.Feature{
		overture.KindBuilding: {
			{
				ID:       "b-near",
				Kind:     overture.KindBuilding,
				Geometry: square(0.001, 0.001, 0.0015, 0.0015),
				Building: &overture.BuildingAttrs{},
			},
		},
	}}

	linker := spatial.NewLinker(source, store)
	building, err := linker.ResolveBuilding(ctx, locationAt("1 Main St", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if building.GersID != "b-near" {
		t.Errorf("expected the nearby footprint, got %s", building.GersID)
	}
	if building.Name != "Building" {
		t.Errorf("classless building keeps the plain name, got %q", building.Name)
	}
}

func TestResolveBuildingNoCandidate(t *testing.T) {
	store := graph.NewMemoryStore()
	source := &kindSource{features: map[overture.Kind][]overture.Feature{}}

	linker := spatial.NewLinker(source, store)
	_, err := linker.ResolveBuilding(context.Background(), locationAt("1 Main St", 0, 0))
	if !errors.Is(err, geomodel.ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate, got %v", err)
	}
	if store.EdgeCount() != 0 {
		t.Error("a failed resolution must not write edges")
	}
}

func TestResolveBuildingMissingCoordinates(t *testing.T) {
	linker := spatial.NewLinker(&kindSource{}, graph.NewMemoryStore())
	_, err := linker.ResolveBuilding(context.Background(), geomodel.Location{Address: "nowhere"})
	if !errors.Is(err, geomodel.ErrMissingCoordinates) {
		t.Errorf("expected ErrMissingCoordinates, got %v", err)
	}
}

func TestResolveStreetDefaultsName(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	source := &kindSource{features: map[overture.Kind][]overture.Feature{
		overture.KindSegment: {
			{
				ID:       "s-far",
				Kind:     overture.KindSegment,
				Geometry: orb.LineString{{0.005, 0.005}, {0.006, 0.006}},
				Segment:  &overture.SegmentAttrs{Names: overture.Names{Primary: "Far St"}, Class: "primary"},
			},
			{
				ID:       "s-near",
				Kind:     overture.KindSegment,
				Geometry: orb.LineString{{-0.0001, 0}, {0.0001, 0}},
				Segment:  &overture.SegmentAttrs{Class: "residential"},
			},
		},
	}}

	linker := spatial.NewLinker(source, store)
	street, err := linker.ResolveStreet(ctx, locationAt("1 Main St", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if street.GersID != "s-near" {
		t.Errorf("expected the closest segment, got %s", street.GersID)
	}
	if street.Name != "Unnamed Road" {
		t.Errorf("nameless segment gets the default, got %q", street.Name)
	}
	if n := len(store.EdgesOf(graph.RelLocatedOn)); n != 1 {
		t.Errorf("expected one LOCATED_ON edge, got %d", n)
	}
}

func TestResolveAddressCanonicalizes(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	source := &kindSource{features: map[overture.Kind][]overture.Feature{
		overture.KindAddress: {
			{
				ID:       "a1",
				Kind:     overture.KindAddress,
				Geometry: orb.Point{0.0001, 0},
				Address:  &overture.AddressAttrs{Number: "1", Street: "Main St", Postcode: "10100"},
			},
		},
	}}

	linker := spatial.NewLinker(source, store)
	canonical, err := linker.ResolveAddress(ctx, locationAt("1 main street, torino", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if canonical.Address != "1 Main St" {
		t.Errorf("expected the catalog-composed address, got %q", canonical.Address)
	}
	if canonical.GersID != "a1" || canonical.Zip != "10100" {
		t.Errorf("catalog fields lost: %+v", canonical)
	}
	if canonical.Coords == nil || *canonical.Coords != (geomodel.Point{Lat: 0, Lon: 0.0001}) {
		t.Errorf("expected the feature's precise point, got %v", canonical.Coords)
	}

	same := store.EdgesOf(graph.RelSameAs)
	if len(same) != 1 {
		t.Fatalf("expected one SAME_AS edge, got %d", len(same))
	}
	if same[0].From.KeyValue != "1 main street, torino" || same[0].To.KeyValue != "1 Main St" {
		t.Errorf("SAME_AS direction wrong: %+v", same[0])
	}
}

func TestResolveAddressThresholdIsStrict(t *testing.T) {
	store := graph.NewMemoryStore()
	source := &kindSource{features: map[overture.Kind][]overture.Feature{
		overture.KindAddress: {
			{
				ID:       "a-far",
				Kind:     overture.KindAddress,
				Geometry: orb.Point{0.0003, 0},
				Address:  &overture.AddressAttrs{Number: "9", Street: "Far St"},
			},
		},
	}}

	linker := spatial.NewLinker(source, store)
	_, err := linker.ResolveAddress(context.Background(), locationAt("somewhere", 0, 0))
	if !errors.Is(err, geomodel.ErrNoCandidate) {
		t.Errorf("an address past ~20 m must not match, got %v", err)
	}
}

func TestResolveDivisionsHierarchySkipsAbsentKinds(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	wide := square(-0.1, -0.1, 0.1, 0.1)
	source := &kindSource{features: map[overture.Kind][]overture.Feature{
		overture.KindDivision: {
			division("d-loc", "locality", "Torino", wide),
			division("d-reg", "region", "Piemonte", wide),
			division("d-out", "county", "Elsewhere", square(1, 1, 2, 2)),
		},
	}}

	loc := locationAt("1 Main St", 0, 0)
	linker := spatial.NewLinker(source, store)
	found, err := linker.ResolveDivisions(ctx, loc, *loc.Coords)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 containing divisions, got %d", len(found))
	}

	edges := store.EdgesOf(graph.RelWithinDivision)
	// Location -> locality, Location -> region, locality -> region.
	if len(edges) != 3 {
		t.Fatalf("expected 3 WITHIN_DIVISION edges, got %d", len(edges))
	}
	parentLinked := false
	for _, e := range edges {
		if e.From.Label == "Division" {
			if e.From.KeyValue != "d-loc" || e.To.KeyValue != "d-reg" {
				t.Errorf("unexpected hierarchy edge: %+v", e)
			}
			parentLinked = true
		}
	}
	if !parentLinked {
		t.Error("locality must link to region when no county contains the point")
	}
}

func TestResolveLocationIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	handler := slogassert.New(t, slog.LevelDebug, nil)
	source := &kindSource{
		features: map[overture.Kind][]overture.Feature{
			overture.KindSegment: {
				{
					ID:       "s1",
					Kind:     overture.KindSegment,
					Geometry: orb.LineString{{-0.0001, 0}, {0.0001, 0}},
					Segment:  &overture.SegmentAttrs{Names: overture.Names{Primary: "Main St"}, Class: "primary"},
				},
			},
		},
		errs: map[overture.Kind]error{
			overture.KindBuilding: errors.New("catalog down"),
		},
	}

	linker := spatial.NewLinker(source, store, spatial.WithLogger(slog.New(handler)))
	res := linker.ResolveLocation(ctx, locationAt("1 Main St", 0, 0))

	if res.Building != nil {
		t.Error("failed building resolution must yield nil")
	}
	if res.Street == nil || res.Street.Name != "Main St" {
		t.Errorf("street resolution must survive the building failure, got %+v", res.Street)
	}
	handler.AssertMessage("resolution skipped")
}

func TestResolveNearbyPlaces(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	source := &kindSource{features: map[overture.Kind][]overture.Feature{
		overture.KindPlace: {
			{
				ID:       "p1",
				Kind:     overture.KindPlace,
				Geometry: orb.Point{0.0001, 0.0001},
				Place: &overture.PlaceAttrs{
					Names:      overture.Names{Primary: "Caffè Torino"},
					Category:   "cafe",
					Confidence: 0.9,
				},
			},
		},
		overture.KindAddress: {
			{
				ID:       "a1",
				Kind:     overture.KindAddress,
				Geometry: orb.Point{0.0001, 0.0001},
				Address:  &overture.AddressAttrs{Number: "1", Street: "Via Roma"},
			},
		},
	}}

	linker := spatial.NewLinker(source, store)
	places, err := linker.ResolveNearbyPlaces(ctx, locationAt("1 Via Roma", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 1 || places[0].Name != "Caffè Torino" || places[0].Category != "cafe" {
		t.Fatalf("unexpected places: %+v", places)
	}

	if n := len(store.EdgesOf(graph.RelHasNearbyPlace)); n != 1 {
		t.Errorf("expected one HAS_NEARBY_PLACE edge, got %d", n)
	}
	// The place's own address match within the strict threshold.
	hasAddress := store.EdgesOf(graph.RelHasAddress)
	if len(hasAddress) != 1 {
		t.Fatalf("expected one HAS_ADDRESS edge, got %d", len(hasAddress))
	}
	if hasAddress[0].From.Label != "Place" || hasAddress[0].To.KeyValue != "1 Via Roma" {
		t.Errorf("HAS_ADDRESS wired wrong: %+v", hasAddress[0])
	}
}

func TestLinkBatchResolvesEveryPoint(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	source := &kindSource{features: map[overture.Kind][]overture.Feature{
		overture.KindSegment: {
			{
				ID:       "s1",
				Kind:     overture.KindSegment,
				Geometry: orb.LineString{{-0.0001, 0}, {0.0001, 0}},
				Segment:  &overture.SegmentAttrs{Names: overture.Names{Primary: "Main St"}, Class: "primary"},
			},
		},
	}}

	linker := spatial.NewLinker(source, store, spatial.WithThreads(2))
	locs := []geomodel.Location{
		locationAt("1 Main St", 0, 0),
		locationAt("2 Main St", 0.0001, 0),
		locationAt("3 Main St", -0.0001, 0),
	}
	if err := linker.LinkBatch(ctx, locs); err != nil {
		t.Fatal(err)
	}
	if n := len(store.EdgesOf(graph.RelLocatedOn)); n != 3 {
		t.Errorf("expected one LOCATED_ON edge per point, got %d", n)
	}
}
