// Package spatial resolves arbitrary points against the feature catalog and
// materializes the results in the graph: containing building, nearest
// street, canonical address and administrative division hierarchy.
package spatial

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
)

// Search parameters in planar degrees, fixed per relationship kind. The
// metric equivalents hold near the scales these operate on (≤ a few km).
const (
	buildingBuffer    = 0.0005 // ~50 m query box
	buildingThreshold = 0.002  // ~220 m nearest fallback
	addressBuffer     = 0.0005 // ~50 m query box
	addressThreshold  = 0.0002 // ~20 m strict match
	divisionBuffer    = 0.05   // ~5 km query box
	placeBuffer       = 0.002  // ~220 m query box
	streetRadiusKm    = 1.0
)

// DefaultDivisionHierarchy orders division kinds smallest to largest.
var DefaultDivisionHierarchy = []string{"locality", "county", "region", "country"}

// Linker orchestrates the per-point resolutions. The feature source and the
// store are injected; Linker itself holds no mutable state and is safe for
// concurrent use.
type Linker struct {
	source    overture.Source
	store     graph.Store
	hierarchy []string
	threads   int
	log       *slog.Logger
}

type LinkerOption func(*Linker)

func WithHierarchy(kinds []string) LinkerOption {
	return func(l *Linker) { l.hierarchy = kinds }
}

func WithThreads(n int) LinkerOption {
	return func(l *Linker) { l.threads = n }
}

func WithLogger(log *slog.Logger) LinkerOption {
	return func(l *Linker) { l.log = log }
}

func NewLinker(source overture.Source, store graph.Store, opts ...LinkerOption) *Linker {
	l := &Linker{
		source:    source,
		store:     store,
		hierarchy: DefaultDivisionHierarchy,
		threads:   runtime.GOMAXPROCS(0),
		log:       slog.With("component", "spatial"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolution reports what a single point resolved to. Nil fields mean the
// resolution found no candidate or failed; failures never propagate across
// resolutions.
type Resolution struct {
	Building  *geomodel.Building
	Street    *geomodel.RoadSegment
	Canonical *geomodel.Location
	Divisions []geomodel.Division
	Places    []geomodel.Place
}

// ResolveLocation runs the independent building, street, address, division
// and nearby-place resolutions for one location. Each failure is logged and
// skipped; the remaining resolutions still run.
func (l *Linker) ResolveLocation(ctx context.Context, loc geomodel.Location) Resolution {
	res := Resolution{}
	log := l.log.With("address", loc.Address)

	if building, err := l.ResolveBuilding(ctx, loc); err != nil {
		logSkip(log, "building", err)
	} else {
		res.Building = &building
	}

	if street, err := l.ResolveStreet(ctx, loc); err != nil {
		logSkip(log, "street", err)
	} else {
		res.Street = &street
	}

	if canonical, err := l.ResolveAddress(ctx, loc); err != nil {
		logSkip(log, "address", err)
	} else {
		res.Canonical = &canonical
	}

	if divisions, err := l.ResolveDivisions(ctx, loc, pointOf(loc)); err != nil {
		logSkip(log, "divisions", err)
	} else {
		res.Divisions = divisions
	}

	if places, err := l.ResolveNearbyPlaces(ctx, loc); err != nil {
		logSkip(log, "places", err)
	} else {
		res.Places = places
	}

	return res
}

// LinkBatch resolves locations in parallel. Points share no state besides
// the store, whose upserts are idempotent, so a cancelled batch simply stops
// scheduling and leaves already-committed merges valid.
func (l *Linker) LinkBatch(ctx context.Context, locs []geomodel.Location) error {
	p := pool.New().WithMaxGoroutines(l.threads)
	for _, loc := range locs {
		if ctx.Err() != nil {
			break
		}
		loc := loc
		p.Go(func() {
			l.ResolveLocation(ctx, loc)
		})
	}
	p.Wait()
	return ctx.Err()
}

func logSkip(log *slog.Logger, resolution string, err error) {
	switch {
	case errors.Is(err, geomodel.ErrNoCandidate):
		log.Debug("no candidate", "resolution", resolution)
	case errors.Is(err, geomodel.ErrMissingCoordinates):
		log.Debug("missing coordinates", "resolution", resolution)
	default:
		log.Warn("resolution skipped", "resolution", resolution, "error", err)
	}
}

func pointOf(loc geomodel.Location) geomodel.Point {
	if loc.Coords == nil {
		return geomodel.Point{}
	}
	return *loc.Coords
}
