// Package roadnet ingests road segments and connectors around a batch of
// points and commits them as an idempotent Intersection/ROAD_SEGMENT graph
// merge, then bridges every input point to its nearest committed
// intersection.
package roadnet

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
)

const (
	DefaultRadiusKm = 2.0
	MinRadiusKm     = 0.5
	MaxRadiusKm     = 10.0
)

// Anchor is an input point for a network load: the graph node it resolves
// from and its coordinate. Anchors without a coordinate are skipped.
type Anchor struct {
	Node   geomodel.Entity
	Coords *geomodel.Point
}

// LoadStats summarizes one committed batch.
type LoadStats struct {
	Intersections   int
	Segments        int
	DroppedSegments int
	LinkedPoints    int
}

// Builder loads the road network. Safe for concurrent use; all shared state
// during a batch lives in concurrent maps keyed by stable feature ids, so
// repeated or concurrent ingestion of the same data is a no-op.
type Builder struct {
	source      overture.Source
	store       graph.Store
	radiusKm    float64
	roadClasses map[string]struct{}
	region      string
	threads     int
	log         *slog.Logger
}

type Option func(*Builder)

// WithRadiusKm clamps to the 0.5–10 km bounds.
func WithRadiusKm(radius float64) Option {
	return func(b *Builder) {
		b.radiusKm = math.Min(math.Max(radius, MinRadiusKm), MaxRadiusKm)
	}
}

// WithRoadClasses restricts ingestion to the given classes. Empty means all.
func WithRoadClasses(classes []string) Option {
	return func(b *Builder) {
		if len(classes) == 0 {
			return
		}
		b.roadClasses = make(map[string]struct{}, len(classes))
		for _, c := range classes {
			b.roadClasses[c] = struct{}{}
		}
	}
}

// WithRegion stamps committed intersections and point links with a region
// id, so network status can be scoped later.
func WithRegion(region string) Option {
	return func(b *Builder) { b.region = region }
}

func WithThreads(n int) Option {
	return func(b *Builder) { b.threads = n }
}

func NewBuilder(source overture.Source, store graph.Store, opts ...Option) *Builder {
	b := &Builder{
		source:   source,
		store:    store,
		radiusKm: DefaultRadiusKm,
		threads:  runtime.GOMAXPROCS(0),
		log:      slog.With("component", "roadnet"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load runs the full batch: read everything, commit the merges, link the
// anchors. Reads complete before the first write so connector dedup happens
// once per batch.
func (b *Builder) Load(ctx context.Context, anchors []Anchor) (LoadStats, error) {
	connectors, segments := b.ingest(ctx, anchors)
	if err := ctx.Err(); err != nil {
		return LoadStats{}, err
	}

	stats, committed, err := b.commit(ctx, connectors, segments)
	if err != nil {
		return stats, err
	}

	linked, err := b.linkAnchors(ctx, anchors, committed)
	stats.LinkedPoints = linked
	return stats, err
}

// ingest queries the catalog around every anchor. Connectors are
// deduplicated by id across all per-point queries; a later fetch of an id
// already seen is a no-op. Per-point failures are logged and skipped.
func (b *Builder) ingest(ctx context.Context, anchors []Anchor) (map[string]overture.Feature, []overture.Feature) {
	connectorSet := xsync.NewMapOf[string, overture.Feature]()
	var mu sync.Mutex
	var segments []overture.Feature

	p := pool.New().WithMaxGoroutines(b.threads)
	for _, anchor := range anchors {
		if ctx.Err() != nil {
			break
		}
		anchor := anchor
		p.Go(func() {
			if anchor.Coords == nil {
				b.log.Debug("skipping anchor without coordinates", "label", anchor.Node.Label())
				return
			}
			bound := overture.RadiusBound(*anchor.Coords, b.radiusKm)

			conns, err := b.source.Query(ctx, overture.KindConnector, bound, 1000)
			if err != nil {
				b.log.Warn("connector query failed", "point", anchor.Coords, "error", err)
				return
			}
			for _, c := range conns {
				connectorSet.LoadOrStore(c.ID, c)
			}

			segs, err := b.source.Query(ctx, overture.KindSegment, bound, 1000)
			if err != nil {
				b.log.Warn("segment query failed", "point", anchor.Coords, "error", err)
				return
			}
			mu.Lock()
			for _, s := range segs {
				if b.classAllowed(s.Segment.Class) {
					segments = append(segments, s)
				}
			}
			mu.Unlock()
		})
	}
	p.Wait()

	connectors := make(map[string]overture.Feature, connectorSet.Size())
	connectorSet.Range(func(id string, c overture.Feature) bool {
		connectors[id] = c
		return true
	})
	return connectors, segments
}

// commit merges connectors as Intersection nodes and segments as keyed
// ROAD_SEGMENT edges. Re-committing the same batch produces identical node
// and edge state.
func (b *Builder) commit(ctx context.Context, connectors map[string]overture.Feature, segments []overture.Feature) (LoadStats, map[string]geomodel.Intersection, error) {
	stats := LoadStats{}
	committed := make(map[string]geomodel.Intersection, len(connectors))

	for id, c := range connectors {
		point, ok := c.Geometry.(orb.Point)
		if !ok {
			continue
		}
		intersection := geomodel.Intersection{
			ID:     id,
			Coords: geomodel.Point{Lat: point.Lat(), Lon: point.Lon()},
			Source: "overture",
			Region: b.region,
		}
		if err := graph.UpsertEntity(ctx, b.store, intersection); err != nil {
			return stats, nil, fmt.Errorf("commit intersection %s: %w", id, err)
		}
		committed[id] = intersection
		stats.Intersections++
	}

	for _, seg := range segments {
		if err := b.commitSegment(ctx, seg, committed); err != nil {
			stats.DroppedSegments++
			b.log.Debug("segment dropped", "segment", seg.ID, "error", err)
			continue
		}
		stats.Segments++
	}

	return stats, committed, nil
}

func (b *Builder) commitSegment(ctx context.Context, seg overture.Feature, committed map[string]geomodel.Intersection) error {
	ids := seg.Segment.ConnectorIDs
	if len(ids) < 2 {
		return fmt.Errorf("segment references %d connectors", len(ids))
	}
	start, ok := committed[ids[0]]
	if !ok {
		return fmt.Errorf("start connector %s not committed", ids[0])
	}
	end, ok := committed[ids[len(ids)-1]]
	if !ok {
		return fmt.Errorf("end connector %s not committed", ids[len(ids)-1])
	}

	length := segmentLength(seg.Geometry)
	if length <= 0 {
		return fmt.Errorf("segment has no measurable length")
	}

	name := seg.Segment.Names.Primary
	attrs := map[string]any{
		"name":       name,
		"road_class": seg.Segment.Class,
		"length":     length,
	}
	return b.store.UpsertEdge(ctx, graph.RelRoadSegment,
		graph.Ref(start), graph.Ref(end), attrs,
		&graph.EdgeKey{Field: "segment_id", Value: seg.ID})
}

// linkAnchors bridges every anchor to the closest committed intersection.
// No threshold: the nearest available always wins, it is the only way into
// the road graph for later route queries.
func (b *Builder) linkAnchors(ctx context.Context, anchors []Anchor, committed map[string]geomodel.Intersection) (int, error) {
	linked := 0
	for _, anchor := range anchors {
		if anchor.Coords == nil {
			continue
		}
		nearest, ok := nearestIntersection(*anchor.Coords, committed)
		if !ok {
			continue
		}
		attrs := map[string]any{}
		if b.region != "" {
			attrs["region"] = b.region
		}
		err := b.store.UpsertEdge(ctx, graph.RelNearestIntersection,
			graph.Ref(anchor.Node), graph.Ref(nearest), attrs, nil)
		if err != nil {
			return linked, fmt.Errorf("link anchor: %w", err)
		}
		linked++
	}
	return linked, nil
}

func nearestIntersection(pt geomodel.Point, committed map[string]geomodel.Intersection) (geomodel.Intersection, bool) {
	var best geomodel.Intersection
	bestDist := math.Inf(1)
	for _, i := range committed {
		d0 := pt.Lat - i.Coords.Lat
		d1 := pt.Lon - i.Coords.Lon
		if dist := d0*d0 + d1*d1; dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// segmentLength is the haversine length of the center-line in meters. Being
// a vertex-wise sum it can never undercut the straight-line distance between
// the endpoints, which the A* heuristic depends on.
func segmentLength(g orb.Geometry) float64 {
	line, ok := g.(orb.LineString)
	if !ok {
		return 0
	}
	return geo.Length(line)
}

func (b *Builder) classAllowed(class string) bool {
	if len(b.roadClasses) == 0 {
		return true
	}
	_, ok := b.roadClasses[class]
	return ok
}
