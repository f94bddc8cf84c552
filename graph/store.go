// Package graph defines the property-graph store contract the resolvers
// commit through. Upserts are merge-by-key: repeating the same call any
// number of times, concurrently or not, leaves the store in the same state.
package graph

import (
	"context"

	"github.com/mapfold/geograph/geomodel"
)

// Relationship types materialized by the resolvers. ROAD_SEGMENT is the only
// type the route search traverses.
const (
	RelLocatedIn           = "LOCATED_IN"
	RelWithinDivision      = "WITHIN_DIVISION"
	RelNearestIntersection = "NEAREST_INTERSECTION"
	RelRoadSegment         = "ROAD_SEGMENT"
	RelSameAs              = "SAME_AS"
	RelHasAddress          = "HAS_ADDRESS"
	RelLocatedOn           = "LOCATED_ON"
	RelHasNearbyPlace      = "HAS_NEARBY_PLACE"
	RelGeolocatesNear      = "GEOLOCATES_NEAR"
)

// NodeRef identifies a node by label and merge key.
type NodeRef struct {
	Label    string
	KeyField string
	KeyValue string
}

// Ref builds the NodeRef for an entity.
func Ref(e geomodel.Entity) NodeRef {
	field, value := e.Key()
	return NodeRef{Label: e.Label(), KeyField: field, KeyValue: value}
}

// EdgeKey adds a dedicated property to the edge's merge identity alongside
// the (from, to, type) tuple. Road segments merge on segment_id this way, so
// re-committing a segment updates its attributes instead of duplicating it.
type EdgeKey struct {
	Field string
	Value string
}

// RoadNode and RoadEdge form the road subgraph snapshot the route search
// runs over.
type RoadNode struct {
	ID     string
	Coords geomodel.Point
}

type RoadEdge struct {
	SegmentID string
	From      string
	To        string
	Name      string
	RoadClass string
	Length    float64
}

type RoadGraph struct {
	Nodes map[string]RoadNode
	Edges []RoadEdge
}

// Store is the upsert-and-query contract. Implementations must make
// UpsertNode and UpsertEdge idempotent and safe under concurrent use; the
// storage engine behind them is out of scope here.
type Store interface {
	UpsertNode(ctx context.Context, label, keyField, keyValue string, attrs map[string]any) error
	UpsertEdge(ctx context.Context, relType string, from, to NodeRef, attrs map[string]any, key *EdgeKey) error

	// LinkedIntersection resolves the NEAREST_INTERSECTION target of a
	// point node. Returns geomodel.ErrUnlinkedEndpoint when the point was
	// never linked to the network.
	LinkedIntersection(ctx context.Context, from NodeRef) (string, error)

	// RoadGraph reads the subgraph induced by ROAD_SEGMENT edges.
	RoadGraph(ctx context.Context) (*RoadGraph, error)

	// NetworkStatus counts intersections, segments and linked points for a
	// region. Nodes committed without a region count toward every region.
	NetworkStatus(ctx context.Context, region string) (geomodel.NetworkStatus, error)

	Close(ctx context.Context) error
}

// UpsertEntity merges an entity as a node using its own label and key.
func UpsertEntity(ctx context.Context, s Store, e geomodel.Entity) error {
	field, value := e.Key()
	return s.UpsertNode(ctx, e.Label(), field, value, e.Attributes())
}

// Link merges an edge between two entities, deduplicated by
// (from, to, type).
func Link(ctx context.Context, s Store, relType string, from, to geomodel.Entity) error {
	return s.UpsertEdge(ctx, relType, Ref(from), Ref(to), nil, nil)
}
