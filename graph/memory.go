package graph

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mapfold/geograph/geomodel"
)

type nodeID struct {
	label    string
	keyField string
	keyValue string
}

// Edge identity always includes the endpoints, plus the key property when
// one is given. This matches a MERGE of the full (a)-[r {key}]->(b) pattern:
// the same segment_id between a different connector pair is a distinct edge.
type edgeID struct {
	relType  string
	from, to string
	key      string
}

type memNode struct {
	id    nodeID
	attrs map[string]any
}

type memEdge struct {
	id       edgeID
	from, to NodeRef
	key      *EdgeKey
	attrs    map[string]any
}

// MemoryStore is the in-process Store. It backs the local mode and the test
// suites; semantics match the Neo4j implementation.
type MemoryStore struct {
	nodes *xsync.MapOf[nodeID, *memNode]
	edges *xsync.MapOf[edgeID, *memEdge]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: xsync.NewMapOf[nodeID, *memNode](),
		edges: xsync.NewMapOf[edgeID, *memEdge](),
	}
}

func (m *MemoryStore) UpsertNode(ctx context.Context, label, keyField, keyValue string, attrs map[string]any) error {
	if keyValue == "" {
		return fmt.Errorf("upsert node %s: empty key", label)
	}
	id := nodeID{label: label, keyField: keyField, keyValue: keyValue}
	m.nodes.Compute(id, func(old *memNode, loaded bool) (*memNode, bool) {
		merged := map[string]any{keyField: keyValue}
		if loaded {
			for k, v := range old.attrs {
				merged[k] = v
			}
		}
		for k, v := range attrs {
			merged[k] = v
		}
		return &memNode{id: id, attrs: merged}, false
	})
	return nil
}

func (m *MemoryStore) UpsertEdge(ctx context.Context, relType string, from, to NodeRef, attrs map[string]any, key *EdgeKey) error {
	id := edgeID{relType: relType, from: refString(from), to: refString(to)}
	if key != nil {
		id.key = key.Field + "=" + key.Value
	}
	m.edges.Compute(id, func(old *memEdge, loaded bool) (*memEdge, bool) {
		merged := map[string]any{}
		if loaded {
			for k, v := range old.attrs {
				merged[k] = v
			}
		}
		for k, v := range attrs {
			merged[k] = v
		}
		return &memEdge{id: id, from: from, to: to, key: key, attrs: merged}, false
	})
	return nil
}

func (m *MemoryStore) LinkedIntersection(ctx context.Context, from NodeRef) (string, error) {
	target := ""
	m.edges.Range(func(_ edgeID, e *memEdge) bool {
		if e.id.relType == RelNearestIntersection && e.from == from {
			target = e.to.KeyValue
			return false
		}
		return true
	})
	if target == "" {
		return "", fmt.Errorf("%w: %s %q", geomodel.ErrUnlinkedEndpoint, from.Label, from.KeyValue)
	}
	return target, nil
}

func (m *MemoryStore) RoadGraph(ctx context.Context) (*RoadGraph, error) {
	rg := &RoadGraph{Nodes: map[string]RoadNode{}}
	m.nodes.Range(func(id nodeID, n *memNode) bool {
		if id.label != "Intersection" {
			return true
		}
		lat, _ := n.attrs["latitude"].(float64)
		lon, _ := n.attrs["longitude"].(float64)
		rg.Nodes[id.keyValue] = RoadNode{ID: id.keyValue, Coords: geomodel.Point{Lat: lat, Lon: lon}}
		return true
	})
	m.edges.Range(func(_ edgeID, e *memEdge) bool {
		if e.id.relType != RelRoadSegment || e.key == nil {
			return true
		}
		name, _ := e.attrs["name"].(string)
		class, _ := e.attrs["road_class"].(string)
		length, _ := e.attrs["length"].(float64)
		rg.Edges = append(rg.Edges, RoadEdge{
			SegmentID: e.key.Value,
			From:      e.from.KeyValue,
			To:        e.to.KeyValue,
			Name:      name,
			RoadClass: class,
			Length:    length,
		})
		return true
	})
	return rg, nil
}

func (m *MemoryStore) NetworkStatus(ctx context.Context, region string) (geomodel.NetworkStatus, error) {
	status := geomodel.NetworkStatus{}
	m.nodes.Range(func(id nodeID, n *memNode) bool {
		if id.label != "Intersection" {
			return true
		}
		if nodeRegion, ok := n.attrs["region"].(string); !ok || region == "" || nodeRegion == region {
			status.IntersectionCount++
		}
		return true
	})
	m.edges.Range(func(_ edgeID, e *memEdge) bool {
		switch e.id.relType {
		case RelRoadSegment:
			status.SegmentCount++
		case RelNearestIntersection:
			if edgeRegion, ok := e.attrs["region"].(string); !ok || region == "" || edgeRegion == region {
				status.LinkedPointCount++
			}
		}
		return true
	})
	status.HasNetwork = status.IntersectionCount > 0 && status.SegmentCount > 0
	return status, nil
}

func (m *MemoryStore) Close(ctx context.Context) error { return nil }

// NodeCount and EdgeCount exist for idempotence assertions in tests.
func (m *MemoryStore) NodeCount() int { return m.nodes.Size() }
func (m *MemoryStore) EdgeCount() int { return m.edges.Size() }

// EdgeInfo is the inspection view of a stored edge.
type EdgeInfo struct {
	Type     string
	From, To NodeRef
	Attrs    map[string]any
}

// EdgesOf lists all edges of a relationship type.
func (m *MemoryStore) EdgesOf(relType string) []EdgeInfo {
	var edges []EdgeInfo
	m.edges.Range(func(_ edgeID, e *memEdge) bool {
		if e.id.relType == relType {
			edges = append(edges, EdgeInfo{Type: e.id.relType, From: e.from, To: e.to, Attrs: e.attrs})
		}
		return true
	})
	return edges
}

// NodeAttributes returns a copy of a node's attribute map, or nil when the
// node does not exist.
func (m *MemoryStore) NodeAttributes(label, keyField, keyValue string) map[string]any {
	n, ok := m.nodes.Load(nodeID{label: label, keyField: keyField, keyValue: keyValue})
	if !ok {
		return nil
	}
	copied := make(map[string]any, len(n.attrs))
	for k, v := range n.attrs {
		copied[k] = v
	}
	return copied
}

func refString(r NodeRef) string {
	return r.Label + "/" + r.KeyField + "=" + r.KeyValue
}
