package graph

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"

	"github.com/mapfold/geograph/geomodel"
)

// Neo4jStore implements Store over a Neo4j instance. Every operation runs in
// its own transaction; no session is held across geometry computation.
type Neo4jStore struct {
	driver neo4j.Driver
}

var _ Store = (*Neo4jStore)(nil)

func NewNeo4jStore(uri, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

// Cypher has no parameter syntax for labels, relationship types or property
// names, so they are interpolated and must be validated first.
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifiers(names ...string) error {
	for _, name := range names {
		if !identifierRe.MatchString(name) {
			return fmt.Errorf("invalid graph identifier %q", name)
		}
	}
	return nil
}

func (s *Neo4jStore) UpsertNode(ctx context.Context, label, keyField, keyValue string, attrs map[string]any) error {
	if err := checkIdentifiers(label, keyField); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", geomodel.ErrProviderUnavailable, err)
	}

	query := fmt.Sprintf(
		"MERGE (n:%s {%s: $key}) SET n += $attrs",
		label, keyField,
	)
	return s.write(query, map[string]any{"key": keyValue, "attrs": attrs})
}

func (s *Neo4jStore) UpsertEdge(ctx context.Context, relType string, from, to NodeRef, attrs map[string]any, key *EdgeKey) error {
	if err := checkIdentifiers(relType, from.Label, from.KeyField, to.Label, to.KeyField); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", geomodel.ErrProviderUnavailable, err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}

	params := map[string]any{
		"fromKey": from.KeyValue,
		"toKey":   to.KeyValue,
		"attrs":   attrs,
	}

	var query string
	if key != nil {
		if err := checkIdentifiers(key.Field); err != nil {
			return err
		}
		query = fmt.Sprintf(
			"MATCH (a:%s {%s: $fromKey}) MATCH (b:%s {%s: $toKey}) "+
				"MERGE (a)-[r:%s {%s: $edgeKey}]->(b) SET r += $attrs",
			from.Label, from.KeyField, to.Label, to.KeyField, relType, key.Field,
		)
		params["edgeKey"] = key.Value
	} else {
		query = fmt.Sprintf(
			"MATCH (a:%s {%s: $fromKey}) MATCH (b:%s {%s: $toKey}) "+
				"MERGE (a)-[r:%s]->(b) SET r += $attrs",
			from.Label, from.KeyField, to.Label, to.KeyField, relType,
		)
	}
	return s.write(query, params)
}

func (s *Neo4jStore) LinkedIntersection(ctx context.Context, from NodeRef) (string, error) {
	if err := checkIdentifiers(from.Label, from.KeyField); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", geomodel.ErrProviderUnavailable, err)
	}

	query := fmt.Sprintf(
		"MATCH (n:%s {%s: $key})-[:NEAREST_INTERSECTION]->(i:Intersection) "+
			"RETURN i.intersection_id LIMIT 1",
		from.Label, from.KeyField,
	)
	records, err := s.read(query, map[string]any{"key": from.KeyValue})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s %q", geomodel.ErrUnlinkedEndpoint, from.Label, from.KeyValue)
	}
	id, _ := records[0].Values[0].(string)
	if id == "" {
		return "", fmt.Errorf("%w: %s %q", geomodel.ErrUnlinkedEndpoint, from.Label, from.KeyValue)
	}
	return id, nil
}

func (s *Neo4jStore) RoadGraph(ctx context.Context) (*RoadGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", geomodel.ErrProviderUnavailable, err)
	}
	rg := &RoadGraph{Nodes: map[string]RoadNode{}}

	nodeRecords, err := s.read(
		"MATCH (i:Intersection) RETURN i.intersection_id, i.latitude, i.longitude", nil)
	if err != nil {
		return nil, err
	}
	for _, rec := range nodeRecords {
		id, _ := rec.Values[0].(string)
		lat, _ := rec.Values[1].(float64)
		lon, _ := rec.Values[2].(float64)
		if id == "" {
			continue
		}
		rg.Nodes[id] = RoadNode{ID: id, Coords: geomodel.Point{Lat: lat, Lon: lon}}
	}

	edgeRecords, err := s.read(
		"MATCH (a:Intersection)-[r:ROAD_SEGMENT]->(b:Intersection) "+
			"RETURN a.intersection_id, b.intersection_id, r.segment_id, r.name, r.road_class, r.length", nil)
	if err != nil {
		return nil, err
	}
	for _, rec := range edgeRecords {
		from, _ := rec.Values[0].(string)
		to, _ := rec.Values[1].(string)
		segID, _ := rec.Values[2].(string)
		name, _ := rec.Values[3].(string)
		class, _ := rec.Values[4].(string)
		length, _ := rec.Values[5].(float64)
		rg.Edges = append(rg.Edges, RoadEdge{
			SegmentID: segID, From: from, To: to,
			Name: name, RoadClass: class, Length: length,
		})
	}
	return rg, nil
}

func (s *Neo4jStore) NetworkStatus(ctx context.Context, region string) (geomodel.NetworkStatus, error) {
	if err := ctx.Err(); err != nil {
		return geomodel.NetworkStatus{}, fmt.Errorf("%w: %v", geomodel.ErrProviderUnavailable, err)
	}
	query := `
		OPTIONAL MATCH (i:Intersection)
		WHERE $region = '' OR i.region = $region OR i.region IS NULL
		WITH count(i) AS intersections
		OPTIONAL MATCH ()-[r:ROAD_SEGMENT]->()
		WITH intersections, count(r) AS segments
		OPTIONAL MATCH ()-[l:NEAREST_INTERSECTION]->(:Intersection)
		WHERE $region = '' OR l.region = $region OR l.region IS NULL
		RETURN intersections, segments, count(l) AS linked`
	records, err := s.read(query, map[string]any{"region": region})
	if err != nil {
		return geomodel.NetworkStatus{}, err
	}
	status := geomodel.NetworkStatus{}
	if len(records) > 0 {
		intersections, _ := records[0].Values[0].(int64)
		segments, _ := records[0].Values[1].(int64)
		linked, _ := records[0].Values[2].(int64)
		status.IntersectionCount = int(intersections)
		status.SegmentCount = int(segments)
		status.LinkedPointCount = int(linked)
	}
	status.HasNetwork = status.IntersectionCount > 0 && status.SegmentCount > 0
	return status, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close()
}

func (s *Neo4jStore) write(query string, params map[string]any) error {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (any, error) {
		_, err := tx.Run(query, params)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%w: neo4j write: %v", geomodel.ErrProviderUnavailable, err)
	}
	return nil
}

func (s *Neo4jStore) read(query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	records, err := session.ReadTransaction(func(tx neo4j.Transaction) (any, error) {
		result, err := tx.Run(query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: neo4j read: %v", geomodel.ErrProviderUnavailable, err)
	}
	collected, _ := records.([]*neo4j.Record)
	return collected, nil
}
