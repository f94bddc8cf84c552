// Package routing owns the shortest-path search over the ROAD_SEGMENT
// subgraph. The store only provides the snapshot; the algorithms live here.
package routing

import (
	"container/heap"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/graph"
)

// Algorithm selects the search strategy. Both return minimum total weight;
// A* just expands fewer nodes when the graph is large.
type Algorithm string

const (
	AlgorithmDijkstra Algorithm = "dijkstra"
	AlgorithmAStar    Algorithm = "astar"
)

func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmDijkstra, "":
		return AlgorithmDijkstra, nil
	case AlgorithmAStar:
		return AlgorithmAStar, nil
	}
	return "", fmt.Errorf("unknown algorithm %q", s)
}

type halfEdge struct {
	to     string
	weight float64
}

// Search runs a weighted shortest-path search from source to target.
// Segments are traversable in both directions. An unreachable target is a
// negative result, not an error: Found is false with an empty route.
func Search(rg *graph.RoadGraph, source, target string, algorithm Algorithm) geomodel.RouteResult {
	if _, ok := rg.Nodes[source]; !ok {
		return notFound()
	}
	if _, ok := rg.Nodes[target]; !ok {
		return notFound()
	}

	adjacency := make(map[string][]halfEdge, len(rg.Nodes))
	for _, e := range rg.Edges {
		adjacency[e.From] = append(adjacency[e.From], halfEdge{to: e.To, weight: e.Length})
		adjacency[e.To] = append(adjacency[e.To], halfEdge{to: e.From, weight: e.Length})
	}

	h := func(string) float64 { return 0 }
	if algorithm == AlgorithmAStar {
		targetPoint := rg.Nodes[target].Coords
		// Straight-line distance never overestimates the remaining segment
		// weight, so the minimum-weight guarantee is preserved.
		h = func(id string) float64 {
			c := rg.Nodes[id].Coords
			return geo.Distance(orb.Point{c.Lon, c.Lat}, orb.Point{targetPoint.Lon, targetPoint.Lat})
		}
	}

	dist := map[string]float64{source: 0}
	prev := map[string]string{}
	settled := map[string]bool{}

	frontier := &frontierHeap{}
	heap.Init(frontier)
	frontier.push(source, h(source))

	for frontier.Len() > 0 {
		current := heap.Pop(frontier).(*frontierItem)
		if settled[current.node] {
			continue
		}
		settled[current.node] = true
		if current.node == target {
			break
		}

		for _, e := range adjacency[current.node] {
			tentative := dist[current.node] + e.weight
			if known, seen := dist[e.to]; !seen || tentative < known {
				dist[e.to] = tentative
				prev[e.to] = current.node
				frontier.push(e.to, tentative+h(e.to))
			}
		}
	}

	if !settled[target] {
		return notFound()
	}

	var path []geomodel.Point
	for node := target; ; node = prev[node] {
		path = append(path, rg.Nodes[node].Coords)
		if node == source {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return geomodel.RouteResult{
		Route:             path,
		DistanceM:         dist[target],
		IntersectionCount: len(path),
		Found:             true,
	}
}

func notFound() geomodel.RouteResult {
	return geomodel.RouteResult{Route: []geomodel.Point{}, Found: false}
}

// frontierItem orders by priority (tentative distance, plus heuristic for
// A*), with insertion order as the deterministic tie-break.
type frontierItem struct {
	node     string
	priority float64
	seq      int
}

type frontierHeap struct {
	items []*frontierItem
	seq   int
}

func (h *frontierHeap) push(node string, priority float64) {
	h.seq++
	heap.Push(h, &frontierItem{node: node, priority: priority, seq: h.seq})
}

func (h *frontierHeap) Len() int { return len(h.items) }

func (h *frontierHeap) Less(i, j int) bool {
	if h.items[i].priority != h.items[j].priority {
		return h.items[i].priority < h.items[j].priority
	}
	return h.items[i].seq < h.items[j].seq
}

func (h *frontierHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *frontierHeap) Push(x any) { h.items = append(h.items, x.(*frontierItem)) }

func (h *frontierHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
