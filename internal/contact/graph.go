// Package contact derives a weighted contact graph from the per-agent
// interaction ledgers an epidemic run accumulates.
package contact

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// Edge is one undirected contact edge. A is always the smaller agent ID.
type Edge struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	Weight float64 `json:"weight"`
}

// Edges flattens the ledgers into a deterministic, sorted undirected edge
// list. It fails if the ledgers are asymmetric, which would indicate broken
// contact bookkeeping in the model.
func Edges(ledgers map[int]map[int]int) ([]Edge, error) {
	edges := make([]Edge, 0, len(ledgers))
	for id, ledger := range ledgers {
		for peer, count := range ledger {
			if peer == id {
				return nil, fmt.Errorf("agent %d holds a self contact", id)
			}
			if ledgers[peer][id] != count {
				return nil, fmt.Errorf("asymmetric contact count between %d and %d: %d vs %d",
					id, peer, count, ledgers[peer][id])
			}
			if id < peer {
				edges = append(edges, Edge{A: id, B: peer, Weight: float64(count)})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges, nil
}

// BuildGraph builds a weighted undirected graph with one node per agent and
// one edge per interacting pair, weighted by cumulative contact count.
// Agents with an empty ledger still appear as isolated nodes.
func BuildGraph(ledgers map[int]map[int]int) (*simple.WeightedUndirectedGraph, error) {
	edges, err := Edges(ledgers)
	if err != nil {
		return nil, err
	}

	g := simple.NewWeightedUndirectedGraph(0, 0)
	for id := range ledgers {
		g.AddNode(simple.Node(id))
	}
	for _, e := range edges {
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(e.A),
			T: simple.Node(e.B),
			W: e.Weight,
		})
	}
	return g, nil
}

// Degree returns each agent's weighted degree, the sum of its contact
// counts over all peers.
func Degree(ledgers map[int]map[int]int) map[int]float64 {
	out := make(map[int]float64, len(ledgers))
	for id, ledger := range ledgers {
		total := 0.0
		for _, count := range ledger {
			total += float64(count)
		}
		out[id] = total
	}
	return out
}
