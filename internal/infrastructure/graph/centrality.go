package graph

import (
	"math"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/service"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// CentralityCalculator computes centrality measures with gonum over a bounded neighborhood
type CentralityCalculator struct{}

// NewCentralityCalculator creates a new gonum-backed centrality calculator
func NewCentralityCalculator() service.CentralityCalculator {
	return &CentralityCalculator{}
}

// Compute returns normalized betweenness, Wasserman-Faust closeness over incoming
// distances and the in+out degree of accountID. Parallel edges and self-loops collapse.
func (c *CentralityCalculator) Compute(neighborhood *entity.Neighborhood, accountID string) (service.CentralityScores, bool) {
	if neighborhood.IsEmpty() {
		return service.CentralityScores{}, false
	}

	ids := make(map[string]int64, len(neighborhood.Nodes))
	idOf := func(account string) int64 {
		if id, ok := ids[account]; ok {
			return id
		}
		id := int64(len(ids))
		ids[account] = id
		return id
	}
	for _, n := range neighborhood.Nodes {
		idOf(n)
	}

	forward := simple.NewDirectedGraph()
	reverse := simple.NewDirectedGraph()
	for _, id := range ids {
		forward.AddNode(simple.Node(id))
		reverse.AddNode(simple.Node(id))
	}

	for _, e := range neighborhood.Edges {
		from, to := idOf(e.Sender), idOf(e.Receiver)
		if forward.Node(from) == nil {
			forward.AddNode(simple.Node(from))
			reverse.AddNode(simple.Node(from))
		}
		if forward.Node(to) == nil {
			forward.AddNode(simple.Node(to))
			reverse.AddNode(simple.Node(to))
		}
		if from == to {
			continue
		}
		forward.SetEdge(forward.NewEdge(simple.Node(from), simple.Node(to)))
		reverse.SetEdge(reverse.NewEdge(simple.Node(to), simple.Node(from)))
	}

	target, ok := ids[accountID]
	if !ok {
		return service.CentralityScores{}, false
	}
	n := forward.Nodes().Len()

	scores := service.CentralityScores{
		Degree: forward.From(target).Len() + forward.To(target).Len(),
	}

	if n > 2 {
		betweenness := network.Betweenness(forward)
		scores.Betweenness = betweenness[target] / float64((n-1)*(n-2))
	}

	if n > 1 {
		// distances from every other node to the target, via the reversed graph
		shortest := path.DijkstraFrom(simple.Node(target), reverse)
		sum := 0.0
		reachable := 1
		for _, id := range ids {
			if id == target {
				continue
			}
			d := shortest.WeightTo(id)
			if math.IsInf(d, 1) {
				continue
			}
			sum += d
			reachable++
		}
		if sum > 0 {
			r := float64(reachable - 1)
			scores.Closeness = (r / sum) * (r / float64(n-1))
		}
	}

	return scores, true
}
