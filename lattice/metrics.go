package lattice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	latticeSubdivisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lattice_subdivisions_total",
		Help: "The total number of subdivided edges.",
	})

	latticeCollapsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lattice_collapses_total",
		Help: "The total number of collapsed edges.",
	})

	latticePrunedNodesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lattice_pruned_nodes_total",
		Help: "The total number of pruned nodes.",
	})
)

func instrumentSubdivisions(n int) {
	latticeSubdivisionsTotal.Add(float64(n))
}

func instrumentCollapses(n int) {
	latticeCollapsesTotal.Add(float64(n))
}

func instrumentPrunes(n int) {
	latticePrunedNodesTotal.Add(float64(n))
}
