package sector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sectorLabel = "sector"
)

var (
	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sector_tick_duration_seconds",
		Help:    "The time spent advancing a sector by one tick.",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
	}, []string{sectorLabel})

	nodeCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sector_node_count",
		Help: "The number of lattice nodes of a sector.",
	}, []string{sectorLabel})

	connectionCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sector_connection_count",
		Help: "The number of lattice connections of a sector.",
	}, []string{sectorLabel})

	bodyCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sector_body_count",
		Help: "The number of bodies riding a sector.",
	}, []string{sectorLabel})

	nodeDeaths = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sector_node_deaths_total",
		Help: "The total number of nodes killed by the field.",
	}, []string{sectorLabel})

	rebases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sector_rebases_total",
		Help: "The total number of body rebases.",
	}, []string{sectorLabel})

	collisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sector_collisions_total",
		Help: "The total number of body collisions.",
	}, []string{sectorLabel})

	droppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sector_dropped_events_total",
		Help: "The total number of sector events dropped because nobody consumed them fast enough.",
	}, []string{sectorLabel})

	sectorCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sector_count",
		Help: "The number of running sectors.",
	})

	sectorCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sector_count_total",
		Help: "The total number of started sectors.",
	})
)

func instrumentTick(sector string, d time.Duration, stats Stats) {
	labels := prometheus.Labels{sectorLabel: sector}

	tickDuration.With(labels).Observe(d.Seconds())
	nodeCount.With(labels).Set(float64(stats.Nodes))
	connectionCount.With(labels).Set(float64(stats.Connections))
	bodyCount.With(labels).Set(float64(stats.Bodies))
	nodeDeaths.With(labels).Add(float64(stats.Died))
	rebases.With(labels).Add(float64(stats.Rebased))
	collisions.With(labels).Add(float64(stats.Collisions))
}

func instrumentDroppedEvent(sector string) {
	droppedEvents.
		With(prometheus.Labels{sectorLabel: sector}).
		Inc()
}

func instrumentAddSector() {
	sectorCount.Inc()
	sectorCountTotal.Inc()
}

func instrumentRemoveSector(sector string) {
	sectorCount.Dec()

	labels := prometheus.Labels{sectorLabel: sector}
	tickDuration.Delete(labels)
	nodeCount.Delete(labels)
	connectionCount.Delete(labels)
	bodyCount.Delete(labels)
}
