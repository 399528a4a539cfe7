package eventlog

import (
	"github.com/aukilabs/gridrider/sector"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sectorLabel = "sector"
	kindLabel   = "kind"
)

var sectorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sector_events_total",
	Help: "The number of events emitted by sectors.",
}, []string{
	sectorLabel,
	kindLabel,
})

func instrumentEvent(e sector.Event) {
	sectorEvents.With(prometheus.Labels{
		sectorLabel: e.Sector,
		kindLabel:   string(e.Kind),
	}).Inc()
}
