package relay

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	roomsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "otfcs",
			Subsystem: "relay",
			Name:      "rooms",
			Help:      "Sessions with at least one connected member.",
		},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otfcs",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Requests received from relay members, by type.",
		},
		[]string{"type"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(roomsGauge, framesTotal)
	})
}

func recordMembers(h *Hub) {
	RegisterMetrics()
	roomsGauge.Set(float64(h.RoomCount()))
}

func recordFrame(t string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(t).Inc()
}
