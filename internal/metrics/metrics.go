package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ResultOK = "ok"

//nolint:gochecknoglobals
var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bids",
		Name:      "transitions_total",
		Help:      "Negotiation actions by outcome; result is ok or the error kind.",
	}, []string{"action", "result"})

	Materializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cart",
		Name:      "items_added_total",
		Help:      "Cart line items by source (bid or listing) and outcome.",
	}, []string{"source", "result"})

	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notifier",
		Name:      "events_total",
		Help:      "Consumed events by type and outcome (ok, duplicate, error).",
	}, []string{"event_type", "result"})
)

func ObserveTransition(action, result string) {
	Transitions.WithLabelValues(action, result).Inc()
}

func ObserveCartItem(source, result string) {
	Materializations.WithLabelValues(source, result).Inc()
}

func ObserveEvent(eventType, result string) {
	EventsHandled.WithLabelValues(eventType, result).Inc()
}

func Handler() http.Handler { return promhttp.Handler() }
