// Package metrics exposes the API's prometheus instruments.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/listergram/backend/internal/domain/enums"
)

const metricsNamespace = "listergram"

// Collector is a prometheus.Collector for swipe, match, message and
// transport activity. Every method is safe on a nil receiver.
type Collector struct {
	swipes          *prometheus.CounterVec
	matchesCreated  *prometheus.CounterVec
	matchesEnded    *prometheus.CounterVec
	matchesExpired  prometheus.Counter
	messagesSent    *prometheus.CounterVec
	messagesRead    prometheus.Counter
	wsConnections   prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

func NewCollector() *Collector {
	return &Collector{
		swipes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "swipes_total",
				Help:      "Swipe decisions recorded.",
			}, []string{"mode", "decision"},
		),
		matchesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "matches_created_total",
				Help:      "Matches formed by reciprocal likes.",
			}, []string{"mode"},
		),
		matchesEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "matches_ended_total",
				Help:      "Matches ended by unmatch, pass or block.",
			}, []string{"status"},
		),
		matchesExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "matches_expired_total",
				Help:      "Lapsed matches retired by the expiry sweep.",
			},
		),
		messagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_sent_total",
				Help:      "Messages stored.",
			}, []string{"type"},
		),
		messagesRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_read_total",
				Help:      "Messages marked read.",
			},
		),
		wsConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "ws_connections",
				Help:      "Open websocket connections.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served.",
			}, []string{"method", "route", "status"},
		),
		httpRequestTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			}, []string{"method", "route"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.swipes.Describe(ch)
	c.matchesCreated.Describe(ch)
	c.matchesEnded.Describe(ch)
	c.matchesExpired.Describe(ch)
	c.messagesSent.Describe(ch)
	c.messagesRead.Describe(ch)
	c.wsConnections.Describe(ch)
	c.httpRequests.Describe(ch)
	c.httpRequestTime.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.swipes.Collect(ch)
	c.matchesCreated.Collect(ch)
	c.matchesEnded.Collect(ch)
	c.matchesExpired.Collect(ch)
	c.messagesSent.Collect(ch)
	c.messagesRead.Collect(ch)
	c.wsConnections.Collect(ch)
	c.httpRequests.Collect(ch)
	c.httpRequestTime.Collect(ch)
}

func (c *Collector) SwipeRecorded(mode enums.Mode, decision enums.SwipeDecision) {
	if c == nil {
		return
	}
	c.swipes.WithLabelValues(string(mode), string(decision)).Inc()
}

func (c *Collector) MatchCreated(mode enums.Mode) {
	if c == nil {
		return
	}
	c.matchesCreated.WithLabelValues(string(mode)).Inc()
}

func (c *Collector) MatchEnded(status enums.MatchStatus) {
	if c == nil {
		return
	}
	c.matchesEnded.WithLabelValues(string(status)).Inc()
}

func (c *Collector) MatchesExpired(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.matchesExpired.Add(float64(n))
}

func (c *Collector) MessageSent(kind enums.MessageType) {
	if c == nil {
		return
	}
	c.messagesSent.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) MessagesRead(count int64) {
	if c == nil || count <= 0 {
		return
	}
	c.messagesRead.Add(float64(count))
}

func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.wsConnections.Inc()
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.wsConnections.Dec()
}

// ObserveRequest records one HTTP request. route is the matched pattern,
// never the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveRequest(method, route string, status int, took time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestTime.WithLabelValues(method, route).Observe(took.Seconds())
}
