package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "convoy"

var (
	Registry = prometheus.NewRegistry()

	// ---- Protocol ----
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages dequeued and handled by the protocol engine.",
		},
		[]string{"agent", "type"},
	)

	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages handed to the transport.",
		},
		[]string{"agent", "type"},
	)

	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Datagrams or messages discarded before handling, by reason.",
		},
		[]string{"agent", "reason"},
	)

	InboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbox_depth",
			Help:      "Messages waiting in the priority inbox after the last tick.",
		},
		[]string{"agent"},
	)

	RosterPeers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_peers",
			Help:      "Roster rows by status, owner included.",
		},
		[]string{"agent", "status"},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Protocol engine ticks executed.",
		},
		[]string{"agent"},
	)

	TickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent inside one engine tick.",
			// 10us .. ~80ms
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
		},
		[]string{"agent"},
	)

	HandoffsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Waypoint hand-off decisions taken on arrival, by outcome.",
		},
		[]string{"agent", "outcome"},
	)

	StopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stops_total",
			Help:      "Emergency stops applied, by source.",
		},
		[]string{"agent", "source"},
	)

	RollCallRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollcall_rounds_total",
			Help:      "Roll-call rounds joined.",
		},
		[]string{"agent"},
	)

	// ---- Status surface ----
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Status-surface requests by route and status class.",
		},
		[]string{"route", "class"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving a status-surface request.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"route"},
	)

	HTTPInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight",
			Help:      "Status-surface requests being served.",
		},
		[]string{"route"},
	)

	// ---- Process ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Always 1; labels carry the agent binary version and commit.",
		},
		[]string{"version", "git_sha"},
	)

	bootTime = time.Now()
	uptime   = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started.",
		},
		func() float64 { return time.Since(bootTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		MessagesReceived, MessagesSent, MessagesDropped, InboxDepth, RosterPeers,
		TicksTotal, TickDuration, HandoffsTotal, StopsTotal, RollCallRounds,
		HTTPRequests, HTTPLatency, HTTPInFlight, buildInfo, uptime,
	)
}

// MetricsHandler serves the private registry in the text exposition format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// Agent records protocol metrics for one agent id. Several agents may share
// a process (see pkg/sim); each gets its own label set.
type Agent struct {
	id string
}

func ForAgent(id string) *Agent { return &Agent{id: id} }

func (a *Agent) Received(msgType string) { MessagesReceived.WithLabelValues(a.id, msgType).Inc() }

func (a *Agent) Sent(msgType string) { MessagesSent.WithLabelValues(a.id, msgType).Inc() }

func (a *Agent) Dropped(reason string, n int) {
	if n > 0 {
		MessagesDropped.WithLabelValues(a.id, reason).Add(float64(n))
	}
}

func (a *Agent) Handoff(outcome string) { HandoffsTotal.WithLabelValues(a.id, outcome).Inc() }

func (a *Agent) Stop(source string) { StopsTotal.WithLabelValues(a.id, source).Inc() }

func (a *Agent) RollCall() { RollCallRounds.WithLabelValues(a.id).Inc() }

// Tick records one finished tick along with the gauges sampled at its end.
// roster maps status tokens to row counts.
func (a *Agent) Tick(d time.Duration, inbox int, roster map[string]int) {
	TicksTotal.WithLabelValues(a.id).Inc()
	TickDuration.WithLabelValues(a.id).Observe(d.Seconds())
	InboxDepth.WithLabelValues(a.id).Set(float64(inbox))
	for status, n := range roster {
		RosterPeers.WithLabelValues(a.id, status).Set(float64(n))
	}
}

// recorder remembers the status code a handler wrote.
type recorder struct {
	http.ResponseWriter
	code int
}

func (r *recorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument counts, times and gauges every request to route.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec := &recorder{ResponseWriter: w, code: http.StatusOK}
		inFlight := HTTPInFlight.WithLabelValues(route)
		inFlight.Inc()
		began := time.Now()
		defer func() {
			inFlight.Dec()
			HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code/100)+"xx").Inc()
			HTTPLatency.WithLabelValues(route).Observe(time.Since(began).Seconds())
		}()
		next.ServeHTTP(rec, req)
	})
}
