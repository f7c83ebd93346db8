package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	familyEvents    *prometheus.CounterVec
	inviteEvents    *prometheus.CounterVec
	ledgerWrites    *prometheus.CounterVec
	emailsSent      *prometheus.CounterVec
}

// New creates a registry with process/Go collectors and the domain metrics
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "familybudget",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "familybudget",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		familyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "familybudget",
			Name:      "family_events_total",
			Help:      "Family lifecycle and membership transitions.",
		}, []string{"event"}),
		inviteEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "familybudget",
			Name:      "invite_events_total",
			Help:      "Invite code creation and redemption outcomes.",
		}, []string{"outcome"}),
		ledgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "familybudget",
			Name:      "ledger_writes_total",
			Help:      "Category and transaction mutations.",
		}, []string{"entity", "op"}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "familybudget",
			Name:      "emails_total",
			Help:      "Outgoing e-mail attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.requests, m.requestDuration, m.familyEvents, m.inviteEvents, m.ledgerWrites, m.emailsSent)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FamilyEvent counts a family transition such as "created" or "member_removed"
func (m *Metrics) FamilyEvent(event string) {
	if m == nil {
		return
	}
	m.familyEvents.WithLabelValues(event).Inc()
}

// InviteEvent counts an invite outcome such as "created", "redeemed" or "conflict"
func (m *Metrics) InviteEvent(outcome string) {
	if m == nil {
		return
	}
	m.inviteEvents.WithLabelValues(outcome).Inc()
}

// LedgerWrite counts a category or transaction mutation
func (m *Metrics) LedgerWrite(entity, op string) {
	if m == nil {
		return
	}
	m.ledgerWrites.WithLabelValues(entity, op).Inc()
}

// EmailSent counts an e-mail attempt
func (m *Metrics) EmailSent(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.emailsSent.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument records request counts and latency keyed by the matched mux
// pattern so ids in paths do not explode label cardinality
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
