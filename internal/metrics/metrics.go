// Package metrics exposes the authentication counters on a private
// Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginSuccess      = "success"
	LoginInvalid      = "invalid_credentials"
	LoginLocked       = "locked"
	LoginDisabled     = "disabled"
	LoginStoreFailure = "store_unavailable"
)

// Revocation causes.
const (
	RevokeLogout    = "logout"
	RevokeLogoutAll = "logout_all"
	RevokeRotation  = "rotation"
)

// Metrics holds every counter the auth service records. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	LoginTotal      *prometheus.CounterVec
	TokenRejections *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec
	SessionsIssued  prometheus.Counter
	SessionsRevoked *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		LoginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		TokenRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_rejections_total",
			Help: "Rejected access or refresh tokens by reason",
		}, []string{"reason"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_store_errors_total",
			Help: "Session or user store failures by operation",
		}, []string{"op"}),
		SessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_issued_total",
			Help: "Sessions created by login, registration or rotation",
		}),
		SessionsRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_sessions_revoked_total",
			Help: "Sessions removed by cause",
		}, []string{"cause"}),
	}

	reg.MustRegister(
		m.LoginTotal,
		m.TokenRejections,
		m.StoreErrors,
		m.SessionsIssued,
		m.SessionsRevoked,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.LoginTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenRejected(reason string) {
	if m == nil {
		return
	}
	m.TokenRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.SessionsIssued.Inc()
}

func (m *Metrics) SessionsRevokedBy(cause string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsRevoked.WithLabelValues(cause).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
