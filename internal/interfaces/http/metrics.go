package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contadores de autenticación. El tipo preciso del fallo solo se ve aquí y en logs.
type Metrics struct {
	registry      *prometheus.Registry
	signIns       *prometheus.CounterVec
	authFailures  *prometheus.CounterVec
	tokensIssued  prometheus.Counter
	tokenRejected *prometheus.CounterVec
	signUps       *prometheus.CounterVec
	revocations   prometheus.Counter
	recoveries    *prometheus.CounterVec
}

// NewMetrics registra los colectores en un registry propio.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		signIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_sign_in_total",
			Help: "Sign-in attempts by result",
		}, []string{"result"}),
		authFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Credential verification failures by kind",
		}, []string{"kind"}),
		tokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Session tokens issued (sign-in, sign-up and refresh)",
		}),
		tokenRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_rejections_total",
			Help: "Bearer tokens rejected by kind",
		}, []string{"kind"}),
		signUps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_sign_up_total",
			Help: "Sign-up attempts by result",
		}, []string{"result"}),
		revocations: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_revocations_total",
			Help: "Tokens revoked by sign-out",
		}),
		recoveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_recovery_total",
			Help: "Password recovery requests and resets by step and result",
		}, []string{"step", "result"}),
	}
}

// Handler expone /metrics en Fiber.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Registry devuelve el registry (tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) signInOK() {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues("ok").Inc()
	m.tokensIssued.Inc()
}

func (m *Metrics) signInFailed(kind string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues("failed").Inc()
	m.authFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) signUp(result string) {
	if m == nil {
		return
	}
	m.signUps.WithLabelValues(result).Inc()
	if result == "ok" {
		m.tokensIssued.Inc()
	}
}

func (m *Metrics) tokenRejection(kind string) {
	if m == nil {
		return
	}
	m.tokenRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) refreshed() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
}

func (m *Metrics) revoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

func (m *Metrics) recovery(step, result string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(step, result).Inc()
}
