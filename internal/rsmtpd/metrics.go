package rsmtpd

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts commands, response codes, and TLS usage across every
// session, for the Prometheus /metrics endpoint named in spec.md §6.
// It is purely observational: nothing in the engine branches on it.
var Metrics = struct {
	Commands      *prometheus.CounterVec
	Responses     *prometheus.CounterVec
	TLSSessions   prometheus.Counter
	PlainSessions prometheus.Counter
}{
	Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rsmtpd",
		Name:      "commands_total",
		Help:      "SMTP commands processed, by verb.",
	}, []string{"verb"}),
	Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rsmtpd",
		Name:      "responses_total",
		Help:      "SMTP responses emitted, by code.",
	}, []string{"code"}),
	TLSSessions: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rsmtpd",
		Name:      "tls_sessions_total",
		Help:      "Sessions that completed a STARTTLS handshake.",
	}),
	PlainSessions: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rsmtpd",
		Name:      "plaintext_sessions_total",
		Help:      "Sessions that never upgraded to TLS.",
	}),
}

func init() {
	prometheus.MustRegister(
		Metrics.Commands,
		Metrics.Responses,
		Metrics.TLSSessions,
		Metrics.PlainSessions,
	)
}

func recordCommand(verb string) {
	Metrics.Commands.WithLabelValues(verb).Inc()
}

func recordResponse(code int) {
	Metrics.Responses.WithLabelValues(strconv.Itoa(code)).Inc()
}
