// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gateway.
//
// Metrics are exposed on /metrics. All operations are thread-safe via
// Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	gatewaySubsystem = "gateway"
)

// GatewayMetrics holds all Prometheus metrics for the request pipeline.
//
// # Fields
//
//   - RequestsTotal: requests by route class and status code
//   - RateLimitDenialsTotal: 429s by route class
//   - AuthFailuresTotal: 401s
//   - ProviderRequestsTotal: upstream calls by provider and outcome
//   - ProviderLatencySeconds: upstream latency by provider
//   - ActiveStreams: currently open SSE streams
//   - ChainAppendsTotal: appends by chain name (audit, memory, tasks)
type GatewayMetrics struct {
	RequestsTotal          *prometheus.CounterVec
	RateLimitDenialsTotal  *prometheus.CounterVec
	AuthFailuresTotal      prometheus.Counter
	ProviderRequestsTotal  *prometheus.CounterVec
	ProviderLatencySeconds *prometheus.HistogramVec
	ActiveStreams          prometheus.Gauge
	ChainAppendsTotal      *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *GatewayMetrics

// InitMetrics registers all gateway metrics on the default registry.
// Call once at startup; a second call panics on duplicate registration.
func InitMetrics() *GatewayMetrics {
	DefaultMetrics = &GatewayMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "requests_total",
				Help:      "Total requests by route class and status code",
			},
			[]string{"class", "status"},
		),
		RateLimitDenialsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "rate_limit_denials_total",
				Help:      "Requests denied by the fixed-window rate limiter",
			},
			[]string{"class"},
		),
		AuthFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "auth_failures_total",
				Help:      "Requests rejected with an invalid or missing token",
			},
		),
		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "provider_requests_total",
				Help:      "Upstream provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		ProviderLatencySeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "provider_latency_seconds",
				Help:      "Upstream call latency by provider",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 120.0},
			},
			[]string{"provider"},
		),
		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_streams",
				Help:      "Currently open SSE streams",
			},
		),
		ChainAppendsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "chain_appends_total",
				Help:      "Hash chain appends by chain",
			},
			[]string{"chain"},
		),
	}
	return DefaultMetrics
}

// RecordRequest counts one terminal response.
func (m *GatewayMetrics) RecordRequest(class, status string) {
	m.RequestsTotal.WithLabelValues(class, status).Inc()
}

// RecordProviderCall counts one upstream call and observes its latency.
func (m *GatewayMetrics) RecordProviderCall(provider string, success bool, seconds float64) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatencySeconds.WithLabelValues(provider).Observe(seconds)
}
