package metrics

import (
    "net/http"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. Each
// instance carries its own registry so tests can build throwaway copies.
type Metrics struct {
    registry *prometheus.Registry

    IngestOutcomes *prometheus.CounterVec
    RecordsStored  prometheus.Gauge
    HTTPRequests   *prometheus.CounterVec
    BatchRuns      prometheus.Counter
}

func New(namespace string) *Metrics {
    reg := prometheus.NewRegistry()
    factory := promauto.With(reg)
    return &Metrics{
        registry: reg,
        IngestOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "ingest_outcomes_total",
            Help:      "Ingestion attempts by source and outcome.",
        }, []string{"source", "outcome"}),
        RecordsStored: factory.NewGauge(prometheus.GaugeOpts{
            Namespace: namespace,
            Name:      "records_stored",
            Help:      "Number of transcripts currently persisted.",
        }),
        HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "http_requests_total",
            Help:      "HTTP requests by route and status class.",
        }, []string{"route", "status"}),
        BatchRuns: factory.NewCounter(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "batch_runs_total",
            Help:      "Completed batch ingestion runs.",
        }),
    }
}

func (m *Metrics) Handler() http.Handler {
    return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
