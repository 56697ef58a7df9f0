// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package metrics defines the Prometheus collectors for searches and writes.
package metrics

import (
	"time"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/ingestion"
	"github.com/poiesic/sift/search"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sift"

// Search result classes used as the "result" label.
const (
	resultHit   = "hit"
	resultEmpty = "zero_result"
	resultError = "error"
)

// modeInvalid labels any mode the searcher does not know.
const modeInvalid = "invalid"

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  *prometheus.HistogramVec
	SearchCandidates    *prometheus.HistogramVec
	FilterMatches       prometheus.Histogram
	WritesTotal         *prometheus.CounterVec
	WriteDocumentsTotal *prometheus.CounterVec
	WriteLatency        *prometheus.HistogramVec
	ReindexedDocsTotal  prometheus.Counter
}

var _ ingestion.Recorder = (*Metrics)(nil)

// New creates all collectors and registers them with reg.
// A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Total search queries by mode and result type (hit, zero_result, error).",
			},
			[]string{"mode", "result"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Search latency in seconds by mode.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"mode"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of documents returned per search.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000, 5000},
			},
			[]string{"mode"},
		),
		SearchCandidates: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_candidates",
				Help:      "Number of scored candidates before truncation.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"mode"},
		),
		FilterMatches: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "filter_matches",
				Help:      "Number of documents matching a filter tuple.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		WritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "writes_total",
				Help:      "Total write transactions by operation and status.",
			},
			[]string{"op", "status"},
		),
		WriteDocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_documents_total",
				Help:      "Total documents committed by operation.",
			},
			[]string{"op"},
		),
		WriteLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "write_duration_seconds",
				Help:      "Write transaction latency in seconds by operation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		ReindexedDocsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reindexed_documents_total",
				Help:      "Total documents whose indexes were rebuilt.",
			},
		),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SearchCandidates,
		m.FilterMatches,
		m.WritesTotal,
		m.WriteDocumentsTotal,
		m.WriteLatency,
		m.ReindexedDocsTotal,
	}
}

// ObserveWrite records one write transaction.
func (m *Metrics) ObserveWrite(op string, docs int, elapsed time.Duration, err error) {
	m.WriteLatency.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		m.WritesTotal.WithLabelValues(op, "error").Inc()
		return
	}
	m.WritesTotal.WithLabelValues(op, "ok").Inc()
	m.WriteDocumentsTotal.WithLabelValues(op).Add(float64(docs))
}

// ObserveReindex records documents rebuilt by a reindex batch.
func (m *Metrics) ObserveReindex(docs int) {
	m.ReindexedDocsTotal.Add(float64(docs))
}

// SearchMonitor returns a monitor for a single search.
func (m *Metrics) SearchMonitor() search.SearchMonitor {
	return &searchMonitor{metrics: m}
}

// searchMonitor times one search and records its outcome.
type searchMonitor struct {
	metrics *Metrics
	mode    string
	start   time.Time
}

var _ search.SearchMonitor = (*searchMonitor)(nil)

func (sm *searchMonitor) Start(query search.Query) {
	switch query.Mode {
	case search.ModeScan, search.ModeIndexed:
		sm.mode = string(query.Mode)
	default:
		sm.mode = modeInvalid
	}
	sm.start = time.Now()
}

func (sm *searchMonitor) AfterFilterResolution(matched int) {
	sm.metrics.FilterMatches.Observe(float64(matched))
}

func (sm *searchMonitor) AfterScoring(candidates int) {
	sm.metrics.SearchCandidates.WithLabelValues(sm.mode).Observe(float64(candidates))
}

func (sm *searchMonitor) AfterHydration(_ int, _ int) {}

func (sm *searchMonitor) Finish(results []*core.SearchResult) {
	sm.metrics.SearchLatency.WithLabelValues(sm.mode).Observe(time.Since(sm.start).Seconds())
	sm.metrics.SearchResultsCount.WithLabelValues(sm.mode).Observe(float64(len(results)))

	result := resultHit
	if len(results) == 0 {
		result = resultEmpty
	}
	sm.metrics.SearchQueriesTotal.WithLabelValues(sm.mode, result).Inc()
}

func (sm *searchMonitor) Failed(_ error) {
	sm.metrics.SearchLatency.WithLabelValues(sm.mode).Observe(time.Since(sm.start).Seconds())
	sm.metrics.SearchQueriesTotal.WithLabelValues(sm.mode, resultError).Inc()
}
