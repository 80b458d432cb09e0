/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics declares the Prometheus collectors this module's control
// plane exposes, grouped by the pipeline stage they describe, and a Serve
// helper to expose them for scraping. Grounded on numaflow's pkg/metrics
// (promauto-registered global vectors labeled by instance identity) and
// pkg/metrics/metrics_server.go (a dedicated HTTP server mounting
// promhttp.Handler at /metrics).
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	LabelSourceID  = "sourceid"
	LabelInstance  = "instance"
	LabelStrategy  = "strategy"
	LabelAlgorithm = "algorithm"
	LabelReason    = "reason"
)

var (
	ReceivedMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "worker",
		Name:      "received_total",
		Help:      "Total number of messages received from the input channel",
	}, []string{LabelInstance, LabelStrategy})

	SentMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "worker",
		Name:      "sent_total",
		Help:      "Total number of messages sent to the output channel",
	}, []string{LabelInstance, LabelStrategy})

	DroppedMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "worker",
		Name:      "dropped_total",
		Help:      "Total number of messages dropped after a send timeout",
	}, []string{LabelInstance, LabelStrategy, LabelReason})

	AlgorithmFaultCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "algo",
		Name:      "fault_total",
		Help:      "Total number of escalated algorithm faults (panics or returned errors)",
	}, []string{LabelInstance, LabelAlgorithm})

	ProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "worker",
		Name:      "processing_time_microseconds",
		Help:      "Time to process one received message (100 microseconds to 10 minutes)",
		Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*10, 10),
	}, []string{LabelInstance, LabelStrategy})

	ActiveOutputWindows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "outwin",
		Name:      "active_windows",
		Help:      "Number of output windows currently buffered, not yet released",
	}, []string{LabelInstance})

	RegistryReassignmentCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "registry",
		Name:      "reassignment_total",
		Help:      "Total number of source-to-instance reassignments observed on membership change",
	}, []string{LabelSourceID})
)

// Serve starts an HTTP server exposing the default Prometheus registry at
// /metrics on addr, and shuts it down when ctx is canceled. It runs the
// listener in a background goroutine and returns immediately.
func Serve(ctx context.Context, addr string, log *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Infow("starting metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server exited unexpectedly", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	return srv
}
