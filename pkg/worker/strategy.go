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

// Package worker implements the three PipelineWorker strategies that sit
// between an input and an output chanio.Channel: atomic-to-atomic, a plain
// per-message pass-through; sliced-to-sliced, which reassembles time slices,
// drives the algorithm, and re-windows the output; and sliced-to-atomic,
// which reassembles slices but forwards each output immediately. See
// pkg/forward/forward.go and pkg/reduce/data_forward.go in the numaflow
// source tree for the read-process-forward loop shapes these are grounded
// on.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/metrics"
)

// Strategy is the capability a Loop drives, parameterized over the message
// type it receives from the input channel.
type Strategy[M any] interface {
	// Process handles one input message.
	Process(ctx context.Context, msg M) error
	// Drain flushes any residual internal state, e.g. a partially held input
	// slice or buffered output windows. When drop is true, anything Drain
	// would otherwise forward downstream is discarded instead (the §4.4
	// stop policy).
	Drain(ctx context.Context, drop bool)
	// Reset clears all internal state, for a fresh run after stop/start.
	Reset()
}

// Receiver is the narrow read side of chanio.Channel that the Loop depends
// on: a bounded-wait receive that distinguishes "timed out" from "failed".
type Receiver[M any] interface {
	Receive(ctx context.Context, timeout time.Duration) (M, error)
}

// DefaultReceiveTimeout is the suspension bound on Receive, matching the
// concurrency model's default cancellation latency.
const DefaultReceiveTimeout = 100 * time.Millisecond

// Loop is the shared worker skeleton described in §4.4: repeatedly receive
// with a bounded timeout and hand the message to the strategy; when told to
// stop, drain whatever is already buffered in the channel before exiting,
// discarding any output the drain would otherwise produce.
type Loop[M any] struct {
	strategy       Strategy[M]
	receiver       Receiver[M]
	receiveTimeout time.Duration
	log            *zap.SugaredLogger
	isTimeout      func(error) bool

	instance     string
	strategyName string
}

// NewLoop returns a Loop. isTimeout must identify the receiver's timeout
// sentinel (chanio.ErrTimeout, via errors.Is) so the skeleton can tell an
// ordinary quiet period apart from a real receive failure.
func NewLoop[M any](strategy Strategy[M], receiver Receiver[M], isTimeout func(error) bool, log *zap.SugaredLogger) *Loop[M] {
	return &Loop[M]{
		strategy:       strategy,
		receiver:       receiver,
		receiveTimeout: DefaultReceiveTimeout,
		log:            log,
		isTimeout:      isTimeout,
	}
}

// WithReceiveTimeout overrides the default 100ms receive bound.
func (l *Loop[M]) WithReceiveTimeout(d time.Duration) *Loop[M] {
	l.receiveTimeout = d
	return l
}

// WithLabels sets the instance/strategy labels attached to every metric this
// Loop records. Left unset, metrics are recorded with empty label values.
func (l *Loop[M]) WithLabels(instance, strategyName string) *Loop[M] {
	l.instance = instance
	l.strategyName = strategyName
	return l
}

// Run executes the skeleton loop until ctx is done, then drains once
// (dropping produced output) and returns.
func (l *Loop[M]) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.drainRemaining(ctx)
			return
		default:
		}

		msg, err := l.receiver.Receive(ctx, l.receiveTimeout)
		if err != nil {
			if l.isTimeout(err) {
				continue
			}
			l.log.Warnw("receive failed", "error", err)
			continue
		}
		l.processAndRecord(ctx, msg, "")
	}
}

// processAndRecord hands msg to the strategy, recording the received-count
// and processing-time metrics around the call. logSuffix is appended to the
// warning logged on a processing error (used to distinguish drain-time
// failures from the main loop's).
func (l *Loop[M]) processAndRecord(ctx context.Context, msg M, logSuffix string) {
	metrics.ReceivedMessagesCount.WithLabelValues(l.instance, l.strategyName).Inc()
	start := time.Now()
	procErr := l.strategy.Process(ctx, msg)
	metrics.ProcessingTime.WithLabelValues(l.instance, l.strategyName).Observe(float64(time.Since(start).Microseconds()))
	if procErr != nil {
		l.log.Errorw("strategy failed to process message"+logSuffix, "error", procErr)
	}
}

// drainRemaining drains whatever is already buffered in the input channel
// before the final strategy.Drain(drop=true) call, matching the skeleton's
// "inner loop drains whatever is already buffered" rule: a zero-duration
// receive either returns a message immediately or is treated as empty.
func (l *Loop[M]) drainRemaining(ctx context.Context) {
	for {
		msg, err := l.receiver.Receive(ctx, 0)
		if err != nil {
			break
		}
		l.processAndRecord(ctx, msg, " during drain")
	}
	l.strategy.Drain(ctx, true)
}
