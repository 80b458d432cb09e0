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

package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/algo"
	"github.com/mroda88/trigger/pkg/metrics"
	"github.com/mroda88/trigger/pkg/slicemsg"
)

// strategyNameAtomicToAtomic is the label value recorded against the
// metrics this strategy emits.
const strategyNameAtomicToAtomic = "atomic_to_atomic"

// Sender is the narrow write side of chanio.Channel the strategies depend on.
type Sender[M any] interface {
	Send(ctx context.Context, msg M, timeout time.Duration) error
}

// AtomicToAtomic is the simplest strategy (§4.4.a): invoke the algorithm per
// message, forward every produced output in order. A timed-out send drops
// that one output and continues (the decided open-question policy, applied
// uniformly across all three strategies).
type AtomicToAtomic[T slicemsg.Element, O slicemsg.Element] struct {
	driver      *algo.Driver[T, O]
	out         Sender[O]
	sendTimeout time.Duration
	log         *zap.SugaredLogger
	instance    string
}

// NewAtomicToAtomic returns a ready AtomicToAtomic strategy.
func NewAtomicToAtomic[T slicemsg.Element, O slicemsg.Element](driver *algo.Driver[T, O], out Sender[O], sendTimeout time.Duration, log *zap.SugaredLogger) *AtomicToAtomic[T, O] {
	return &AtomicToAtomic[T, O]{driver: driver, out: out, sendTimeout: sendTimeout, log: log}
}

// WithInstance labels every metric this strategy records with instance.
func (s *AtomicToAtomic[T, O]) WithInstance(instance string) *AtomicToAtomic[T, O] {
	s.instance = instance
	return s
}

func (s *AtomicToAtomic[T, O]) Process(ctx context.Context, msg T) error {
	var outputs []O
	if fault := s.driver.Call(msg, &outputs); fault != nil {
		// fatal algorithm error: the batch (this one message) is abandoned.
		return nil
	}
	for _, o := range outputs {
		if err := s.out.Send(ctx, o, s.sendTimeout); err != nil {
			metrics.DroppedMessagesCount.WithLabelValues(s.instance, strategyNameAtomicToAtomic, "send_timeout").Inc()
			s.log.Warnw("dropping output after send timeout", "error", err)
			continue
		}
		metrics.SentMessagesCount.WithLabelValues(s.instance, strategyNameAtomicToAtomic).Inc()
	}
	return nil
}

// Drain is a no-op: AtomicToAtomic carries no internal state across calls.
func (s *AtomicToAtomic[T, O]) Drain(_ context.Context, _ bool) {}

// Reset is a no-op for the same reason.
func (s *AtomicToAtomic[T, O]) Reset() {}

// elemInt is a throwaway concrete Element used below to assert that
// AtomicToAtomic satisfies Strategy for some instantiation (Go cannot assert
// a generic type's method set without concrete type parameters).
type elemInt int64

func (e elemInt) TimeStart() int64 { return int64(e) }

var _ Strategy[elemInt] = (*AtomicToAtomic[elemInt, elemInt])(nil)
