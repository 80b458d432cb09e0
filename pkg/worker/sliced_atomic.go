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
	"github.com/mroda88/trigger/pkg/inputbuf"
	"github.com/mroda88/trigger/pkg/metrics"
	"github.com/mroda88/trigger/pkg/slicemsg"
)

// strategyNameSlicedToAtomic is the label value recorded against the
// metrics this strategy emits.
const strategyNameSlicedToAtomic = "sliced_to_atomic"

// SlicedToAtomic is the §4.4.c strategy: reassemble logical slices on the
// input side exactly like SlicedToSliced, but forward every algorithm output
// immediately instead of re-windowing it. Heartbeats still force a slice
// flush and an algorithm Flush call for watermark advancement, but no
// heartbeat is itself forwarded downstream — the output side carries no
// windowing concept to watermark against.
type SlicedToAtomic[T slicemsg.Element, O slicemsg.Element] struct {
	in *inputbuf.Buffer[T]

	driver *algo.Driver[T, O]
	sender Sender[O]

	sendTimeout time.Duration
	log         *zap.SugaredLogger
	instance    string

	prevSliceStart int64
}

// NewSlicedToAtomic returns a ready SlicedToAtomic strategy.
func NewSlicedToAtomic[T slicemsg.Element, O slicemsg.Element](
	driver *algo.Driver[T, O],
	sender Sender[O],
	sendTimeout time.Duration,
	log *zap.SugaredLogger,
) *SlicedToAtomic[T, O] {
	return &SlicedToAtomic[T, O]{
		in:          inputbuf.New[T](),
		driver:      driver,
		sender:      sender,
		sendTimeout: sendTimeout,
		log:         log,
	}
}

// WithInstance labels every metric this strategy records with instance.
func (s *SlicedToAtomic[T, O]) WithInstance(instance string) *SlicedToAtomic[T, O] {
	s.instance = instance
	return s
}

func (s *SlicedToAtomic[T, O]) Process(ctx context.Context, msg slicemsg.SlicedMessage[T]) error {
	switch msg.Kind {
	case slicemsg.Payload:
		s.processPayload(ctx, msg)
	case slicemsg.Heartbeat:
		s.processHeartbeat(ctx, msg)
	default:
		s.log.Errorw("received message of unknown kind, skipping", "kind", msg.Kind)
	}
	return nil
}

func (s *SlicedToAtomic[T, O]) processPayload(ctx context.Context, msg slicemsg.SlicedMessage[T]) {
	if s.prevSliceStart != 0 && msg.StartTime < s.prevSliceStart {
		s.log.Warnw("out-of-order slice start time", "start_time", msg.StartTime, "previous", s.prevSliceStart)
	}
	s.prevSliceStart = msg.StartTime

	if slice, ok := s.in.Accept(msg); ok {
		s.runDriverOverSlice(ctx, slice.Objects)
	}
}

func (s *SlicedToAtomic[T, O]) processHeartbeat(ctx context.Context, msg slicemsg.SlicedMessage[T]) {
	if slice, ok := s.in.Flush(); ok {
		if slice.EndTime > msg.EndTime {
			s.log.Errorw("ordering fatal: flushed slice ends after heartbeat watermark, skipping batch",
				"slice_end", slice.EndTime, "heartbeat", msg.EndTime)
		} else {
			s.runDriverOverSlice(ctx, slice.Objects)
		}
	}

	var stragglers []O
	s.driver.Flush(msg.EndTime, &stragglers)
	s.sendAll(ctx, stragglers)
}

func (s *SlicedToAtomic[T, O]) runDriverOverSlice(ctx context.Context, elements []T) {
	var outputs []O
	for _, e := range elements {
		if fault := s.driver.Call(e, &outputs); fault != nil {
			// abandon the rest of the slice; earlier outputs are still sent.
			break
		}
	}
	s.sendAll(ctx, outputs)
}

func (s *SlicedToAtomic[T, O]) sendAll(ctx context.Context, outputs []O) {
	for _, o := range outputs {
		if err := s.sender.Send(ctx, o, s.sendTimeout); err != nil {
			metrics.DroppedMessagesCount.WithLabelValues(s.instance, strategyNameSlicedToAtomic, "send_timeout").Inc()
			s.log.Warnw("dropping output after send timeout", "error", err)
			continue
		}
		metrics.SentMessagesCount.WithLabelValues(s.instance, strategyNameSlicedToAtomic).Inc()
	}
}

// Drain force-flushes the held slice through the algorithm. When drop is
// true, the outputs that would produce are discarded instead of sent.
func (s *SlicedToAtomic[T, O]) Drain(ctx context.Context, drop bool) {
	slice, ok := s.in.Flush()
	if !ok {
		return
	}
	var outputs []O
	for _, e := range slice.Objects {
		if fault := s.driver.Call(e, &outputs); fault != nil {
			break
		}
	}
	if drop {
		return
	}
	s.sendAll(ctx, outputs)
}

// Reset discards the held input slice, for a fresh run.
func (s *SlicedToAtomic[T, O]) Reset() {
	s.in.Reset()
	s.prevSliceStart = 0
}

var _ Strategy[slicemsg.SlicedMessage[elemInt]] = (*SlicedToAtomic[elemInt, elemInt])(nil)
