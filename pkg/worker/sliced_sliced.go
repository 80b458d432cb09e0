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
	"github.com/mroda88/trigger/pkg/outwin"
	"github.com/mroda88/trigger/pkg/slicemsg"
)

// strategyNameSlicedToSliced is the label value recorded against the
// metrics this strategy emits.
const strategyNameSlicedToSliced = "sliced_to_sliced"

// SlicedToSliced is the §4.4.b strategy: reassemble logical slices on the
// input side, drive the algorithm over each, watermark via heartbeats, and
// re-partition the algorithm's outputs into fixed-width windows on the
// output side.
type SlicedToSliced[T slicemsg.Element, O slicemsg.Element] struct {
	in  *inputbuf.Buffer[T]
	out *outwin.Buffer[O]

	driver *algo.Driver[T, O]
	sender Sender[slicemsg.SlicedMessage[O]]

	origin      uint32
	sendTimeout time.Duration
	log         *zap.SugaredLogger
	instance    string

	prevSliceStart int64
	sentCount      uint64
}

// NewSlicedToSliced returns a ready SlicedToSliced strategy.
func NewSlicedToSliced[T slicemsg.Element, O slicemsg.Element](
	driver *algo.Driver[T, O],
	sender Sender[slicemsg.SlicedMessage[O]],
	window, grace int64,
	origin uint32,
	sendTimeout time.Duration,
	log *zap.SugaredLogger,
) *SlicedToSliced[T, O] {
	return &SlicedToSliced[T, O]{
		in:          inputbuf.New[T](),
		out:         outwin.New[O](window, grace),
		driver:      driver,
		sender:      sender,
		origin:      origin,
		sendTimeout: sendTimeout,
		log:         log,
	}
}

// WithInstance labels every metric this strategy records with instance.
func (s *SlicedToSliced[T, O]) WithInstance(instance string) *SlicedToSliced[T, O] {
	s.instance = instance
	return s
}

func (s *SlicedToSliced[T, O]) Process(ctx context.Context, msg slicemsg.SlicedMessage[T]) error {
	switch msg.Kind {
	case slicemsg.Payload:
		s.processPayload(msg)
	case slicemsg.Heartbeat:
		s.processHeartbeat(msg)
	default:
		s.log.Errorw("received message of unknown kind, skipping", "kind", msg.Kind)
	}

	s.flushReady(ctx)
	return nil
}

func (s *SlicedToSliced[T, O]) processPayload(msg slicemsg.SlicedMessage[T]) {
	if s.prevSliceStart != 0 && msg.StartTime < s.prevSliceStart {
		s.log.Warnw("out-of-order slice start time", "start_time", msg.StartTime, "previous", s.prevSliceStart)
	}
	s.prevSliceStart = msg.StartTime

	if slice, ok := s.in.Accept(msg); ok {
		s.runDriverOverSlice(slice.Objects)
	}
}

func (s *SlicedToSliced[T, O]) processHeartbeat(msg slicemsg.SlicedMessage[T]) {
	if slice, ok := s.in.Flush(); ok {
		if slice.EndTime > msg.EndTime {
			s.log.Errorw("ordering fatal: flushed slice ends after heartbeat watermark, skipping batch",
				"slice_end", slice.EndTime, "heartbeat", msg.EndTime)
		} else {
			s.runDriverOverSlice(slice.Objects)
		}
	}

	s.out.BufferHeartbeat(msg.StartTime, msg.EndTime)

	var stragglers []O
	s.driver.Flush(msg.EndTime, &stragglers)
	s.out.BufferElements(stragglers)
}

func (s *SlicedToSliced[T, O]) runDriverOverSlice(elements []T) {
	var outputs []O
	for _, e := range elements {
		if fault := s.driver.Call(e, &outputs); fault != nil {
			// the current slice is abandoned; whatever this element's
			// siblings already produced is still forwarded.
			break
		}
	}
	s.out.BufferElements(outputs)
	metrics.ActiveOutputWindows.WithLabelValues(s.instance).Set(float64(s.out.Len()))
}

func (s *SlicedToSliced[T, O]) flushReady(ctx context.Context) {
	for s.out.Ready() {
		msg := s.out.Flush(s.sentCount, s.origin)
		s.sentCount++
		metrics.ActiveOutputWindows.WithLabelValues(s.instance).Set(float64(s.out.Len()))

		if msg.Kind == slicemsg.Payload && len(msg.Objects) == 0 {
			// empty windows are suppressed, but the sequence they left
			// behind (start/end contiguity) is preserved for the next one.
			continue
		}

		if err := s.sender.Send(ctx, msg, s.sendTimeout); err != nil {
			metrics.DroppedMessagesCount.WithLabelValues(s.instance, strategyNameSlicedToSliced, "send_timeout").Inc()
			s.log.Warnw("dropping windowed output after send timeout", "error", err)
			continue
		}
		metrics.SentMessagesCount.WithLabelValues(s.instance, strategyNameSlicedToSliced).Inc()
	}
}

// Drain force-flushes InputSliceBuffer through the driver, then repeatedly
// flushes OutputWindowBuffer until empty. When drop is true (the stop
// policy), everything Drain would otherwise send is discarded instead.
func (s *SlicedToSliced[T, O]) Drain(ctx context.Context, drop bool) {
	if slice, ok := s.in.Flush(); ok {
		s.runDriverOverSlice(slice.Objects)
	}

	for !s.out.Empty() {
		msg := s.out.Flush(s.sentCount, s.origin)
		s.sentCount++
		if drop {
			continue
		}
		if msg.Kind == slicemsg.Payload && len(msg.Objects) == 0 {
			continue
		}
		if err := s.sender.Send(ctx, msg, s.sendTimeout); err != nil {
			metrics.DroppedMessagesCount.WithLabelValues(s.instance, strategyNameSlicedToSliced, "send_timeout").Inc()
			s.log.Warnw("dropping windowed output after send timeout during drain", "error", err)
			continue
		}
		metrics.SentMessagesCount.WithLabelValues(s.instance, strategyNameSlicedToSliced).Inc()
	}
	metrics.ActiveOutputWindows.WithLabelValues(s.instance).Set(0)
}

// Reset discards all buffered input and output state, for a fresh run.
func (s *SlicedToSliced[T, O]) Reset() {
	s.in.Reset()
	s.out.Reset()
	s.prevSliceStart = 0
	s.sentCount = 0
}

var _ Strategy[slicemsg.SlicedMessage[elemInt]] = (*SlicedToSliced[elemInt, elemInt])(nil)
