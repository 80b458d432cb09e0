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

// Package slicemsg defines the wire-level data model shared by every stage of the
// pipeline: the opaque Element an algorithm works with, and SlicedMessage, the
// time-partitioned envelope that carries a batch of elements (or a heartbeat)
// between channel endpoints.
package slicemsg

import "fmt"

// Kind identifies what a SlicedMessage carries.
type Kind int16

const (
	// Payload carries zero or more elements for the range [StartTime, EndTime).
	Payload Kind = iota
	// Heartbeat carries no elements; it promises no further payload with
	// EndTime <= its own EndTime will follow.
	Heartbeat
	// Unknown is any kind the receiver does not recognize.
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Payload:
		return "Payload"
	case Heartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

// Element is an opaque algorithm-specific record. The core never inspects
// anything about it besides its ordering key.
type Element interface {
	// TimeStart is the element's ordering key, in implementation-defined ticks.
	TimeStart() int64
}

// SlicedMessage represents one subrange of a time-partitioned stream. Adjacent
// messages sharing the same (StartTime, EndTime) are fragments of one logical
// slice and must be concatenated by the receiver (see pkg/inputbuf).
type SlicedMessage[T Element] struct {
	Kind      Kind
	StartTime int64
	EndTime   int64
	// Origin is the source identifier stamped by the emitter (the sourceid
	// configuration option for outgoing messages).
	Origin uint32
	// Seqno is a monotonic counter assigned by the emitter.
	Seqno uint64
	// Objects is the ordered element sequence; empty when Kind != Payload.
	Objects []T
}

func (m SlicedMessage[T]) String() string {
	return fmt.Sprintf("%s[%d,%d) origin=%d seqno=%d n=%d", m.Kind, m.StartTime, m.EndTime, m.Origin, m.Seqno, len(m.Objects))
}

// SameRange reports whether m and other describe the same logical slice.
func (m SlicedMessage[T]) SameRange(other SlicedMessage[T]) bool {
	return m.StartTime == other.StartTime && m.EndTime == other.EndTime
}
