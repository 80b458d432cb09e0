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

// Package inputbuf implements InputSliceBuffer: it accumulates fragments of a
// single logical slice (payload messages sharing the same time range) until
// the slice is complete, then releases its concatenated, time-ordered element
// vector. See pkg/slicemsg for the message envelope it consumes.
package inputbuf

import (
	"sync"

	"github.com/mroda88/trigger/pkg/slicemsg"
)

// Slice is a completed, concatenated logical slice handed back by Accept or
// Flush.
type Slice[T slicemsg.Element] struct {
	StartTime int64
	EndTime   int64
	Objects   []T
}

// Buffer accumulates payload fragments until a run of contiguous fragments is
// complete. It does not sort across fragments; it relies on the in-stream
// ordering invariant documented on slicemsg.SlicedMessage.
type Buffer[T slicemsg.Element] struct {
	mu      sync.Mutex
	held    bool
	start   int64
	end     int64
	objects []T
}

// New returns an empty InputSliceBuffer.
func New[T slicemsg.Element]() *Buffer[T] {
	return &Buffer[T]{}
}

// Accept feeds one payload fragment into the buffer. It returns ok=true and
// the completed slice when msg's time range differs from the one currently
// held (the held slice is now complete); otherwise it appends msg's objects
// to the held slice and returns ok=false.
func (b *Buffer[T]) Accept(msg slicemsg.SlicedMessage[T]) (out Slice[T], ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.held {
		b.openLocked(msg)
		return Slice[T]{}, false
	}

	if msg.StartTime == b.start && msg.EndTime == b.end {
		b.objects = append(b.objects, msg.Objects...)
		return Slice[T]{}, false
	}

	out = b.takeLocked()
	b.openLocked(msg)
	return out, true
}

// Flush forces the held slice out even if no new fragment triggered
// completion. ok is false when the buffer is empty.
func (b *Buffer[T]) Flush() (out Slice[T], ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.held {
		return Slice[T]{}, false
	}
	return b.takeLocked(), true
}

// Reset discards any held fragment without returning it.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held = false
	b.start = 0
	b.end = 0
	b.objects = nil
}

func (b *Buffer[T]) openLocked(msg slicemsg.SlicedMessage[T]) {
	b.held = true
	b.start = msg.StartTime
	b.end = msg.EndTime
	// Own the slice; msg.Objects may be reused by the caller.
	b.objects = append([]T(nil), msg.Objects...)
}

func (b *Buffer[T]) takeLocked() Slice[T] {
	out := Slice[T]{StartTime: b.start, EndTime: b.end, Objects: b.objects}
	b.held = false
	b.start = 0
	b.end = 0
	b.objects = nil
	return out
}
