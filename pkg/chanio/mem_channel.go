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

package chanio

import (
	"context"
	"time"
)

// MemChannel is a fixed-capacity, in-process Channel backed by a native Go
// channel. It is the reference transport used by tests and single-binary
// deployments, grounded on pkg/isb/stores/simplebuffer in the numaflow source
// tree (an in-memory reference buffer with a configurable read timeout).
type MemChannel[T any] struct {
	name string
	ch   chan T
}

// NewMemChannel returns a MemChannel with the given name (used only for
// diagnostics) and buffer capacity.
func NewMemChannel[T any](name string, capacity int) *MemChannel[T] {
	return &MemChannel[T]{name: name, ch: make(chan T, capacity)}
}

// Name returns the configured uid of this endpoint.
func (m *MemChannel[T]) Name() string { return m.name }

func (m *MemChannel[T]) Send(ctx context.Context, msg T, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m.ch <- msg:
		return nil
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MemChannel[T]) Receive(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg, ok := <-m.ch:
		if !ok {
			return zero, ErrTimeout
		}
		return msg, nil
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close closes the underlying channel. Further Sends will panic, matching
// native Go channel semantics; callers must not Send after Close.
func (m *MemChannel[T]) Close() error {
	close(m.ch)
	return nil
}

var _ Channel[int] = (*MemChannel[int])(nil)
