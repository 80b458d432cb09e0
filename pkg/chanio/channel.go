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

// Package chanio defines the channel/queue transport capability the worker
// depends on: blocking send and receive, each bounded by a timeout, with a
// single distinguished timeout outcome shared across every implementation.
// See pkg/isb/interfaces.go in the numaflow source tree for the sibling
// BufferReader/BufferWriter capability split this is grounded on.
package chanio

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Send or Receive when the bounded wait expires
// without the operation completing. It is the only error implementations
// should return for an ordinary timeout; anything else is a transport fault.
var ErrTimeout = errors.New("chanio: timed out")

// Channel is the capability a PipelineWorker strategy depends on. uid
// identifies the endpoint in configuration; the capability itself is
// transport-agnostic.
type Channel[T any] interface {
	// Send blocks until msg is accepted, the timeout elapses (returns
	// ErrTimeout), or ctx is done.
	Send(ctx context.Context, msg T, timeout time.Duration) error
	// Receive blocks until a message is available, the timeout elapses
	// (returns ErrTimeout), or ctx is done.
	Receive(ctx context.Context, timeout time.Duration) (T, error)
	// Close releases any resources held by the channel endpoint.
	Close() error
}
