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

// Package control implements the PipelineWorker lifecycle (§4.5): configure
// once, start/stop any number of times, and scrap to return to a
// fresh-as-configured state before a subsequent start. Grounded on
// numaflow's pkg/reduce/data_forward.go Start/ctx.Done shutdown shape: a
// single background goroutine runs the worker.Loop until its context is
// canceled, and Stop blocks until that goroutine has actually exited.
package control

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/worker"
)

// Factory builds a fresh worker.Loop and its underlying worker.Strategy.
// ControlPlane calls it once per Start so that AlgorithmState and every other
// piece of run-scoped state (buffered slices, output windows, counters) is
// constructed new rather than reused across a stop/start cycle (§4.5
// property 7: clean restart).
type Factory[M any] func() (*worker.Loop[M], worker.Strategy[M])

// ControlPlane owns the start/stop lifecycle of a worker.Loop[M] built by
// Factory. It is safe for concurrent Start/Stop/Scrap calls; they are
// serialized on an internal mutex.
type ControlPlane[M any] struct {
	factory Factory[M]
	log     *zap.SugaredLogger

	mu       sync.Mutex
	loop     *worker.Loop[M]
	strategy worker.Strategy[M]
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Configure returns a ControlPlane that builds its worker via factory on
// every Start. Configuration is a one-time step; construct a new
// ControlPlane for a different factory instead of trying to reconfigure an
// existing one.
func Configure[M any](factory Factory[M], log *zap.SugaredLogger) *ControlPlane[M] {
	return &ControlPlane[M]{factory: factory, log: log}
}

// Start builds a fresh worker via Factory and launches it in the background.
// Calling Start while already running is a no-op (idempotent start).
func (c *ControlPlane[M]) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.log.Warnw("start requested while already running, ignoring")
		return
	}

	c.loop, c.strategy = c.factory()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	loop := c.loop
	go func() {
		defer close(c.done)
		loop.Run(runCtx)
	}()
}

// Stop cancels the running loop and blocks until it has fully drained and
// returned. Calling Stop while not running is a no-op (idempotent stop, the
// drain-is-idempotent property).
func (c *ControlPlane[M]) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Scrap discards the worker built by the last Start (its buffered slices,
// output windows, sequence counters, and algorithm instance), returning the
// control plane to the state it was in right after Configure. It calls Reset
// on the last-built strategy and then drops the references to it and its
// loop; the next Start builds an entirely new worker via Factory rather than
// reusing the reset one. Scrap must only be called while stopped.
func (c *ControlPlane[M]) Scrap() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("control: cannot scrap while running, call Stop first")
	}
	if c.strategy != nil {
		c.strategy.Reset()
	}
	c.loop = nil
	c.strategy = nil
	return nil
}

// Running reports whether Start has been called without a matching Stop.
func (c *ControlPlane[M]) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
