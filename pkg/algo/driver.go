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

// Package algo wraps an opaque, user-supplied algorithm in a thin driver that
// turns algorithm faults (errors or panics) into a single escalation path:
// log fatal, abandon the current batch, keep the worker alive. See
// pkg/reduce/applier in the numaflow source tree for the sibling idea this is
// grounded on (an opaque capability invoked by a driver loop that never lets
// a UDF fault take down the process).
package algo

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/metrics"
	"github.com/mroda88/trigger/pkg/slicemsg"
)

// Algorithm is the opaque per-run capability the driver invokes. The core
// never reflects over it; it only knows these two methods.
type Algorithm[T slicemsg.Element, O slicemsg.Element] interface {
	// Call appends zero or more outputs produced from one input element.
	Call(in T, out *[]O) error
	// Flush declares that no more outputs will be produced for times
	// strictly less than watermark, and may append final outputs now.
	Flush(watermark int64, out *[]O) error
}

// Fault describes an escalated algorithm failure: what was being done, and
// the underlying error (wrapped panic value or returned error).
type Fault struct {
	Op  string // "call" or "flush"
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("algorithm fault during %s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Driver adapts an Algorithm, escalating faults as fatal-but-survivable.
type Driver[T slicemsg.Element, O slicemsg.Element] struct {
	alg      Algorithm[T, O]
	name     string
	instance string
	log      *zap.SugaredLogger
}

// New returns a Driver wrapping alg. name is the display name used in fatal
// diagnostics (the configured algorithm_name).
func New[T slicemsg.Element, O slicemsg.Element](alg Algorithm[T, O], name string, log *zap.SugaredLogger) *Driver[T, O] {
	return &Driver[T, O]{alg: alg, name: name, log: log}
}

// WithInstance labels every fault this Driver records with instance, e.g.
// the owning worker's configured instance name.
func (d *Driver[T, O]) WithInstance(instance string) *Driver[T, O] {
	d.instance = instance
	return d
}

// Call runs the algorithm over one input element, appending to out. On fault
// (error or panic) it logs fatal and returns the Fault; the caller should
// abandon the current batch/slice but keep running.
func (d *Driver[T, O]) Call(in T, out *[]O) (fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &Fault{Op: "call", Err: fmt.Errorf("panic: %v", r)}
			metrics.AlgorithmFaultCount.WithLabelValues(d.instance, d.name).Inc()
			d.log.Errorw("algorithm panicked during call, abandoning batch", "algorithm", d.name, "panic", r)
		}
	}()
	if err := d.alg.Call(in, out); err != nil {
		metrics.AlgorithmFaultCount.WithLabelValues(d.instance, d.name).Inc()
		d.log.Errorw("algorithm faulted during call, abandoning batch", "algorithm", d.name, "error", err)
		return &Fault{Op: "call", Err: err}
	}
	return nil
}

// Flush runs the algorithm's flush-to-watermark, appending to out.
func (d *Driver[T, O]) Flush(watermark int64, out *[]O) (fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &Fault{Op: "flush", Err: fmt.Errorf("panic: %v", r)}
			metrics.AlgorithmFaultCount.WithLabelValues(d.instance, d.name).Inc()
			d.log.Errorw("algorithm panicked during flush, abandoning batch", "algorithm", d.name, "panic", r)
		}
	}()
	if err := d.alg.Flush(watermark, out); err != nil {
		metrics.AlgorithmFaultCount.WithLabelValues(d.instance, d.name).Inc()
		d.log.Errorw("algorithm faulted during flush, abandoning batch", "algorithm", d.name, "error", err)
		return &Fault{Op: "flush", Err: err}
	}
	return nil
}
