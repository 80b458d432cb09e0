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
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeSender is a Sender[M] that records every message handed to it, and can
// be configured to fail the next N sends with errTimeout-like behavior.
type fakeSender[M any] struct {
	mu      sync.Mutex
	sent    []M
	failNum int
	failErr error
}

func (f *fakeSender[M]) Send(_ context.Context, msg M, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNum > 0 {
		f.failNum--
		return f.failErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender[M]) messages() []M {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]M, len(f.sent))
	copy(out, f.sent)
	return out
}

// identityAlgo is an algo.Algorithm[elemInt, elemInt] that copies each input
// straight through on Call and produces nothing on Flush, unless flushOut is
// set. callErr, when set, makes every Call fail; panicking makes Call panic
// on the input equal to panicOn. Both exercise driver fault isolation end to
// end.
type identityAlgo struct {
	flushOut  []elemInt
	callErr   error
	panicOn   elemInt
	panicking bool
}

func (a *identityAlgo) Call(in elemInt, out *[]elemInt) error {
	if a.callErr != nil {
		return a.callErr
	}
	if a.panicking && in == a.panicOn {
		panic("identityAlgo: forced panic")
	}
	*out = append(*out, in)
	return nil
}

func (a *identityAlgo) Flush(_ int64, out *[]elemInt) error {
	*out = append(*out, a.flushOut...)
	return nil
}

func newObservedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return zap.New(core).Sugar(), logs
}
