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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mroda88/trigger/pkg/algo"
	"github.com/mroda88/trigger/pkg/slicemsg"
)

func newSlicedToSliced(t *testing.T, window, grace int64) (*SlicedToSliced[elemInt, elemInt], *fakeSender[slicemsg.SlicedMessage[elemInt]]) {
	t.Helper()
	log, _ := newObservedLogger()
	alg := &identityAlgo{}
	driver := algo.New[elemInt, elemInt](alg, "identity", log)
	sender := &fakeSender[slicemsg.SlicedMessage[elemInt]]{}
	strat := NewSlicedToSliced[elemInt, elemInt](driver, sender, window, grace, 7, time.Second, log)
	return strat, sender
}

func payload(start, end int64, objs ...elemInt) slicemsg.SlicedMessage[elemInt] {
	return slicemsg.SlicedMessage[elemInt]{Kind: slicemsg.Payload, StartTime: start, EndTime: end, Objects: objs}
}

func heartbeat(start, end int64) slicemsg.SlicedMessage[elemInt] {
	return slicemsg.SlicedMessage[elemInt]{Kind: slicemsg.Heartbeat, StartTime: start, EndTime: end}
}

func TestSlicedToSliced_Passthrough(t *testing.T) {
	strat, sender := newSlicedToSliced(t, 100, 0)
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(0, 100, 10, 20)))
	require.NoError(t, strat.Process(ctx, heartbeat(100, 100)))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, slicemsg.Payload, msgs[0].Kind)
	assert.Equal(t, int64(0), msgs[0].StartTime)
	assert.Equal(t, int64(100), msgs[0].EndTime)
	assert.Equal(t, []elemInt{10, 20}, msgs[0].Objects)
}

func TestSlicedToSliced_FragmentConcatenation(t *testing.T) {
	strat, sender := newSlicedToSliced(t, 100, 0)
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(10, 60, 1)))
	require.NoError(t, strat.Process(ctx, payload(10, 60, 2)))
	require.NoError(t, strat.Process(ctx, payload(60, 110, 3)))
	require.NoError(t, strat.Process(ctx, heartbeat(110, 110)))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []elemInt{1, 2, 3}, msgs[0].Objects)
	assert.Equal(t, int64(0), msgs[0].StartTime)
	assert.Equal(t, int64(100), msgs[0].EndTime)
}

func TestSlicedToSliced_OutOfOrderSliceLogsWarning(t *testing.T) {
	strat, _ := newSlicedToSliced(t, 100, 0)
	log, logs := newObservedLogger()
	strat.log = log
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(50, 100, 1)))
	require.NoError(t, strat.Process(ctx, payload(50, 100, 2)))
	require.NoError(t, strat.Process(ctx, payload(10, 60, 3)))

	require.NotZero(t, logs.Len())
	assert.Contains(t, logs.All()[logs.Len()-1].Message, "out-of-order")
}

func TestSlicedToSliced_UnknownKindSkipped(t *testing.T) {
	strat, sender := newSlicedToSliced(t, 100, 0)
	log, logs := newObservedLogger()
	strat.log = log
	ctx := context.Background()

	msg := slicemsg.SlicedMessage[elemInt]{Kind: slicemsg.Unknown}
	require.NoError(t, strat.Process(ctx, msg))

	assert.Empty(t, sender.messages())
	require.NotZero(t, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "unknown kind")
}

func TestSlicedToSliced_DrainDropsBufferedWindowsOnStop(t *testing.T) {
	strat, sender := newSlicedToSliced(t, 100, 0)
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(10, 60, 1)))

	strat.Drain(ctx, true)

	assert.Empty(t, sender.messages())
	assert.True(t, strat.out.Empty())
}

func TestSlicedToSliced_ResetClearsState(t *testing.T) {
	strat, _ := newSlicedToSliced(t, 100, 0)
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(10, 60, 1)))
	strat.Reset()

	assert.True(t, strat.out.Empty())
	assert.Equal(t, int64(0), strat.prevSliceStart)
	assert.Equal(t, uint64(0), strat.sentCount)

	// the input buffer should also have no held fragment: a forced Flush
	// after Reset returns nothing.
	_, ok := strat.in.Flush()
	assert.False(t, ok)
}
