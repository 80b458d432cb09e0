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
)

func newSlicedToAtomic(t *testing.T) (*SlicedToAtomic[elemInt, elemInt], *fakeSender[elemInt]) {
	t.Helper()
	log, _ := newObservedLogger()
	alg := &identityAlgo{}
	driver := algo.New[elemInt, elemInt](alg, "identity", log)
	sender := &fakeSender[elemInt]{}
	strat := NewSlicedToAtomic[elemInt, elemInt](driver, sender, time.Second, log)
	return strat, sender
}

func TestSlicedToAtomic_ForwardsOutputsImmediatelyOnFragmentCompletion(t *testing.T) {
	strat, sender := newSlicedToAtomic(t)
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(10, 60, 1)))
	require.NoError(t, strat.Process(ctx, payload(10, 60, 2)))
	// the first slice is still held; nothing is forwarded until a fragment
	// with a different range arrives.
	assert.Empty(t, sender.messages())

	require.NoError(t, strat.Process(ctx, payload(60, 110, 3)))
	assert.Equal(t, []elemInt{1, 2}, sender.messages())
}

func TestSlicedToAtomic_HeartbeatFlushesHeldSliceButIsNotForwarded(t *testing.T) {
	strat, sender := newSlicedToAtomic(t)
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(0, 100, 5)))
	require.NoError(t, strat.Process(ctx, heartbeat(100, 100)))

	assert.Equal(t, []elemInt{5}, sender.messages())
}

func TestSlicedToAtomic_OrderingFaultSkipsBatchWithoutPanicking(t *testing.T) {
	strat, sender := newSlicedToAtomic(t)
	log, logs := newObservedLogger()
	strat.log = log
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(0, 100, 5)))
	// heartbeat watermark ends before the held slice does: ordering fault.
	require.NoError(t, strat.Process(ctx, heartbeat(0, 50)))

	assert.Empty(t, sender.messages())
	require.NotZero(t, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "ordering fatal")
}

func TestSlicedToAtomic_DrainDropsOutputsOnStop(t *testing.T) {
	strat, sender := newSlicedToAtomic(t)
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(10, 60, 1)))
	strat.Drain(ctx, true)

	assert.Empty(t, sender.messages())
}

func TestSlicedToAtomic_DrainForwardsOutputsWhenNotDropping(t *testing.T) {
	strat, sender := newSlicedToAtomic(t)
	ctx := context.Background()

	require.NoError(t, strat.Process(ctx, payload(10, 60, 1)))
	strat.Drain(ctx, false)

	assert.Equal(t, []elemInt{1}, sender.messages())
}
