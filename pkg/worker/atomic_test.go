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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mroda88/trigger/pkg/algo"
)

func TestAtomicToAtomic_ForwardsEveryOutputInOrder(t *testing.T) {
	log, _ := newObservedLogger()
	alg := &identityAlgo{}
	driver := algo.New[elemInt, elemInt](alg, "identity", log)
	sender := &fakeSender[elemInt]{}
	strat := NewAtomicToAtomic[elemInt, elemInt](driver, sender, time.Second, log)

	require.NoError(t, strat.Process(context.Background(), elemInt(5)))
	require.NoError(t, strat.Process(context.Background(), elemInt(9)))

	assert.Equal(t, []elemInt{5, 9}, sender.messages())
}

func TestAtomicToAtomic_FaultIsolatesAndSurvives(t *testing.T) {
	log, logs := newObservedLogger()
	alg := &identityAlgo{panicking: true, panicOn: elemInt(13)}
	driver := algo.New[elemInt, elemInt](alg, "identity", log)
	sender := &fakeSender[elemInt]{}
	strat := NewAtomicToAtomic[elemInt, elemInt](driver, sender, time.Second, log)

	require.NoError(t, strat.Process(context.Background(), elemInt(13)))
	require.NoError(t, strat.Process(context.Background(), elemInt(14)))

	assert.Equal(t, []elemInt{14}, sender.messages())
	assert.NotZero(t, logs.Len(), "expected the panic to be logged")
}

func TestAtomicToAtomic_DropsOutputOnSendTimeout(t *testing.T) {
	log, logs := newObservedLogger()
	alg := &identityAlgo{}
	driver := algo.New[elemInt, elemInt](alg, "identity", log)
	sender := &fakeSender[elemInt]{failNum: 1, failErr: errors.New("timed out")}
	strat := NewAtomicToAtomic[elemInt, elemInt](driver, sender, time.Second, log)

	require.NoError(t, strat.Process(context.Background(), elemInt(1)))

	assert.Empty(t, sender.messages())
	assert.NotZero(t, logs.Len(), "expected the dropped send to be logged")
}
