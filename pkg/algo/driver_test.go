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

package algo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/slicemsg"
)

type elem int64

func (e elem) TimeStart() int64 { return int64(e) }

type doublingAlgo struct {
	faultOn  int64
	flushErr error
	calls    int
}

func (a *doublingAlgo) Call(in elem, out *[]elem) error {
	a.calls++
	if int64(in) == a.faultOn {
		panic("simulated algorithm panic")
	}
	*out = append(*out, in*2)
	return nil
}

func (a *doublingAlgo) Flush(_ int64, out *[]elem) error {
	if a.flushErr != nil {
		return a.flushErr
	}
	*out = append(*out, -1)
	return nil
}

func TestDriver_Call_AppendsOutputs(t *testing.T) {
	d := New[elem, elem](&doublingAlgo{}, "double", zap.NewNop().Sugar())
	var out []elem
	fault := d.Call(5, &out)
	require.Nil(t, fault)
	assert.Equal(t, []elem{10}, out)
}

func TestDriver_Call_FaultIsolatesButSurvives(t *testing.T) {
	alg := &doublingAlgo{faultOn: 3}
	d := New[elem, elem](alg, "double", zap.NewNop().Sugar())

	var out []elem
	fault := d.Call(3, &out)
	require.NotNil(t, fault)
	assert.Equal(t, "call", fault.Op)
	assert.Empty(t, out)

	// subsequent calls still process
	fault = d.Call(4, &out)
	require.Nil(t, fault)
	assert.Equal(t, []elem{8}, out)
	assert.Equal(t, 2, alg.calls)
}

func TestDriver_Flush_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	d := New[elem, elem](&doublingAlgo{flushErr: wantErr}, "double", zap.NewNop().Sugar())

	var out []elem
	fault := d.Flush(100, &out)
	require.NotNil(t, fault)
	assert.Equal(t, "flush", fault.Op)
	assert.ErrorIs(t, fault, wantErr)
}

var _ slicemsg.Element = elem(0)
