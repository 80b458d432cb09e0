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

package inputbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mroda88/trigger/pkg/slicemsg"
)

type testElem int64

func (e testElem) TimeStart() int64 { return int64(e) }

func payload(start, end int64, objs ...testElem) slicemsg.SlicedMessage[testElem] {
	return slicemsg.SlicedMessage[testElem]{Kind: slicemsg.Payload, StartTime: start, EndTime: end, Objects: objs}
}

func TestAccept_FragmentConcatenation(t *testing.T) {
	b := New[testElem]()

	_, ok := b.Accept(payload(0, 100, 10))
	require.False(t, ok)

	_, ok = b.Accept(payload(0, 100, 20))
	require.False(t, ok)

	out, ok := b.Accept(payload(100, 200, 150))
	require.True(t, ok)
	assert.Equal(t, int64(0), out.StartTime)
	assert.Equal(t, int64(100), out.EndTime)
	assert.Equal(t, []testElem{10, 20}, out.Objects)
}

func TestAccept_EmptyFragmentOpensSlice(t *testing.T) {
	b := New[testElem]()
	_, ok := b.Accept(payload(0, 100))
	require.False(t, ok)

	out, ok := b.Accept(payload(0, 100, 5))
	require.False(t, ok)
	assert.Nil(t, out.Objects)

	out, ok = b.Flush()
	require.True(t, ok)
	assert.Equal(t, []testElem{5}, out.Objects)
}

func TestFlush_EmptyReturnsFalse(t *testing.T) {
	b := New[testElem]()
	_, ok := b.Flush()
	assert.False(t, ok)
}

func TestFlush_ForcesHeldSliceOut(t *testing.T) {
	b := New[testElem]()
	b.Accept(payload(0, 50, 1, 2, 3))

	out, ok := b.Flush()
	require.True(t, ok)
	assert.Equal(t, int64(0), out.StartTime)
	assert.Equal(t, int64(50), out.EndTime)
	assert.Equal(t, []testElem{1, 2, 3}, out.Objects)

	// buffer is empty again
	_, ok = b.Flush()
	assert.False(t, ok)
}

func TestAccept_DoesNotMutateEarlierSliceAfterRelease(t *testing.T) {
	b := New[testElem]()
	b.Accept(payload(0, 100, 1))
	out, ok := b.Accept(payload(100, 200, 2))
	require.True(t, ok)

	// mutating the returned slice must not affect the buffer's new held state
	out.Objects[0] = 99
	out2, ok := b.Flush()
	require.True(t, ok)
	assert.Equal(t, []testElem{2}, out2.Objects)
}

func TestReset_DiscardsHeldFragment(t *testing.T) {
	b := New[testElem]()
	b.Accept(payload(0, 100, 1))
	b.Reset()
	_, ok := b.Flush()
	assert.False(t, ok)
}
