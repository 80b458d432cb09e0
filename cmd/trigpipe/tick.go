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

package main

import "encoding/json"

// tick is the built-in element type the CLI ships with: a bare timestamp,
// enough to exercise the pipeline end to end without a real algorithm
// plugged in. Production deployments of this module link pkg/control and
// pkg/worker directly against their own Element and Algorithm types instead
// of going through this binary.
type tick int64

func (t tick) TimeStart() int64 { return int64(t) }

func decodeTick(raw json.RawMessage) (tick, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return tick(n), nil
}

// passthroughAlgorithm is the identity Algorithm[tick, tick]: every input is
// its own output. It exists so `trigpipe run` has something to drive
// without requiring a custom build; see pkg/algo.Algorithm for the
// interface a real algorithm implements instead.
type passthroughAlgorithm struct{}

func (passthroughAlgorithm) Call(in tick, out *[]tick) error {
	*out = append(*out, in)
	return nil
}

func (passthroughAlgorithm) Flush(_ int64, _ *[]tick) error {
	return nil
}
