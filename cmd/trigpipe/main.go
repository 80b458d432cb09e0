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

// Command trigpipe is the reference CLI for this module: it wires a
// PipelineWorker strategy to a pair of chanio.Channel endpoints and drives
// it through the control-plane lifecycle, and it offers a sample-replay
// command for feeding a recorded run onto a live channel. Grounded on
// numaflow's cmd/commands package: a root Cobra command with one
// subcommand per mode (run, replay), config loaded via Viper, logger
// injected into the run context.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "trigpipe",
		Short: "Run or replay a trigger-data stream transformer",
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newReplayCommand())
	return root
}
