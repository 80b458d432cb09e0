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

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mroda88/trigger/pkg/chanio"
	"github.com/mroda88/trigger/pkg/logging"
	"github.com/mroda88/trigger/pkg/replay"
	"github.com/mroda88/trigger/pkg/slicemsg"
)

func newReplayCommand() *cobra.Command {
	var (
		file        string
		channelKind string
		channelName string
		redisURL    string
		redisKey    string
		rateHz      float64
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded newline-delimited JSON sample onto a channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("trigpipe replay: %w", err)
			}
			defer f.Close()

			messages, err := replay.Decode[tick](f, decodeTick)
			if err != nil {
				return fmt.Errorf("trigpipe replay: %w", err)
			}

			var ch chanio.Channel[slicemsg.SlicedMessage[tick]]
			switch channelKind {
			case "mem":
				ch = chanio.NewMemChannel[slicemsg.SlicedMessage[tick]](channelName, len(messages))
			case "redis":
				client := redis.NewClient(&redis.Options{Addr: redisURL})
				ch = chanio.NewRedisChannel[slicemsg.SlicedMessage[tick]](client, redisKey, tickMessageCodec)
			default:
				return fmt.Errorf("trigpipe replay: unrecognized channel kind %q", channelKind)
			}

			log := logging.NewLogger()
			interval := time.Duration(0)
			if rateHz > 0 {
				interval = time.Duration(float64(time.Second) / rateHz)
			}

			return replay.Run[tick](cmd.Context(), ch, messages, interval, 5*time.Second, func(i int, err error) {
				log.Warnw("dropped replayed message after send timeout", "index", i, "error", err)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the newline-delimited JSON sample")
	cmd.Flags().StringVar(&channelKind, "channel", "mem", "channel kind: mem or redis")
	cmd.Flags().StringVar(&channelName, "channel-name", "replay", "name for an in-memory channel")
	cmd.Flags().StringVar(&redisURL, "redis-url", "localhost:6379", "redis address, when --channel=redis")
	cmd.Flags().StringVar(&redisKey, "redis-key", "replay", "redis list key, when --channel=redis")
	cmd.Flags().Float64Var(&rateHz, "rate", 0, "messages per second; 0 sends as fast as possible")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
