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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mroda88/trigger/pkg/algo"
	"github.com/mroda88/trigger/pkg/chanio"
	"github.com/mroda88/trigger/pkg/config"
	"github.com/mroda88/trigger/pkg/control"
	"github.com/mroda88/trigger/pkg/logging"
	"github.com/mroda88/trigger/pkg/metrics"
	"github.com/mroda88/trigger/pkg/registry"
	"github.com/mroda88/trigger/pkg/slicemsg"
	"github.com/mroda88/trigger/pkg/worker"
)

// defaultMetricsAddr matches numaflow's VertexMetricsPort convention: a
// fixed port dedicated to the /metrics scrape endpoint.
const defaultMetricsAddr = ":2469"

func newRunCommand() *cobra.Command {
	var (
		configPath  string
		instances   []string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a pipeline worker from a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), configPath, instances, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the worker's YAML config file")
	cmd.Flags().StringSliceVar(&instances, "instances", nil, "comma-separated list of all live instance names; "+
		"when set, this process only starts if the registry assigns it the config's sourceid (overrides the config file's instances list)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", defaultMetricsAddr, "address to serve Prometheus /metrics on")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runWorker(ctx context.Context, configPath string, instancesFlag []string, metricsAddr string) error {
	log := logging.NewLogger()
	ctx = logging.WithLogger(ctx, log)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reg *registry.Registry
	var cfg *config.Config

	cfg, err := config.Load(configPath, func(err error) {
		log.Errorw("failed to reload config, keeping previous configuration", "error", err)
	}, func() {
		if reg == nil || len(instancesFlag) != 0 {
			// membership is pinned by flag, or no registry was ever needed.
			return
		}
		ownedBefore := reg.Owns(strconv.FormatUint(uint64(cfg.Origin()), 10))
		if err := reg.SetInstances(cfg.Instances()); err != nil {
			log.Errorw("failed to apply reloaded instances list to registry", "error", err)
			return
		}
		sourceID := strconv.FormatUint(uint64(cfg.Origin()), 10)
		ownedAfter := reg.Owns(sourceID)
		if ownedBefore != ownedAfter {
			registry.ObserveReassignment(sourceID)
			log.Infow("registry reassigned this source id across a config reload",
				"sourceid", cfg.Origin(), "owned_before", ownedBefore, "owned_after", ownedAfter)
		}
	})
	if err != nil {
		return fmt.Errorf("trigpipe run: %w", err)
	}
	instance := cfg.Instance()
	if instance == "" {
		instance = uuid.New().String()
		log.Infow("no instance name configured, generated one", "instance", instance)
	}
	log = log.With("instance", instance, "strategy", cfg.Strategy())

	if cfg.Strategy() != config.StrategySlicedToSliced {
		return fmt.Errorf("trigpipe run: unsupported strategy %q for this binary (only sliced_to_sliced is wired)", cfg.Strategy())
	}

	instances := instancesFlag
	if len(instances) == 0 {
		instances = cfg.Instances()
	}
	if len(instances) > 0 {
		reg, err = registry.New(instance, instances)
		if err != nil {
			return fmt.Errorf("trigpipe run: registry: %w", err)
		}
		owns := reg.Owns(strconv.FormatUint(uint64(cfg.Origin()), 10))
		if !owns {
			log.Infow("registry assigned this sourceid to another instance, not starting", "sourceid", cfg.Origin(), "instances", instances)
			return nil
		}
		log.Infow("registry confirmed this instance owns the configured sourceid", "sourceid", cfg.Origin(), "instances", instances)
	}

	metricsSrv := metrics.Serve(ctx, metricsAddr, log)
	defer func() { _ = metricsSrv.Close() }()

	in, err := buildReceiver(cfg.Input())
	if err != nil {
		return fmt.Errorf("trigpipe run: input channel: %w", err)
	}
	out, err := buildSender(cfg.Output())
	if err != nil {
		return fmt.Errorf("trigpipe run: output channel: %w", err)
	}

	factory := func() (*worker.Loop[slicemsg.SlicedMessage[tick]], worker.Strategy[slicemsg.SlicedMessage[tick]]) {
		driver := algo.New[tick, tick](passthroughAlgorithm{}, cfg.AlgorithmName(), log).WithInstance(instance)
		strat, loop := buildStrategy(cfg, driver, in, out, instance, log)
		return loop, strat
	}

	plane := control.Configure[slicemsg.SlicedMessage[tick]](factory, log)
	plane.Start(ctx)
	log.Infow("worker started")

	<-ctx.Done()
	log.Infow("stopping worker")
	plane.Stop()

	var closers errgroup.Group
	closers.Go(in.Close)
	closers.Go(out.Close)
	if err := closers.Wait(); err != nil {
		log.Warnw("error closing channels during shutdown", "error", err)
	}

	log.Infow("worker stopped cleanly")
	return nil
}

// buildStrategy builds the one strategy this reference binary wires:
// sliced_to_sliced. See DESIGN.md for why atomic_to_atomic and
// sliced_to_atomic, while fully implemented in pkg/worker, are not reachable
// from this particular CLI.
func buildStrategy(
	cfg *config.Config,
	driver *algo.Driver[tick, tick],
	in chanio.Channel[slicemsg.SlicedMessage[tick]],
	out chanio.Channel[slicemsg.SlicedMessage[tick]],
	instance string,
	log *zap.SugaredLogger,
) (worker.Strategy[slicemsg.SlicedMessage[tick]], *worker.Loop[slicemsg.SlicedMessage[tick]]) {
	strat := worker.NewSlicedToSliced[tick, tick](driver, out, cfg.Window(), cfg.Grace(), cfg.Origin(), cfg.SendTimeout(), log).
		WithInstance(instance)
	loop := worker.NewLoop[slicemsg.SlicedMessage[tick]](strat, in, chanioIsTimeout, log).
		WithLabels(instance, string(cfg.Strategy()))
	return strat, loop
}

func chanioIsTimeout(err error) bool {
	return errors.Is(err, chanio.ErrTimeout)
}

func buildReceiver(cc config.ChannelConfig) (chanio.Channel[slicemsg.SlicedMessage[tick]], error) {
	switch cc.Kind {
	case config.ChannelMem:
		return chanio.NewMemChannel[slicemsg.SlicedMessage[tick]](cc.Name, cc.Capacity), nil
	case config.ChannelRedis:
		client := redis.NewClient(&redis.Options{Addr: cc.RedisURL})
		return chanio.NewRedisChannel[slicemsg.SlicedMessage[tick]](client, cc.RedisKey, tickMessageCodec), nil
	default:
		return nil, fmt.Errorf("unrecognized channel kind %q", cc.Kind)
	}
}

func buildSender(cc config.ChannelConfig) (chanio.Channel[slicemsg.SlicedMessage[tick]], error) {
	return buildReceiver(cc)
}

var tickMessageCodec = chanio.Codec[slicemsg.SlicedMessage[tick]]{
	Marshal: func(m slicemsg.SlicedMessage[tick]) ([]byte, error) {
		return json.Marshal(m)
	},
	Unmarshal: func(b []byte) (slicemsg.SlicedMessage[tick], error) {
		var m slicemsg.SlicedMessage[tick]
		err := json.Unmarshal(b, &m)
		return m, err
	},
}
