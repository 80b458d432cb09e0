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

// Package config loads the typed, hot-reloadable run configuration for a
// trigpipe instance, grounded on numaflow's pkg/reconciler.LoadConfig: a
// viper.Viper reads a YAML file once up front, then watches it for changes,
// swapping an internal pointer under a lock so concurrent readers never see
// a half-updated struct.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Strategy names the worker strategy a PipelineWorker instance runs.
type Strategy string

const (
	StrategyAtomicToAtomic Strategy = "atomic_to_atomic"
	StrategySlicedToSliced Strategy = "sliced_to_sliced"
	StrategySlicedToAtomic Strategy = "sliced_to_atomic"
)

// ChannelKind selects the chanio.Channel transport.
type ChannelKind string

const (
	ChannelMem   ChannelKind = "mem"
	ChannelRedis ChannelKind = "redis"
)

// ChannelConfig describes one endpoint (input or output) of a worker.
type ChannelConfig struct {
	Kind     ChannelKind `mapstructure:"kind"`
	Name     string      `mapstructure:"name"`
	Capacity int         `mapstructure:"capacity"`
	RedisURL string      `mapstructure:"redisUrl"`
	RedisKey string      `mapstructure:"redisKey"`
}

type run struct {
	Instance         string        `mapstructure:"instance"`
	AlgorithmName    string        `mapstructure:"algorithmName"`
	Strategy         Strategy      `mapstructure:"strategy"`
	Origin           uint32        `mapstructure:"origin"`
	Window           int64         `mapstructure:"window"`
	Grace            int64         `mapstructure:"grace"`
	SendTimeoutMs    int64         `mapstructure:"sendTimeoutMs"`
	ReceiveTimeoutMs int64         `mapstructure:"receiveTimeoutMs"`
	Input            ChannelConfig `mapstructure:"input"`
	Output           ChannelConfig `mapstructure:"output"`
	Instances        []string      `mapstructure:"instances"`
}

// Config is the process-wide, hot-reloadable configuration handle. Reads are
// lock-protected; writers only come from the viper file-watch callback.
type Config struct {
	mu   sync.RWMutex
	conf *run
}

func (c *Config) snapshot() run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.conf
}

func (c *Config) Instance() string      { return c.snapshot().Instance }
func (c *Config) AlgorithmName() string { return c.snapshot().AlgorithmName }
func (c *Config) Strategy() Strategy    { return c.snapshot().Strategy }
func (c *Config) Origin() uint32        { return c.snapshot().Origin }
func (c *Config) Window() int64         { return c.snapshot().Window }
func (c *Config) Grace() int64          { return c.snapshot().Grace }
func (c *Config) Instances() []string   { return append([]string(nil), c.snapshot().Instances...) }
func (c *Config) Input() ChannelConfig  { return c.snapshot().Input }
func (c *Config) Output() ChannelConfig { return c.snapshot().Output }

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.snapshot().SendTimeoutMs) * time.Millisecond
}

func (c *Config) ReceiveTimeout() time.Duration {
	d := c.snapshot().ReceiveTimeoutMs
	if d <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(d) * time.Millisecond
}

// Load reads path (a YAML file) into a Config and begins watching it for
// changes. onErrorReloading is invoked, not fatally, whenever a later reload
// fails to unmarshal; the previously loaded configuration stays in effect.
// onReloaded, if non-nil, runs after every successful reload so callers can
// react to changes such as a new instances list.
func Load(path string, onErrorReloading func(error), onReloaded func()) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("window", int64(625000))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to load %q: %w", path, err)
	}

	r := &run{}
	if err := v.Unmarshal(r); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal %q: %w", path, err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}

	c := &Config{conf: r}
	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		next := &run{}
		if err := v.Unmarshal(next); err != nil {
			onErrorReloading(err)
			return
		}
		if err := next.validate(); err != nil {
			onErrorReloading(err)
			return
		}
		c.mu.Lock()
		c.conf = next
		c.mu.Unlock()
		if onReloaded != nil {
			onReloaded()
		}
	})
	return c, nil
}

func (r *run) validate() error {
	if r.AlgorithmName == "" {
		return fmt.Errorf("config: algorithmName is required")
	}
	switch r.Strategy {
	case StrategyAtomicToAtomic, StrategySlicedToSliced, StrategySlicedToAtomic:
	default:
		return fmt.Errorf("config: unrecognized strategy %q", r.Strategy)
	}
	if r.Strategy != StrategyAtomicToAtomic && r.Window <= 0 {
		return fmt.Errorf("config: window must be > 0 for strategy %q", r.Strategy)
	}
	return nil
}
