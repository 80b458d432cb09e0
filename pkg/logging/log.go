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

// Package logging provides the structured logger every component in this
// module pulls from context, following the same pattern as numaflow's
// pkg/shared/logging (a context-carried *zap.SugaredLogger with an
// environment-toggled development config).
package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// NewLogger returns a new zap.SugaredLogger. Set TRIGPIPE_DEBUG=true for a
// human-readable development encoder; otherwise it builds the production
// (JSON) config.
func NewLogger() *zap.SugaredLogger {
	var config zap.Config
	if debug, ok := os.LookupEnv("TRIGPIPE_DEBUG"); ok && debug == "true" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stdout"}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named("trigpipe").Sugar()
}

type loggerKey struct{}

// WithLogger returns a copy of parent carrying logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stashed in ctx, or a freshly built one if
// none was ever attached.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return NewLogger()
}
