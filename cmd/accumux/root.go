// Copyright 2025 CardinalHQ, Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardinalhq/accumux/internal/config"
	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/codec"
	"github.com/cardinalhq/accumux/pkg/compose"
	"github.com/cardinalhq/accumux/pkg/reduce"
)

type app struct {
	configPath string
	verbose    bool
	codecName  string
	workers    int

	cfg    *config.Config
	codec  codec.Codec
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "accumux",
		Short:         "Compute mergeable streaming statistics",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "development logging")
	root.PersistentFlags().StringVar(&a.codecName, "codec", "", "record encoding: json, yaml or proto")
	root.PersistentFlags().IntVar(&a.workers, "workers", 0, "parallel workers (0 uses the configured value)")

	root.AddCommand(
		newReduceCommand(a),
		newMergeCommand(a),
		newKindsCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.Load(a.configPath)
	} else {
		a.cfg = config.Default()
	}
	if err != nil {
		return err
	}
	if a.codecName != "" {
		a.cfg.Codec = a.codecName
	}
	if a.workers > 0 {
		a.cfg.Workers = a.workers
	}
	if a.codec, err = codec.ByName(a.cfg.Codec); err != nil {
		return err
	}

	if a.verbose {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	a.logger.Debug("configured",
		zap.String("command", cmd.Name()),
		zap.Int("statistics", len(a.cfg.Statistics)),
		zap.Int("workers", a.cfg.Workers),
		zap.String("codec", a.cfg.Codec))
	return nil
}

// factory builds the configured statistics as one composite.
func (a *app) factory() (reduce.Factory[float64], error) {
	if _, err := compose.FromSpecs[float64](a.cfg.Statistics...); err != nil {
		return nil, err
	}
	specs := a.cfg.Statistics
	return func() accumulator.Accumulator[float64] {
		c, _ := compose.FromSpecs[float64](specs...)
		return c
	}, nil
}
