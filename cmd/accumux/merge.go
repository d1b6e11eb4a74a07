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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/compose"
	"github.com/cardinalhq/accumux/pkg/reduce"
)

func newMergeCommand(a *app) *cobra.Command {
	var names []string
	cmd := &cobra.Command{
		Use:   "merge [file...]",
		Short: "Merge saved records into one",
		Long: "Merges records read from files, each holding one record in the selected\n" +
			"codec, and records loaded from the checkpoint store with --from.",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(a, args)
			if err != nil {
				return err
			}
			if len(names) > 0 {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				for _, name := range names {
					r, err := store.Load(cmd.Context(), name)
					if err != nil {
						return err
					}
					records = append(records, r)
				}
			}
			if len(records) == 0 {
				return fmt.Errorf("%w: nothing to merge", accumulator.ErrInvalidConfig)
			}

			merged, err := mergeRecords(records)
			if err != nil {
				return err
			}
			a.logger.Info("merged records",
				zap.Int("records", len(records)),
				zap.String("kind", string(merged.Kind())),
				zap.Float64("weight", merged.Weight()))
			return a.write(cmd.OutOrStdout(), []accumulator.Record{merged.Snapshot()}, false)
		},
	}
	cmd.Flags().StringSliceVar(&names, "from", nil, "checkpoint names to merge")
	return cmd
}

func readRecords(a *app, paths []string) ([]accumulator.Record, error) {
	var records []accumulator.Record
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		r, err := a.codec.Unmarshal(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// mergeRecords restores every record and folds the rest into the first.
func mergeRecords(records []accumulator.Record) (accumulator.Accumulator[float64], error) {
	parts := make([]accumulator.Accumulator[float64], len(records))
	for i, r := range records {
		acc, err := compose.FromRecord[float64](r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		parts[i] = acc
	}
	if err := reduce.Fold(parts[0], parts[1:]...); err != nil {
		return nil, err
	}
	return parts[0], nil
}

