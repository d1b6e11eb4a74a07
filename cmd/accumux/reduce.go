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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/checkpoint"
	"github.com/cardinalhq/accumux/pkg/group"
	"github.com/cardinalhq/accumux/pkg/reduce"
)

type observation struct {
	key   string
	value float64
	// weight is zero when the line carried none.
	weight float64
}

func newReduceCommand(a *app) *cobra.Command {
	var (
		grouped bool
		save    string
	)
	cmd := &cobra.Command{
		Use:   "reduce [file...]",
		Short: "Reduce value[,weight] lines from files or stdin",
		Long: "Reads one observation per line as value[,weight], or key,value[,weight]\n" +
			"with --group, and prints the configured statistics as a record.",
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := readInputs(cmd.InOrStdin(), args, grouped)
			if err != nil {
				return err
			}
			newFn, err := a.factory()
			if err != nil {
				return err
			}

			var records []accumulator.Record
			if grouped {
				records, err = a.reduceGroups(obs, newFn)
			} else {
				var r accumulator.Record
				r, err = a.reduceAll(cmd.Context(), obs, newFn)
				records = []accumulator.Record{r}
			}
			if err != nil {
				return err
			}

			if save != "" {
				if err := a.save(cmd.Context(), save, records); err != nil {
					return err
				}
			}
			return a.write(cmd.OutOrStdout(), records, grouped)
		},
	}
	cmd.Flags().BoolVarP(&grouped, "group", "g", false, "first column is a group key")
	cmd.Flags().StringVar(&save, "save", "", "also save the result to the checkpoint store under this name")
	return cmd
}

func (a *app) reduceAll(ctx context.Context, obs []observation, newFn reduce.Factory[float64]) (accumulator.Record, error) {
	values := make([]float64, len(obs))
	weights := make([]float64, len(obs))
	weighted := false
	for i, o := range obs {
		values[i], weights[i] = o.value, 1
		if o.weight != 0 {
			weights[i], weighted = o.weight, true
		}
	}
	if !weighted {
		weights = nil
	}
	acc, err := reduce.MapReduce(ctx, values, weights, newFn,
		reduce.WithWorkers(a.cfg.Workers),
		reduce.WithChunkSize(a.cfg.ChunkSize),
		reduce.WithLogger(a.logger))
	if err != nil {
		return accumulator.Record{}, err
	}
	return acc.Snapshot(), nil
}

func (a *app) reduceGroups(obs []observation, newFn reduce.Factory[float64]) ([]accumulator.Record, error) {
	now := time.Now()
	combiner, err := group.NewCombiner(now, a.cfg.Group.FlushInterval, newFn, group.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	for i, o := range obs {
		w := o.weight
		if w == 0 {
			w = 1
		}
		if _, err := combiner.Record(now, o.key, o.value, w); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i+1, err)
		}
	}
	return combiner.Flush(now).Records(), nil
}

func (a *app) write(w io.Writer, records []accumulator.Record, list bool) error {
	var (
		b   []byte
		err error
	)
	if list {
		b, err = a.codec.MarshalRecords(records)
	} else {
		b, err = a.codec.Marshal(records[0])
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if a.codec.Name() == "json" {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

func (a *app) openStore() (*checkpoint.Store, error) {
	if a.cfg.Checkpoint.Path == "" {
		return nil, fmt.Errorf("%w: checkpoint.path is not configured", accumulator.ErrInvalidConfig)
	}
	kvs, err := checkpoint.OpenBadgerKVS(a.cfg.Checkpoint.Path)
	if err != nil {
		return nil, err
	}
	return checkpoint.NewStore(kvs,
		checkpoint.WithCodec(a.codec),
		checkpoint.WithPrefix(a.cfg.Checkpoint.Prefix),
		checkpoint.WithTTL(a.cfg.Checkpoint.TTL),
		checkpoint.WithLogger(a.logger)), nil
}

// save stores a single record under name, or each group record under
// name/key.
func (a *app) save(ctx context.Context, name string, records []accumulator.Record) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	named := make([]accumulator.Record, len(records))
	for i, r := range records {
		if r.Name != "" {
			r.Name = name + "/" + r.Name
		} else {
			r.Name = name
		}
		named[i] = r
	}
	return store.SaveAll(ctx, named)
}

func readInputs(stdin io.Reader, paths []string, grouped bool) ([]observation, error) {
	if len(paths) == 0 {
		return readObservations(stdin, "stdin", grouped)
	}
	var all []observation
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		obs, err := readObservations(f, path, grouped)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, obs...)
	}
	return all, nil
}

func readObservations(r io.Reader, source string, grouped bool) ([]observation, error) {
	var obs []observation
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		o, err := parseLine(text, grouped)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", source, line, err)
		}
		obs = append(obs, o)
	}
	return obs, scanner.Err()
}

func parseLine(text string, grouped bool) (observation, error) {
	var o observation
	cols := strings.Split(text, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	if grouped {
		if len(cols) < 2 {
			return o, fmt.Errorf("want key,value[,weight], got %q", text)
		}
		o.key, cols = cols[0], cols[1:]
	}
	if len(cols) > 2 {
		return o, fmt.Errorf("too many columns in %q", text)
	}
	var err error
	if o.value, err = strconv.ParseFloat(cols[0], 64); err != nil {
		return o, err
	}
	if len(cols) == 2 {
		if o.weight, err = strconv.ParseFloat(cols[1], 64); err != nil {
			return o, err
		}
		if err := accumulator.CheckWeight(o.weight); err != nil {
			return o, err
		}
	}
	return o, nil
}
