package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lab/mwp-encoder/internal/logging"
	"github.com/lab/mwp-encoder/pkg/cache"
	"github.com/lab/mwp-encoder/pkg/dataset"
	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
	"github.com/lab/mwp-encoder/pkg/schema"
	"github.com/lab/mwp-encoder/pkg/storage"
	"github.com/lab/mwp-encoder/pkg/tokenizer"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		output  string
		workers int
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble features from a dataset and write them to parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" {
				a.cfg.Data.Output = output
			}
			if workers > 0 {
				a.cfg.Build.Workers = workers
			}
			if noCache {
				a.cfg.Build.CachePath = ""
			}
			run, err := a.build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := run.write(a); err != nil {
				return err
			}
			renderBuild(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output parquet file")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of concurrent workers")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore the outcome cache")
	return cmd
}

// buildRun is the result of one dataset build.
type buildRun struct {
	dataset   *dataset.Dataset
	stats     *dataset.Stats
	report    dataset.LoadReport
	format    schema.Format
	constants *equation.ConstantTable
	fp        string
	manifest  *storage.Manifest
}

// assembler wires the tokenizer, index space and labeler described by the config.
func (a *app) assembler() (*feature.Assembler, *equation.ConstantTable, error) {
	mode, err := a.cfg.Mode()
	if err != nil {
		return nil, nil, err
	}
	constants, err := a.cfg.ConstantTable()
	if err != nil {
		return nil, nil, err
	}
	tok, err := tokenizer.New(a.cfg.TokenizerOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	space, err := equation.NewIndexSpace(mode, constants)
	if err != nil {
		return nil, nil, err
	}
	opts, err := a.cfg.AssemblerOptions()
	if err != nil {
		return nil, nil, err
	}
	asm, err := feature.NewAssembler(tok, equation.NewLabeler(space, a.cfg.Labeling.AllowReplacement), opts)
	if err != nil {
		return nil, nil, err
	}
	return asm, constants, nil
}

func (a *app) build(ctx context.Context, progressOut io.Writer) (*buildRun, error) {
	if a.cfg.Data.Input == "" {
		return nil, fmt.Errorf("no input dataset given (use --input or data.input)")
	}
	asm, constants, err := a.assembler()
	if err != nil {
		return nil, err
	}

	records, report, err := dataset.LoadRecords(a.cfg.Data.Input, a.cfg.Data.Limit)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Loaded %d records from %s (%s, %d repaired, %d skipped)",
		report.Read, a.cfg.Data.Input, report.Format, report.Fixed, report.Skipped)

	parts, err := a.cfg.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint build inputs: %w", err)
	}
	run := &buildRun{
		report:    report,
		format:    asm.Options().Format,
		constants: constants,
		fp:        cache.Fingerprint(parts...),
	}

	opts := dataset.Options{
		Workers:     a.cfg.Build.Workers,
		Logger:      a.logger,
		MaxWarnings: a.cfg.Build.MaxWarnings,
	}
	if a.cfg.Build.CachePath != "" {
		if err := storage.EnsureDir(a.cfg.Build.CachePath); err != nil {
			return nil, err
		}
		store, err := cache.Open(a.cfg.Build.CachePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if n, err := store.Prune(run.fp); err != nil {
			a.logger.Warn("Failed to prune cache: %v", err)
		} else if n > 0 {
			a.logger.Debug("Pruned %d stale cache entries", n)
		}
		opts.Cache = store.Scope(run.fp)
	}

	var bar *logging.Progress
	if a.cfg.Build.Progress {
		bar = logging.NewProgress(progressOut, len(records), "records")
		opts.Progress = bar
	}
	ds, stats, err := dataset.Build(ctx, records, asm, opts)
	if bar != nil {
		bar.Wait()
	}
	if err != nil {
		return nil, err
	}
	run.dataset, run.stats = ds, stats
	for _, line := range stats.Summary() {
		a.logger.Info("%s", line)
	}
	return run, nil
}

// write stores the features, the label table and the manifest next to the output file.
func (r *buildRun) write(a *app) error {
	out := a.cfg.Data.Output
	if err := storage.EnsureDir(out); err != nil {
		return err
	}
	features := r.dataset.Features()
	if err := storage.WriteFeatures(out, features, a.cfg.Build.Workers); err != nil {
		return err
	}

	m := storage.NewManifest()
	m.Mode = r.dataset.Mode().String()
	m.Format = string(r.format)
	m.Source = a.cfg.Data.Input
	m.Tokenizer = a.cfg.Tokenizer.Kind
	m.Fingerprint = r.fp
	m.Constants = r.constants.Names()
	m.Records = r.stats.Total
	m.Features = len(features)
	m.Files["features"] = out

	if a.cfg.Build.WriteLabels {
		labels := strings.TrimSuffix(out, ".parquet") + ".labels.arrow"
		if err := storage.WriteLabels(labels, features); err != nil {
			return err
		}
		m.Files["labels"] = labels
	}

	stats, err := json.Marshal(r.stats)
	if err != nil {
		return err
	}
	m.Stats = stats
	if err := m.Save(storage.ManifestPath(out)); err != nil {
		return err
	}
	r.manifest = m
	a.logger.Info("Wrote %d features to %s (run %s)", len(features), out, m.RunID)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
