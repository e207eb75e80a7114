package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lab/mwp-encoder/pkg/collate"
	"github.com/lab/mwp-encoder/pkg/dataset"
	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
	"github.com/lab/mwp-encoder/pkg/storage"
)

func newCollateCmd(a *app) *cobra.Command {
	var (
		from    string
		batches int
	)
	cmd := &cobra.Command{
		Use:   "collate",
		Short: "Batch features and print the padded shapes",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.collateSource(cmd, from)
			if err != nil {
				return err
			}
			return a.renderCollate(cmd.OutOrStdout(), src, batches)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "read features from a parquet file instead of building them")
	cmd.Flags().IntVarP(&batches, "batches", "n", 5, "number of batches to show (0 for all)")
	return cmd
}

func (a *app) collateSource(cmd *cobra.Command, from string) (*dataset.Dataset, error) {
	if from != "" {
		if !fileExists(from) {
			return nil, fmt.Errorf("feature file %s does not exist", from)
		}
		features, err := storage.ReadFeatures(from, a.cfg.Build.Workers)
		if err != nil {
			return nil, err
		}
		if len(features) == 0 {
			return nil, fmt.Errorf("feature file %s is empty", from)
		}
		return dataset.New(features[0].Mode(), features, nil), nil
	}
	run, err := a.build(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return run.dataset, nil
}

func (a *app) renderCollate(w io.Writer, ds *dataset.Dataset, limit int) error {
	c := a.cfg.Collate
	loader := collate.NewLoader(ds, c.BatchSize)
	loader.Shuffle, loader.Seed, loader.DropLast = c.Shuffle, c.Seed, c.DropLast

	constants, err := a.cfg.ConstantTable()
	if err != nil {
		return err
	}
	sparse := collate.Sparse{PadTokenID: a.cfg.Tokenizer.PadTokenID, Mode: ds.Mode()}
	dense := collate.Dense{
		PadTokenID:      a.cfg.Tokenizer.PadTokenID,
		NumConstants:    constants.Len(),
		WithReplacement: a.cfg.Labeling.AllowReplacement,
	}
	useDense := c.Dense && ds.Mode() != equation.ModeFlat
	if c.Dense && !useDense {
		a.logger.Warn("Dense collation needs incremental or parallel labels; using sparse batches")
	}

	heading(w, fmt.Sprintf("BATCHES (%d of size %d)", loader.EstimateBatchCount(), loader.BatchSize))
	table := newTable(w, "BATCH", "SIZE", "TOKENS", "SPANS", "LABELS")
	for i, idx := range loader.Batches() {
		if limit > 0 && i >= limit {
			break
		}
		features := loader.Features(idx)
		row, err := batchRow(features, sparse, dense, useDense)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		table.Append(append([]string{strconv.Itoa(i), strconv.Itoa(len(features))}, row...))
	}
	table.Render()
	return nil
}

func batchRow(features []feature.Feature, sparse collate.Sparse, dense collate.Dense, useDense bool) ([]string, error) {
	if useDense {
		b, err := dense.Collate(features)
		if err != nil {
			return nil, err
		}
		ts := b.Tensors()
		return []string{shape(ts["input_ids"].Shape()), shape(ts["span_starts"].Shape()), shape(b.Shape())}, nil
	}
	b, err := sparse.Collate(features)
	if err != nil {
		return nil, err
	}
	ts := b.Tensors()
	return []string{shape(ts["input_ids"].Shape()), shape(ts["span_starts"].Shape()), shape(ts["labels"].Shape())}, nil
}

func shape(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
