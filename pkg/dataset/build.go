package dataset

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lab/mwp-encoder/pkg/feature"
	"github.com/lab/mwp-encoder/pkg/schema"
)

// Logger is the logging surface Build needs.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Progress is advanced once per processed record.
type Progress interface {
	Increment()
}

// OutcomeCache remembers assembly results by record position.
type OutcomeCache interface {
	Load(index int) (feature.Result, bool, error)
	Store(index int, res feature.Result) error
}

// Options configures Build.
type Options struct {
	Workers  int
	Cache    OutcomeCache
	Progress Progress
	Logger   Logger
	// MaxWarnings caps the per-record warnings written to the logger.
	MaxWarnings int
}

// Build assembles every record concurrently and merges the outcomes in input order.
// Per-record failures become discard reasons; only cancellation or a cache failure
// aborts the build.
func Build(ctx context.Context, records []schema.Record, asm *feature.Assembler, opts Options) (*Dataset, *Stats, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.MaxWarnings <= 0 {
		opts.MaxWarnings = 10
	}

	results := make([]feature.Result, len(records))
	hits := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range records {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, hit, err := assembleOne(asm, records[i], i, opts.Cache)
			if err != nil {
				return err
			}
			results[i], hits[i] = res, hit
			if opts.Progress != nil {
				opts.Progress.Increment()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	stats := newStats()
	features := make([]feature.Feature, 0, len(records))
	kept := make([]schema.Record, 0, len(records))
	warnings := 0
	warn := func(format string, args ...interface{}) {
		warnings++
		if warnings <= opts.MaxWarnings {
			opts.Logger.Warn(format, args...)
		}
	}
	for i, res := range results {
		stats.add(res)
		if hits[i] {
			stats.CacheHits++
		}
		if res.DuplicateSteps {
			warn("record %s: duplicated equation steps in a de-duplicated dataset", records[i].ID)
		}
		if !res.Kept() {
			opts.Logger.Debug("record %s discarded (%s): %v", records[i].ID, res.Reason, res.Err)
			continue
		}
		if res.Mismatch {
			warn("record %s: labels evaluate to %g, answer is %g: %v", records[i].ID, res.Value, records[i].Answer, res.Err)
		}
		features = append(features, res.Feature)
		kept = append(kept, records[i])
	}
	if warnings > opts.MaxWarnings {
		opts.Logger.Warn("%d further warnings suppressed", warnings-opts.MaxWarnings)
	}

	return New(asm.Mode(), features, kept), stats, nil
}

func assembleOne(asm *feature.Assembler, rec schema.Record, index int, cache OutcomeCache) (feature.Result, bool, error) {
	if cache != nil {
		res, ok, err := cache.Load(index)
		if err != nil {
			return feature.Result{}, false, fmt.Errorf("cache load for record %d: %w", index, err)
		}
		if ok {
			return res, true, nil
		}
	}
	res := asm.Assemble(rec)
	if cache != nil {
		if err := cache.Store(index, res); err != nil {
			return feature.Result{}, false, fmt.Errorf("cache store for record %d: %w", index, err)
		}
	}
	return res, false, nil
}
