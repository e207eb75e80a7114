// Package storage writes assembled features to parquet and arrow files and records each
// run in a JSON manifest.
package storage

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
	"github.com/lab/mwp-encoder/pkg/schema"
)

// WriteFeatures writes one snappy-compressed row per feature.
func WriteFeatures(path string, features []feature.Feature, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(schema.FeatureRow), int64(workers))
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, f := range features {
		if err := pw.Write(ToRow(f)); err != nil {
			pw.WriteStop()
			return fmt.Errorf("failed to write feature %s: %w", f.Common().RecordID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ReadFeatures reads a file written by WriteFeatures.
func ReadFeatures(path string, workers int) ([]feature.Feature, error) {
	if workers <= 0 {
		workers = 1
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(schema.FeatureRow), int64(workers))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]schema.FeatureRow, pr.GetNumRows())
	if len(rows) == 0 {
		return nil, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}

	out := make([]feature.Feature, 0, len(rows))
	for i := range rows {
		f, err := FromRow(rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ToRow flattens a feature into its parquet layout.
func ToRow(f feature.Feature) schema.FeatureRow {
	b := f.Common()
	row := schema.FeatureRow{
		RecordID:      b.RecordID,
		Mode:          f.Mode().String(),
		InputIDs:      int32s(b.InputIDs),
		AttentionMask: int32s(b.AttentionMask),
		TokenTypeIDs:  int32s(b.TokenTypeIDs),
		SpanStarts:    int32s(b.SpanStarts),
		SpanEnds:      int32s(b.SpanEnds),
		Quantities:    append([]float64(nil), b.Quantities...),
		Answer:        b.Answer,
	}
	for _, group := range f.Heights() {
		row.ChainSizes = append(row.ChainSizes, int32(len(group)))
		for _, l := range group {
			for _, v := range l.Ints() {
				row.Labels = append(row.Labels, int32(v))
			}
		}
	}
	return row
}

// FromRow rebuilds the feature variant stored in row.
func FromRow(row schema.FeatureRow) (feature.Feature, error) {
	mode, err := equation.ParseMode(row.Mode)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", row.RecordID, err)
	}
	if len(row.Labels)%4 != 0 {
		return nil, fmt.Errorf("record %s: label column length %d is not a multiple of 4", row.RecordID, len(row.Labels))
	}
	if len(row.SpanStarts) != len(row.SpanEnds) {
		return nil, fmt.Errorf("record %s: %d span starts but %d span ends", row.RecordID, len(row.SpanStarts), len(row.SpanEnds))
	}

	base := feature.Base{
		RecordID:      row.RecordID,
		InputIDs:      ints(row.InputIDs),
		AttentionMask: ints(row.AttentionMask),
		TokenTypeIDs:  ints(row.TokenTypeIDs),
		SpanStarts:    ints(row.SpanStarts),
		SpanEnds:      ints(row.SpanEnds),
		Quantities:    row.Quantities,
		Answer:        row.Answer,
	}
	base.SpanMask = make([]int, len(base.SpanStarts))
	for i := range base.SpanMask {
		base.SpanMask[i] = 1
	}

	groups := make([][]equation.Label, 0, len(row.ChainSizes))
	pos := 0
	for _, size := range row.ChainSizes {
		group := make([]equation.Label, 0, size)
		for j := 0; j < int(size); j++ {
			if pos+4 > len(row.Labels) {
				return nil, fmt.Errorf("record %s: chain sizes exceed %d labels", row.RecordID, len(row.Labels)/4)
			}
			l, err := equation.LabelFromInts([4]int{
				int(row.Labels[pos]), int(row.Labels[pos+1]), int(row.Labels[pos+2]), int(row.Labels[pos+3]),
			})
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", row.RecordID, err)
			}
			group = append(group, l)
			pos += 4
		}
		groups = append(groups, group)
	}
	if pos != len(row.Labels) {
		return nil, fmt.Errorf("record %s: %d labels not covered by chain sizes", row.RecordID, (len(row.Labels)-pos)/4)
	}
	return feature.New(mode, base, groups), nil
}

// LabelRows lists every label of every feature for the arrow label table.
func LabelRows(features []feature.Feature) []schema.LabelRow {
	var rows []schema.LabelRow
	for _, f := range features {
		step := 0
		for h, group := range f.Heights() {
			for _, l := range group {
				rows = append(rows, schema.LabelRow{
					RecordID: f.Common().RecordID,
					Height:   int32(h),
					Step:     int32(step),
					Low:      int32(l.Low),
					High:     int32(l.High),
					Op:       int32(l.Op),
					Final:    l.Final,
				})
				step++
			}
		}
	}
	return rows
}

// WriteLabels writes the arrow label table for features.
func WriteLabels(path string, features []feature.Feature) error {
	return schema.WriteLabelsToArrowIPC(path, LabelRows(features))
}

func int32s(v []int) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}

func ints(v []int32) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
