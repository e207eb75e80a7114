package schema

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/ipc"
	"github.com/apache/arrow/go/arrow/memory"
)

// GetLabelArrowSchema returns the Arrow schema for LabelRow
func GetLabelArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "record_id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "height", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "step", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "low", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "high", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "op", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "final", Type: arrow.FixedWidthTypes.Boolean, Nullable: false},
	}, nil)
}

// WriteLabelsToArrowIPC writes the label table to an Arrow IPC stream file. Closing the
// writer emits the end-of-stream marker, so its error is returned too.
func WriteLabelsToArrowIPC(filePath string, rows []LabelRow) (err error) {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", filePath, cerr)
		}
	}()

	schema := GetLabelArrowSchema()
	w := ipc.NewWriter(file, ipc.WithSchema(schema))

	batch := labelsToArrowBatch(schema, rows, memory.NewGoAllocator())
	defer batch.Release()

	if err := w.Write(batch); err != nil {
		w.Close()
		return fmt.Errorf("failed to write label batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish arrow stream: %w", err)
	}
	return nil
}

func labelsToArrowBatch(schema *arrow.Schema, rows []LabelRow, mem memory.Allocator) array.Record {
	idB := array.NewStringBuilder(mem)
	defer idB.Release()
	ints := make([]*array.Int32Builder, 5)
	for i := range ints {
		ints[i] = array.NewInt32Builder(mem)
		defer ints[i].Release()
	}
	finalB := array.NewBooleanBuilder(mem)
	defer finalB.Release()

	for _, r := range rows {
		idB.Append(r.RecordID)
		ints[0].Append(r.Height)
		ints[1].Append(r.Step)
		ints[2].Append(r.Low)
		ints[3].Append(r.High)
		ints[4].Append(r.Op)
		finalB.Append(r.Final)
	}

	cols := []array.Interface{idB.NewArray()}
	for _, b := range ints {
		cols = append(cols, b.NewArray())
	}
	cols = append(cols, finalB.NewArray())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecord(schema, cols, int64(len(rows)))
}

// ReadLabelsFromArrowIPC reads the label table from an Arrow IPC stream file
func ReadLabelsFromArrowIPC(filePath string) ([]LabelRow, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r, err := ipc.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer r.Release()

	var rows []LabelRow
	for r.Next() {
		batch := r.Record()
		if batch.NumCols() != 7 {
			return nil, fmt.Errorf("label table has %d columns, want 7", batch.NumCols())
		}
		ids := batch.Column(0).(*array.String)
		height := batch.Column(1).(*array.Int32)
		step := batch.Column(2).(*array.Int32)
		low := batch.Column(3).(*array.Int32)
		high := batch.Column(4).(*array.Int32)
		op := batch.Column(5).(*array.Int32)
		final := batch.Column(6).(*array.Boolean)
		for i := 0; i < int(batch.NumRows()); i++ {
			rows = append(rows, LabelRow{
				RecordID: ids.Value(i),
				Height:   height.Value(i),
				Step:     step.Value(i),
				Low:      low.Value(i),
				High:     high.Value(i),
				Op:       op.Value(i),
				Final:    final.Value(i),
			})
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
