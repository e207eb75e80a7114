package collate

import (
	"github.com/pdevine/tensor"
)

// Tensors returns int64 views of every batch field keyed by name.
func (b *Batch) Tensors() map[string]*tensor.Dense {
	out := b.Inputs.tensors()
	rows := 0
	if len(b.Labels) > 0 {
		rows = len(b.Labels[0])
	}
	labels := make([]int64, 0, len(b.Labels)*rows*4)
	for _, feat := range b.Labels {
		for _, row := range feat {
			for _, v := range row {
				labels = append(labels, int64(v))
			}
		}
	}
	out["labels"] = tensor.New(tensor.WithShape(len(b.Labels), rows, 4), tensor.WithBacking(labels))
	out["label_mask"] = matrix(b.LabelMask)
	return out
}

// Tensor returns the (B, H, K, NumOperators, 2) target view.
func (d *DenseBatch) Tensor() *tensor.Dense {
	return tensor.New(tensor.WithShape(d.Shape()...), tensor.WithBacking(d.Targets))
}

// Tensors returns the padded inputs plus height and combination masks.
func (d *DenseBatch) Tensors() map[string]*tensor.Dense {
	out := d.Inputs.tensors()
	out["labels"] = d.Tensor()
	out["label_mask"] = matrix(d.LabelHeightMask)
	out["combination_mask"] = matrix(d.CombinationMask)
	return out
}

func (in Inputs) tensors() map[string]*tensor.Dense {
	return map[string]*tensor.Dense{
		"input_ids":      matrix(in.InputIDs),
		"attention_mask": matrix(in.AttentionMask),
		"token_type_ids": matrix(in.TokenTypeIDs),
		"span_starts":    matrix(in.SpanStarts),
		"span_ends":      matrix(in.SpanEnds),
		"span_mask":      matrix(in.SpanMask),
	}
}

// matrix flattens rectangular rows into a (rows, cols) tensor.
func matrix(rows [][]int) *tensor.Dense {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	data := make([]int64, 0, len(rows)*cols)
	for _, r := range rows {
		for _, v := range r {
			data = append(data, int64(v))
		}
	}
	return tensor.New(tensor.WithShape(len(rows), cols), tensor.WithBacking(data))
}
