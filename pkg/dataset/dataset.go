// Package dataset builds immutable feature datasets from raw records.
package dataset

import (
	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
	"github.com/lab/mwp-encoder/pkg/schema"
)

// Dataset holds the kept features and the records they came from, in input order.
type Dataset struct {
	mode     equation.Mode
	features []feature.Feature
	records  []schema.Record
}

// New wraps already assembled features. records may be nil.
func New(mode equation.Mode, features []feature.Feature, records []schema.Record) *Dataset {
	return &Dataset{mode: mode, features: features, records: records}
}

func (d *Dataset) Mode() equation.Mode { return d.mode }

func (d *Dataset) Len() int { return len(d.features) }

func (d *Dataset) At(i int) feature.Feature { return d.features[i] }

// Features returns a copy of the feature list.
func (d *Dataset) Features() []feature.Feature {
	return append([]feature.Feature(nil), d.features...)
}

// Records returns the kept records.
func (d *Dataset) Records() []schema.Record {
	return append([]schema.Record(nil), d.records...)
}

// Subset returns the features at the given indices.
func (d *Dataset) Subset(indices []int) []feature.Feature {
	out := make([]feature.Feature, len(indices))
	for i, idx := range indices {
		out[i] = d.features[idx]
	}
	return out
}
