package collate

import (
	"math"
	"math/rand"

	"github.com/lab/mwp-encoder/pkg/feature"
)

// Source is anything that exposes features by position.
type Source interface {
	Len() int
	At(i int) feature.Feature
}

// Loader walks a source in fixed-size index windows.
type Loader struct {
	Source    Source
	BatchSize int
	Shuffle   bool
	Seed      int64
	DropLast  bool
}

// NewLoader creates a loader over src. A non-positive batch size becomes 1.
func NewLoader(src Source, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Loader{Source: src, BatchSize: batchSize}
}

// Batches returns the index windows for one epoch. The same seed yields the same order.
func (l *Loader) Batches() [][]int {
	n := l.Source.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.Shuffle {
		r := rand.New(rand.NewSource(l.Seed))
		r.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	size := l.size()
	var batches [][]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		if l.DropLast && end-start < size {
			break
		}
		batches = append(batches, order[start:end:end])
	}
	return batches
}

// EstimateBatchCount returns len(Batches()) without building them.
func (l *Loader) EstimateBatchCount() int {
	n, size := l.Source.Len(), l.size()
	if l.DropLast {
		return n / size
	}
	return int(math.Ceil(float64(n) / float64(size)))
}

// Features resolves one index window.
func (l *Loader) Features(indices []int) []feature.Feature {
	out := make([]feature.Feature, len(indices))
	for i, idx := range indices {
		out[i] = l.Source.At(idx)
	}
	return out
}

func (l *Loader) size() int {
	if l.BatchSize <= 0 {
		return 1
	}
	return l.BatchSize
}
