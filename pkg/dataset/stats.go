package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/lab/mwp-encoder/pkg/feature"
)

// Stats aggregates the per-record outcomes of a build.
type Stats struct {
	Total             int
	Kept              int
	Discarded         map[feature.Reason]int
	Mismatches        int
	DuplicateWarnings int
	CacheHits         int
	MaxSteps          int

	steps *treemap.Map
}

func newStats() *Stats {
	return &Stats{
		Discarded: make(map[feature.Reason]int),
		steps:     treemap.NewWithIntComparator(),
	}
}

// StepCount is one bucket of the step-count histogram.
type StepCount struct {
	Steps int `json:"steps"`
	Count int `json:"count"`
}

func (s *Stats) add(res feature.Result) {
	s.Total++
	if res.DuplicateSteps {
		s.DuplicateWarnings++
	}
	if !res.Kept() {
		s.Discarded[res.Reason]++
		return
	}
	s.Kept++
	if res.Mismatch {
		s.Mismatches++
	}
	n := len(res.Feature.Labels())
	if n > s.MaxSteps {
		s.MaxSteps = n
	}
	count := 0
	if v, ok := s.steps.Get(n); ok {
		count = v.(int)
	}
	s.steps.Put(n, count+1)
}

// DiscardedTotal sums every discard reason.
func (s *Stats) DiscardedTotal() int {
	var n int
	for _, c := range s.Discarded {
		n += c
	}
	return n
}

// StepHistogram returns the kept examples per label count, ascending.
func (s *Stats) StepHistogram() []StepCount {
	out := make([]StepCount, 0, s.steps.Size())
	it := s.steps.Iterator()
	for it.Next() {
		out = append(out, StepCount{Steps: it.Key().(int), Count: it.Value().(int)})
	}
	return out
}

// Summary renders the stats as report lines.
func (s *Stats) Summary() []string {
	lines := []string{
		fmt.Sprintf("total records: %d, kept: %d, discarded: %d", s.Total, s.Kept, s.DiscardedTotal()),
	}
	for _, r := range feature.Reasons() {
		if n := s.Discarded[r]; n > 0 {
			lines = append(lines, fmt.Sprintf("  %s: %d", r, n))
		}
	}
	lines = append(lines,
		fmt.Sprintf("verification mismatches kept: %d", s.Mismatches),
		fmt.Sprintf("max num steps: %d", s.MaxSteps),
	)
	if s.DuplicateWarnings > 0 {
		lines = append(lines, fmt.Sprintf("records with duplicated steps: %d", s.DuplicateWarnings))
	}
	if s.CacheHits > 0 {
		lines = append(lines, fmt.Sprintf("cache hits: %d", s.CacheHits))
	}
	for _, b := range s.StepHistogram() {
		lines = append(lines, fmt.Sprintf("  steps=%d: %d", b.Steps, b.Count))
	}
	return lines
}

func (s *Stats) MarshalJSON() ([]byte, error) {
	discarded := make(map[string]int, len(s.Discarded))
	for r, n := range s.Discarded {
		discarded[r.String()] = n
	}
	return json.Marshal(struct {
		Total             int            `json:"total"`
		Kept              int            `json:"kept"`
		Discarded         map[string]int `json:"discarded"`
		Mismatches        int            `json:"mismatches"`
		DuplicateWarnings int            `json:"duplicate_warnings"`
		CacheHits         int            `json:"cache_hits"`
		MaxSteps          int            `json:"max_steps"`
		StepHistogram     []StepCount    `json:"step_histogram"`
	}{s.Total, s.Kept, discarded, s.Mismatches, s.DuplicateWarnings, s.CacheHits, s.MaxSteps, s.StepHistogram()})
}
