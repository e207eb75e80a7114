package schema

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/lab/mwp-encoder/pkg/equation"
)

// Format names the two record layouts found in the datasets.
type Format string

const (
	// FormatMath23k records carry text with temp_<x> placeholders and type_str legality.
	FormatMath23k Format = "math23k"
	// FormatComplex records carry mapped_text with "@ <x>" placeholders, a legal flag and a
	// step count.
	FormatComplex Format = "complex"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatMath23k:
		return FormatMath23k, nil
	case FormatComplex:
		return FormatComplex, nil
	}
	return "", fmt.Errorf("unknown record format %q", s)
}

// DetectFormat guesses the format from a data file path. Directories count, so files
// under a complex/ directory are complex records.
func DetectFormat(path string) Format {
	if pathContains(path, "complex") {
		return FormatComplex
	}
	return FormatMath23k
}

// IsTestSplit reports whether path names a test split file.
func IsTestSplit(path string) bool { return pathContains(path, "test") }

// IsDeduplicated reports whether path names a de-duplicated dataset file.
func IsDeduplicated(path string) bool { return pathContains(path, "nodup") }

func pathContains(path, word string) bool {
	return strings.Contains(strings.ToLower(filepath.ToSlash(path)), word)
}

// Record is one raw problem as read from a dataset file.
type Record struct {
	ID             string    `json:"id"`
	Text           string    `json:"text,omitempty"`
	TypeStr        string    `json:"type_str,omitempty"`
	MappedText     string    `json:"mapped_text,omitempty"`
	Legal          bool      `json:"legal"`
	Answer         float64   `json:"answer"`
	NumList        []float64 `json:"num_list"`
	NumSteps       int       `json:"num_steps,omitempty"`
	MappedEquation string    `json:"mapped_equation,omitempty"`

	// Exactly one of Layer and Chains is set for a non-empty equation.
	Layer  equation.Layer   `json:"-"`
	Chains []equation.Layer `json:"-"`
}

// rawRecord mirrors Record with the equation left undecoded.
type rawRecord struct {
	ID             string        `json:"id"`
	Text           string        `json:"text"`
	TypeStr        string        `json:"type_str"`
	MappedText     string        `json:"mapped_text"`
	Legal          bool          `json:"legal"`
	EquationLayer  []interface{} `json:"equation_layer"`
	Answer         float64       `json:"answer"`
	NumList        []float64     `json:"num_list"`
	NumSteps       int           `json:"num_steps"`
	MappedEquation string        `json:"mapped_equation"`
}

// DecodeRecord decodes a generic JSON object. Numbers given as strings and ids given as
// numbers are accepted.
func DecodeRecord(m map[string]interface{}) (Record, error) {
	var raw rawRecord
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           &raw,
	})
	if err != nil {
		return Record{}, err
	}
	if err := dec.Decode(m); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}

	rec := Record{
		ID:             raw.ID,
		Text:           raw.Text,
		TypeStr:        raw.TypeStr,
		MappedText:     raw.MappedText,
		Legal:          raw.Legal,
		Answer:         raw.Answer,
		NumList:        raw.NumList,
		NumSteps:       raw.NumSteps,
		MappedEquation: raw.MappedEquation,
	}
	if err := rec.setEquation(raw.EquationLayer); err != nil {
		return Record{}, fmt.Errorf("record %s: %w", raw.ID, err)
	}
	return rec, nil
}

// setEquation detects the nesting depth: a list of steps is a single layer, a list of lists
// of steps is a set of parallel chains.
func (r *Record) setEquation(layer []interface{}) error {
	if len(layer) == 0 {
		return nil
	}
	first, ok := layer[0].([]interface{})
	if !ok {
		return fmt.Errorf("equation_layer entries must be lists")
	}
	if len(first) > 0 {
		if _, nested := first[0].([]interface{}); nested {
			chains := make([]equation.Layer, 0, len(layer))
			for i, c := range layer {
				steps, ok := c.([]interface{})
				if !ok {
					return fmt.Errorf("chain %d is not a list", i)
				}
				l, err := decodeSteps(steps)
				if err != nil {
					return fmt.Errorf("chain %d: %w", i, err)
				}
				chains = append(chains, l)
			}
			r.Chains = chains
			return nil
		}
	}
	l, err := decodeSteps(layer)
	if err != nil {
		return err
	}
	r.Layer = l
	return nil
}

func decodeSteps(items []interface{}) (equation.Layer, error) {
	layer := make(equation.Layer, 0, len(items))
	for i, item := range items {
		parts, ok := item.([]interface{})
		if !ok || len(parts) != 3 {
			return nil, fmt.Errorf("step %d must have three elements", i)
		}
		layer = append(layer, equation.Step{
			Left:  fmt.Sprint(parts[0]),
			Right: fmt.Sprint(parts[1]),
			Op:    fmt.Sprint(parts[2]),
		})
	}
	return layer, nil
}

// IsParallel reports whether the equation is a set of chains.
func (r Record) IsParallel() bool { return r.Chains != nil }

// NumEquationSteps counts steps across all chains.
func (r Record) NumEquationSteps() int {
	n := len(r.Layer)
	for _, c := range r.Chains {
		n += len(c)
	}
	return n
}

func (r Record) IsLegal(format Format) bool {
	if format == FormatComplex {
		return r.Legal
	}
	return r.TypeStr == "legal"
}

// Source returns the text that carries the quantity placeholders for format.
func (r Record) Source(format Format) string {
	if format == FormatComplex {
		return r.MappedText
	}
	return r.Text
}

// StepKey joins a step the way duplicate detection compares them.
func StepKey(s equation.Step) string {
	return s.Left + " " + s.Right + " " + s.Op
}
