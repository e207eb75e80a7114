package feature

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/schema"
	"github.com/lab/mwp-encoder/pkg/tokenizer"
)

// Policy decides what happens to an example whose labels do not reproduce its answer.
type Policy int

const (
	// PolicyWarn keeps the example and flags the mismatch.
	PolicyWarn Policy = iota
	// PolicyStrict discards the example.
	PolicyStrict
	// PolicyOff skips verification.
	PolicyOff
)

func (p Policy) String() string {
	switch p {
	case PolicyWarn:
		return "warn"
	case PolicyStrict:
		return "strict"
	case PolicyOff:
		return "off"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return PolicyWarn, nil
	case "strict":
		return PolicyStrict, nil
	case "off":
		return PolicyOff, nil
	}
	return 0, fmt.Errorf("unknown verification policy %q", s)
}

// Reason tells why a record was discarded. ReasonKept means it was not.
type Reason int

const (
	ReasonKept Reason = iota
	ReasonIllegal
	ReasonStepFiltered
	ReasonEmptyEquation
	ReasonTokenization
	ReasonDegenerate
	ReasonResolution
	ReasonTooLong
	ReasonVerification
)

// Reasons lists every discard reason in report order.
func Reasons() []Reason {
	return []Reason{
		ReasonIllegal, ReasonStepFiltered, ReasonEmptyEquation, ReasonTokenization,
		ReasonDegenerate, ReasonResolution, ReasonTooLong, ReasonVerification,
	}
}

func (r Reason) String() string {
	switch r {
	case ReasonKept:
		return "kept"
	case ReasonIllegal:
		return "illegal"
	case ReasonStepFiltered:
		return "step_filtered"
	case ReasonEmptyEquation:
		return "empty_equation"
	case ReasonTokenization:
		return "tokenization"
	case ReasonDegenerate:
		return "degenerate"
	case ReasonResolution:
		return "resolution"
	case ReasonTooLong:
		return "too_long"
	case ReasonVerification:
		return "verification"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Result is the outcome of assembling one record.
type Result struct {
	Feature Feature
	Reason  Reason
	Err     error
	// Mismatch is set when verification ran and failed but the example was kept.
	Mismatch bool
	Value    float64
	// DuplicateSteps is set when duplicate step checking is on and found a repeated step.
	DuplicateSteps bool
}

func (r Result) Kept() bool { return r.Reason == ReasonKept }

// DefaultMaxTestSteps is the longest label sequence kept in a test split.
const DefaultMaxTestSteps = 10

// Options configures an Assembler.
type Options struct {
	Format schema.Format
	Marker string
	// MarkerPattern is the token sequence the marker is split into. Derived from the
	// tokenizer when empty.
	MarkerPattern []string
	// Collapse replaces every marker occurrence with NewToken.
	Collapse bool
	NewToken string

	Policy    Policy
	Tolerance equation.Tolerance

	// TestSplit enables the MaxTestSteps filter.
	TestSplit    bool
	MaxTestSteps int
	StepFilter   []int

	CheckDuplicateSteps bool
}

// Assembler turns records into features. It is safe for concurrent use once built.
type Assembler struct {
	tok       tokenizer.Tokenizer
	labeler   *equation.Labeler
	constants []float64
	opts      Options
	newID     int
	filtered  map[int]bool
}

// NewAssembler prepares an assembler. When collapsing is enabled the new token is
// registered with tokenizers that support it and must map to a single id.
func NewAssembler(tok tokenizer.Tokenizer, labeler *equation.Labeler, opts Options) (*Assembler, error) {
	if opts.Format == "" {
		opts.Format = schema.FormatMath23k
	}
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.Tolerance == (equation.Tolerance{}) {
		opts.Tolerance = equation.DefaultTolerance
	}
	if opts.MaxTestSteps <= 0 {
		opts.MaxTestSteps = DefaultMaxTestSteps
	}
	if len(opts.MarkerPattern) == 0 {
		pattern, err := DeriveMarkerPattern(tok, opts.Marker)
		if err != nil {
			return nil, fmt.Errorf("failed to derive marker pattern: %w", err)
		}
		opts.MarkerPattern = pattern
	}

	a := &Assembler{
		tok:       tok,
		labeler:   labeler,
		constants: labeler.Space.Constants().Values(),
		opts:      opts,
		newID:     -1,
		filtered:  make(map[int]bool, len(opts.StepFilter)),
	}
	for _, n := range opts.StepFilter {
		a.filtered[n] = true
	}

	if opts.Collapse {
		if opts.NewToken == "" {
			a.opts.NewToken = DefaultNewToken
		}
		if ext, ok := tok.(tokenizer.Extender); ok {
			ext.AddTokens([]string{a.opts.NewToken})
		}
		id := tok.ConvertTokensToIDs([]string{a.opts.NewToken})[0]
		if id < 0 || tok.ConvertIDsToTokens([]int{id})[0] != a.opts.NewToken {
			return nil, fmt.Errorf("tokenizer cannot represent %q as a single token", a.opts.NewToken)
		}
		a.newID = id
	}
	return a, nil
}

func (a *Assembler) Mode() equation.Mode { return a.labeler.Mode() }

func (a *Assembler) Options() Options { return a.opts }

// Assemble runs the full record pipeline. It never panics on bad data: every failure is
// reported as a discard reason.
func (a *Assembler) Assemble(rec schema.Record) Result {
	if !rec.IsLegal(a.opts.Format) {
		return Result{Reason: ReasonIllegal}
	}
	if len(a.filtered) > 0 {
		steps := rec.NumSteps
		if steps == 0 {
			steps = rec.NumEquationSteps()
		}
		if a.filtered[steps] {
			return Result{Reason: ReasonStepFiltered}
		}
	}

	base, err := a.encode(rec)
	if err != nil {
		return Result{Reason: ReasonTokenization, Err: err}
	}

	if rec.NumEquationSteps() == 0 {
		return Result{Reason: ReasonEmptyEquation}
	}

	var res Result
	if a.opts.CheckDuplicateSteps {
		res.DuplicateSteps = hasDuplicateSteps(rec)
	}

	groups, err := a.label(rec)
	if err != nil {
		res.Err = err
		res.Reason = ReasonResolution
		if errors.Is(err, equation.ErrDegenerate) {
			res.Reason = ReasonDegenerate
		}
		return res
	}
	labels := equation.Flatten(groups)
	if len(labels) == 0 {
		res.Reason = ReasonDegenerate
		return res
	}
	if a.opts.TestSplit && len(labels) > a.opts.MaxTestSteps {
		res.Reason = ReasonTooLong
		return res
	}

	if a.opts.Policy != PolicyOff {
		v, err := equation.Replay(a.Mode(), groups, rec.NumList, a.constants)
		res.Value = v
		if err != nil || !a.opts.Tolerance.Matches(v, rec.Answer) {
			if err == nil {
				err = fmt.Errorf("value %g does not match answer %g", v, rec.Answer)
			}
			res.Err = err
			if a.opts.Policy == PolicyStrict {
				res.Reason = ReasonVerification
				return res
			}
			res.Mismatch = true
		}
	}

	res.Feature = New(a.Mode(), base, groups)
	return res
}

func (a *Assembler) encode(rec schema.Record) (Base, error) {
	text := Preprocess(rec.Source(a.opts.Format), a.opts.Format, a.opts.Marker)
	enc, err := a.tok.EncodePlus(text)
	if err != nil {
		return Base{}, err
	}
	ids, mask := enc.InputIDs, enc.AttentionMask
	tokens := a.tok.ConvertIDsToTokens(ids)

	var starts, ends []int
	if a.opts.Collapse {
		var collapsed []string
		collapsed, starts, ends = CollapseSpans(tokens, a.opts.MarkerPattern, a.opts.NewToken)
		if len(starts) > 0 {
			ids = a.rebuildIDs(ids, tokens, collapsed)
			mask = ones(len(ids))
		}
	} else {
		starts, ends = FindSpans(tokens, a.opts.MarkerPattern)
	}

	return Base{
		RecordID:      rec.ID,
		InputIDs:      ids,
		AttentionMask: mask,
		TokenTypeIDs:  make([]int, len(ids)),
		SpanStarts:    starts,
		SpanEnds:      ends,
		SpanMask:      ones(len(starts)),
		Quantities:    rec.NumList,
		Answer:        rec.Answer,
	}, nil
}

// rebuildIDs re-derives ids for the collapsed token sequence, keeping the original id of
// every token that was not part of a marker.
func (a *Assembler) rebuildIDs(ids []int, tokens, collapsed []string) []int {
	out := make([]int, 0, len(collapsed))
	k := 0
	pattern := a.opts.MarkerPattern
	for _, tok := range collapsed {
		if tok == a.opts.NewToken && k+len(pattern) <= len(tokens) && matchAt(tokens, pattern, k) {
			out = append(out, a.newID)
			k += len(pattern)
			continue
		}
		out = append(out, ids[k])
		k++
	}
	return out
}

func (a *Assembler) label(rec schema.Record) ([][]equation.Label, error) {
	if a.Mode() == equation.ModeParallel {
		chains := rec.Chains
		if !rec.IsParallel() {
			chains = []equation.Layer{rec.Layer}
		}
		return a.labeler.LabelParallel(chains)
	}
	if rec.IsParallel() {
		return nil, equation.NewError(equation.ErrCodeResolution, "parallel equation in a single-chain labeling mode")
	}
	labels, err := a.labeler.Label(rec.Layer)
	if err != nil {
		return nil, err
	}
	return [][]equation.Label{labels}, nil
}

func hasDuplicateSteps(rec schema.Record) bool {
	seen := make(map[string]bool)
	check := func(l equation.Layer) bool {
		for _, s := range l {
			key := schema.StepKey(s)
			if seen[key] {
				return true
			}
			seen[key] = true
		}
		return false
	}
	if check(rec.Layer) {
		return true
	}
	for _, c := range rec.Chains {
		if check(c) {
			return true
		}
	}
	return false
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
