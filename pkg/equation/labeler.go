package equation

import "strings"

// Step is one raw equation step: left reference, right reference and operator symbol.
type Step struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	Op    string `json:"op"`
}

// Layer is an ordered list of steps. Parallel equations are a list of layers, one per chain.
type Layer []Step

// Labeler turns raw equation layers into canonical labels using one index space.
type Labeler struct {
	Space IndexSpace
	// AllowReplacement keeps steps whose two operands are the same reference.
	AllowReplacement bool
}

func NewLabeler(space IndexSpace, allowReplacement bool) *Labeler {
	return &Labeler{Space: space, AllowReplacement: allowReplacement}
}

func (l *Labeler) Mode() Mode { return l.Space.Mode() }

// Label encodes a flat or incremental layer. The last label carries the final flag.
func (l *Labeler) Label(layer Layer) ([]Label, error) {
	if l.Space.Mode() == ModeParallel {
		return nil, errorf(ErrResolution, "parallel space requires LabelParallel")
	}
	labels := make([]Label, 0, len(layer))
	for i, step := range layer {
		label, err := l.labelStep(step, Cursor{Step: i}, i == len(layer)-1)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// LabelParallel encodes one label group per chain. Only the last step of the last chain is
// final.
func (l *Labeler) LabelParallel(chains []Layer) ([][]Label, error) {
	if l.Space.Mode() != ModeParallel {
		return nil, errorf(ErrResolution, "%s space cannot label parallel chains", l.Space.Mode())
	}
	offsets := make([]int, 1, len(chains)+1)
	out := make([][]Label, 0, len(chains))
	for c, chain := range chains {
		group := make([]Label, 0, len(chain))
		for i, step := range chain {
			final := c == len(chains)-1 && i == len(chain)-1
			label, err := l.labelStep(step, Cursor{Chain: c, Step: i, Offsets: offsets}, final)
			if err != nil {
				return nil, err
			}
			group = append(group, label)
		}
		out = append(out, group)
		offsets = append(offsets, offsets[len(offsets)-1]+len(chain))
	}
	return out, nil
}

func (l *Labeler) labelStep(step Step, cur Cursor, final bool) (Label, error) {
	left, right := strings.TrimSpace(step.Left), strings.TrimSpace(step.Right)
	if left == right && !l.AllowReplacement {
		return Label{}, errorf(ErrDegenerate, "operand %q used twice", left)
	}
	op, err := ParseOperator(strings.TrimSpace(step.Op))
	if err != nil {
		return Label{}, err
	}
	constants := l.Space.Constants()
	lop, err := ParseOperand(left, constants)
	if err != nil {
		return Label{}, err
	}
	rop, err := ParseOperand(right, constants)
	if err != nil {
		return Label{}, err
	}
	li, err := l.Space.Resolve(lop, Left, cur)
	if err != nil {
		return Label{}, err
	}
	ri, err := l.Space.Resolve(rop, Right, cur)
	if err != nil {
		return Label{}, err
	}
	return Canonicalize(li, ri, op, final), nil
}
