package equation

import (
	"fmt"
	"sort"
)

// ConstantTable holds the named numeric literals shared by every record of a dataset.
// It is immutable after construction and safe for concurrent use.
type ConstantTable struct {
	ids    map[string]int
	names  []string
	values []float64
}

// NewConstantTable validates that ids form 0..n-1 and that every id has a value.
// A nil or empty mapping yields an empty table.
func NewConstantTable(ids map[string]int, values []float64) (*ConstantTable, error) {
	ct := &ConstantTable{
		ids:    make(map[string]int, len(ids)),
		names:  make([]string, len(ids)),
		values: make([]float64, len(ids)),
	}
	if len(values) < len(ids) {
		return nil, errorf(ErrConstantTable, "%d names but %d values", len(ids), len(values))
	}
	for name, id := range ids {
		if id < 0 || id >= len(ids) {
			return nil, errorf(ErrConstantTable, "constant %q has id %d outside [0,%d)", name, id, len(ids))
		}
		if ct.names[id] != "" {
			return nil, errorf(ErrConstantTable, "constants %q and %q share id %d", ct.names[id], name, id)
		}
		ct.ids[name] = id
		ct.names[id] = name
		ct.values[id] = values[id]
	}
	return ct, nil
}

// MustConstantTable panics on an invalid table. Intended for tests and static tables.
func MustConstantTable(ids map[string]int, values []float64) *ConstantTable {
	ct, err := NewConstantTable(ids, values)
	if err != nil {
		panic(err)
	}
	return ct
}

func (ct *ConstantTable) Len() int {
	if ct == nil {
		return 0
	}
	return len(ct.names)
}

// ID returns the constant id for name.
func (ct *ConstantTable) ID(name string) (int, bool) {
	if ct == nil {
		return 0, false
	}
	id, ok := ct.ids[name]
	return id, ok
}

func (ct *ConstantTable) Value(id int) (float64, error) {
	if id < 0 || id >= ct.Len() {
		return 0, errorf(ErrMissingOperand, "constant id %d", id)
	}
	return ct.values[id], nil
}

// Values returns a copy of the values in id order.
func (ct *ConstantTable) Values() []float64 {
	if ct == nil {
		return nil
	}
	return append([]float64(nil), ct.values...)
}

// Names returns the constant names in id order.
func (ct *ConstantTable) Names() []string {
	if ct == nil {
		return nil
	}
	return append([]string(nil), ct.names...)
}

func (ct *ConstantTable) String() string {
	names := ct.Names()
	sort.Strings(names)
	s := "{"
	for i, n := range names {
		if i > 0 {
			s += " "
		}
		id, _ := ct.ID(n)
		s += fmt.Sprintf("%s=%g", n, ct.values[id])
	}
	return s + "}"
}
