// Package join combines cleaned datasets with inner joins and reports how
// many rows each step lost.
package join

import (
	"fmt"

	"hretl/internal/table"
)

// Suffixes applied to non-key columns present on both sides of a join.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// Stats describes one join step.
type Stats struct {
	Step string

	Left  int
	Right int
	Out   int

	// LeftUnmatched and RightUnmatched count rows that found no partner,
	// null keys included.
	LeftUnmatched  int
	RightUnmatched int
}

// Inner joins left and right where left[leftKey] equals right[rightKey].
//
// Keys are compared through table.NormalizeKey, so int64(7), 7.0 and "7"
// match while missing keys never do. Output rows follow left order and, for
// each left row, the order of its right matches; duplicate keys multiply.
// When both keys share a name the key appears once, taken from left. Other
// columns present on both sides get the _x and _y suffixes. The inputs are
// not modified.
func Inner(left, right *table.Table, leftKey, rightKey string) (*table.Table, Stats, error) {
	st := Stats{Step: right.Name, Left: left.Len(), Right: right.Len()}

	lk, ok := left.Column(leftKey)
	if !ok {
		return nil, st, fmt.Errorf("join %s: left %s: %w: %s", right.Name, left.Name, table.ErrColumnNotFound, leftKey)
	}
	rk, ok := right.Column(rightKey)
	if !ok {
		return nil, st, fmt.Errorf("join %s: right %s: %w: %s", right.Name, right.Name, table.ErrColumnNotFound, rightKey)
	}

	index := make(map[string][]int, len(rk.Values))
	for i, v := range rk.Values {
		if k, ok := table.NormalizeKey(v); ok {
			index[k] = append(index[k], i)
		}
	}

	var li, ri []int
	rightHit := make([]bool, len(rk.Values))
	for i, v := range lk.Values {
		k, ok := table.NormalizeKey(v)
		if !ok {
			st.LeftUnmatched++
			continue
		}
		matches := index[k]
		if len(matches) == 0 {
			st.LeftUnmatched++
			continue
		}
		for _, j := range matches {
			li = append(li, i)
			ri = append(ri, j)
			rightHit[j] = true
		}
	}
	for _, hit := range rightHit {
		if !hit {
			st.RightUnmatched++
		}
	}
	st.Out = len(li)

	sharedKey := leftKey == rightKey
	leftNames := make(map[string]bool, left.Width())
	for _, c := range left.Columns {
		leftNames[c.Name] = true
	}
	rightNames := make(map[string]bool, right.Width())
	for _, c := range right.Columns {
		if sharedKey && c.Name == rightKey {
			continue
		}
		rightNames[c.Name] = true
	}

	out := table.New(left.Name)
	for _, c := range left.Columns {
		name := c.Name
		if rightNames[name] && !(sharedKey && name == leftKey) {
			name += LeftSuffix
		}
		if err := out.AddColumn(take(c, name, li)); err != nil {
			return nil, st, fmt.Errorf("join %s: %w", right.Name, err)
		}
	}
	for _, c := range right.Columns {
		if sharedKey && c.Name == rightKey {
			continue
		}
		name := c.Name
		if leftNames[name] {
			name += RightSuffix
		}
		if err := out.AddColumn(take(c, name, ri)); err != nil {
			return nil, st, fmt.Errorf("join %s: %w", right.Name, err)
		}
	}
	return out, st, nil
}

func take(c *table.Column, name string, idx []int) *table.Column {
	vals := make([]any, len(idx))
	for i, j := range idx {
		vals[i] = c.Values[j]
	}
	return &table.Column{Name: name, Type: c.Type, Values: vals}
}
