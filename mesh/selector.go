package mesh

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/PaesslerAG/gval"
)

// SelectAll is the predicate that selects every element
const SelectAll = "all[]"

var selectorLanguage = gval.Full(
	gval.Function("abs", math.Abs),
	gval.Function("sqrt", math.Sqrt),
	gval.Function("between", func(v, lo, hi float64) bool {
		return v >= lo && v <= hi
	}),
)

// Selector evaluates an element selection predicate. Expressions see the
// element centroid as x, y, z, its index as id and its partition as part,
// e.g. "x < 0.5 && between(y, 0.2, 0.8)".
type Selector struct {
	expr string
	all  bool
	eval gval.Evaluable
}

// NewSelector parses expr. The empty string and "all[]" select everything.
func NewSelector(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == SelectAll {
		return &Selector{expr: SelectAll, all: true}, nil
	}
	eval, err := selectorLanguage.NewEvaluable(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid selection %q: %w", expr, err)
	}
	return &Selector{expr: expr, eval: eval}, nil
}

func (s *Selector) String() string { return s.expr }

// Match reports whether the element with the given centroid, index and
// partition is selected.
func (s *Selector) Match(centroid [3]float64, id, part int) (bool, error) {
	if s.all {
		return true, nil
	}
	vars := map[string]interface{}{
		"x":    centroid[0],
		"y":    centroid[1],
		"z":    centroid[2],
		"id":   float64(id),
		"part": float64(part),
	}
	ok, err := s.eval.EvalBool(context.Background(), vars)
	if err != nil {
		return false, fmt.Errorf("evaluating %q for element %d: %w", s.expr, id, err)
	}
	return ok, nil
}
