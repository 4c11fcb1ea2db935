package monitor

import (
	"fmt"
	"math"
	"strings"
)

type compareFunc func(value, threshold float64) bool

// equalityTolerance absorbs float noise for "==" on computed metrics.
const equalityTolerance = 1e-9

var operators = map[string]compareFunc{
	"<":  func(v, t float64) bool { return v < t },
	"<=": func(v, t float64) bool { return v <= t },
	">":  func(v, t float64) bool { return v > t },
	">=": func(v, t float64) bool { return v >= t },
	"==": func(v, t float64) bool { return math.Abs(v-t) <= equalityTolerance },
}

func lookupOperator(op string) (compareFunc, error) {
	fn, ok := operators[strings.TrimSpace(op)]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", op)
	}
	return fn, nil
}

// EvaluateCondition applies op to value and threshold.
func EvaluateCondition(op string, value, threshold float64) (bool, error) {
	fn, err := lookupOperator(op)
	if err != nil {
		return false, err
	}
	return fn(value, threshold), nil
}
