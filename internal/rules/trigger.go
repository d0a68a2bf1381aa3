package rules

import (
	"fmt"
	"regexp"
	"strconv"
)

// Operator is a trigger comparison.
type Operator int

const (
	OpGreater Operator = iota
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpEqual
)

var operatorSymbols = map[string]Operator{
	">":  OpGreater,
	">=": OpGreaterEqual,
	"<":  OpLess,
	"<=": OpLessEqual,
	"==": OpEqual,
}

func (o Operator) String() string {
	switch o {
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpEqual:
		return "=="
	}
	return "?"
}

var triggerPattern = regexp.MustCompile(`^(\w+)\s*([><=]+)\s*(\d+(\.\d+)?)$`)

// Trigger is a pre-parsed "signal op threshold" expression.
type Trigger struct {
	Signal    string
	Op        Operator
	Threshold float64
}

// ParseTrigger parses expressions such as "bp_systolic > 130".
func ParseTrigger(expr string) (Trigger, error) {
	m := triggerPattern.FindStringSubmatch(expr)
	if m == nil {
		return Trigger{}, fmt.Errorf("trigger %q: does not match <signal> <op> <number>", expr)
	}
	op, ok := operatorSymbols[m[2]]
	if !ok {
		return Trigger{}, fmt.Errorf("trigger %q: unsupported operator %q", expr, m[2])
	}
	threshold, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Trigger{}, fmt.Errorf("trigger %q: invalid threshold: %w", expr, err)
	}
	return Trigger{Signal: m[1], Op: op, Threshold: threshold}, nil
}

// Eval reports whether the trigger holds for signals. An absent signal is false.
func (t Trigger) Eval(signals map[string]float64) bool {
	v, ok := signals[t.Signal]
	if !ok {
		return false
	}
	switch t.Op {
	case OpGreater:
		return v > t.Threshold
	case OpGreaterEqual:
		return v >= t.Threshold
	case OpLess:
		return v < t.Threshold
	case OpLessEqual:
		return v <= t.Threshold
	case OpEqual:
		return v == t.Threshold
	}
	return false
}

func (t Trigger) String() string {
	return fmt.Sprintf("%s %s %s", t.Signal, t.Op, strconv.FormatFloat(t.Threshold, 'f', -1, 64))
}
