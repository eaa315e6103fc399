package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrSyntax          = errors.New("calc: syntax error")
	ErrUnknownVariable = errors.New("calc: unknown variable")
	ErrUnknownFunction = errors.New("calc: unknown function")
	ErrDivisionByZero  = errors.New("calc: division by zero")
	ErrNotANumber      = errors.New("calc: result is not a finite number")
)

// Calculator evaluates arithmetic expressions and keeps variables between
// calls. It is safe for concurrent use; evaluations are serialized.
type Calculator struct {
	mu   sync.Mutex
	vars map[string]float64
}

// New creates a calculator with the constants pi and e predefined
func New() *Calculator {
	return &Calculator{vars: map[string]float64{"pi": math.Pi, "e": math.E}}
}

// Evaluate evaluates one statement. A statement is either an expression or an
// assignment "name = expression". ok is false when the statement yields no
// value (assignments and blank input).
func (c *Calculator) Evaluate(input string) (result string, ok bool, err error) {
	if strings.TrimSpace(input) == "" {
		return "", false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := newParser(input, c.vars)
	if err != nil {
		return "", false, err
	}
	name, value, err := p.statement()
	if err != nil {
		return "", false, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", false, ErrNotANumber
	}

	if name != "" {
		c.vars[name] = value
		return "", false, nil
	}
	return Format(value), true, nil
}

// Variables returns the number of defined variables including the constants
func (c *Calculator) Variables() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vars)
}

// Evaluate evaluates input with a fresh calculator
func Evaluate(input string) (string, bool, error) {
	return New().Evaluate(input)
}

// Format renders integral values without a fraction and everything else in
// the shortest representation that parses back to the same value
func Format(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// --------------------------------------------------------------------------
// Functions
// --------------------------------------------------------------------------

type function struct {
	arity int // -1 for one or more arguments
	apply func(args []float64) float64
}

var functions = map[string]function{
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"round": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"ln":    {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"sin":   {1, func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":   {1, func(a []float64) float64 { return math.Cos(a[0]) }},
	"min": {-1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {-1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
}

func call(name string, args []float64) (float64, error) {
	f, ok := functions[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if (f.arity >= 0 && len(args) != f.arity) || len(args) == 0 {
		return 0, fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrSyntax, name, max(f.arity, 1), len(args))
	}
	return f.apply(args), nil
}
