// Package calc is the expression evaluator served by the feval server.
//
// It understands numbers (including exponents), the operators + - * / % ^
// with the usual precedence (^ binds tightest and is right associative),
// parentheses, unary signs, a small set of functions (abs, sqrt, floor,
// ceil, round, ln, sin, cos, min, max) and variables:
//
//	c := calc.New()
//	c.Evaluate("x = 2^10")  // "", false, nil
//	c.Evaluate("x / 4")     // "256", true, nil
//
// All arithmetic is done in float64; integral results are printed without a
// fraction.
package calc
