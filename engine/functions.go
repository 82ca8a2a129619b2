package engine

import (
	"math"
	"sort"
)

// Func is a unary function applied to the parsed input buffer.
// Returning ok == false leaves the engine state untouched.
type Func func(x float64) (result float64, ok bool)

// Total adapts a plain float function into a Func that always applies.
func Total(f func(float64) float64) Func {
	return func(x float64) (float64, bool) {
		return f(x), true
	}
}

// MaxFactorial is the largest n whose factorial fits in an int64.
const MaxFactorial = 20

const degToRad = math.Pi / 180

// Built-in function names.
const (
	FuncSqrt       = "sqrt"
	FuncSquare     = "square"
	FuncReciprocal = "reciprocal"
	FuncPercent    = "percent"
	FuncFactorial  = "factorial"
	FuncSin        = "sin"
	FuncCos        = "cos"
	FuncTan        = "tan"
	FuncLog10      = "log10"
	FuncLn         = "ln"
	FuncNegate     = "negate"
)

var builtins = map[string]Func{
	FuncSqrt:       Total(math.Sqrt),
	FuncSquare:     Total(func(x float64) float64 { return x * x }),
	FuncReciprocal: reciprocal,
	FuncPercent:    Total(func(x float64) float64 { return x / 100 }),
	FuncFactorial:  Total(factorial),
	FuncSin:        Total(func(x float64) float64 { return math.Sin(x * degToRad) }),
	FuncCos:        Total(func(x float64) float64 { return math.Cos(x * degToRad) }),
	FuncTan:        Total(func(x float64) float64 { return math.Tan(x * degToRad) }),
	FuncLog10:      Total(math.Log10),
	FuncLn:         Total(math.Log),
	FuncNegate:     Total(func(x float64) float64 { return -x }),
}

// reciprocal does nothing for an exact zero instead of showing an error.
func reciprocal(x float64) (float64, bool) {
	if x == 0 {
		return 0, false
	}
	return 1 / x, true
}

// factorial truncates x toward zero. Inputs below zero or above MaxFactorial
// return NaN, which the display shows as "Error".
func factorial(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	n := math.Trunc(x)
	if n < 0 || n > MaxFactorial {
		return math.NaN()
	}
	var result int64 = 1
	for i := int64(2); i <= int64(n); i++ {
		result *= i
	}
	return float64(result)
}

// IsBuiltin reports whether name is one of the built-in functions.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// BuiltinNames returns the built-in function names in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
