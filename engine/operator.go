package engine

import (
	"math"
	"strings"
)

// Operator is a pending binary operation.
type Operator uint8

const (
	None Operator = iota
	Add
	Sub
	Mul
	Div
	Pow
)

var operatorNames = [...]string{
	None: "none",
	Add:  "add",
	Sub:  "sub",
	Mul:  "mul",
	Div:  "div",
	Pow:  "pow",
}

var operatorSymbols = [...]string{
	None: "",
	Add:  "+",
	Sub:  "-",
	Mul:  "×",
	Div:  "÷",
	Pow:  "^",
}

func (op Operator) String() string {
	if int(op) < len(operatorNames) {
		return operatorNames[op]
	}
	return "invalid"
}

// Symbol returns the button label for op.
func (op Operator) Symbol() string {
	if int(op) < len(operatorSymbols) {
		return operatorSymbols[op]
	}
	return "?"
}

// Binary reports whether op is one of the five binary operators.
func (op Operator) Binary() bool {
	return op > None && op <= Pow
}

// ParseOperator accepts an operator name ("mul") or symbol ("×", "*", "/").
func ParseOperator(s string) (Operator, bool) {
	switch strings.ToLower(s) {
	case "add", "+":
		return Add, true
	case "sub", "-", "−":
		return Sub, true
	case "mul", "×", "*", "x":
		return Mul, true
	case "div", "÷", "/":
		return Div, true
	case "pow", "^", "x^y":
		return Pow, true
	}
	return None, false
}

// apply evaluates lhs op rhs. Division by zero yields NaN.
func (op Operator) apply(lhs, rhs float64) float64 {
	switch op {
	case Add:
		return lhs + rhs
	case Sub:
		return lhs - rhs
	case Mul:
		return lhs * rhs
	case Div:
		if rhs == 0 {
			return math.NaN()
		}
		return lhs / rhs
	case Pow:
		return math.Pow(lhs, rhs)
	}
	return 0
}

// Constant is a named value that overwrites the input buffer.
type Constant uint8

const (
	Pi Constant = iota
	E
)

func (c Constant) String() string {
	switch c {
	case Pi:
		return "π"
	case E:
		return "e"
	}
	return "invalid"
}

// Value returns the numeric value of c, or NaN for an unknown constant.
func (c Constant) Value() float64 {
	switch c {
	case Pi:
		return math.Pi
	case E:
		return math.E
	}
	return math.NaN()
}

// ParseConstant accepts "pi", "π" and "e".
func ParseConstant(s string) (Constant, bool) {
	switch strings.ToLower(s) {
	case "pi", "π":
		return Pi, true
	case "e":
		return E, true
	}
	return 0, false
}
