// Package engine implements the calculator state machine.
//
// An Engine holds the display text, the operand being typed, at most one
// pending binary operator and the left operand captured when that operator
// was chosen. A UI shell forwards key presses to the Press methods and renders
// Display after each one:
//
//	e, err := engine.New()
//	if err != nil {
//	    return err
//	}
//	e.PressDigitOrPoint("6")
//	e.PressOperator(engine.Mul)
//	e.PressDigitOrPoint("7")
//	e.PressEquals()
//	fmt.Println(e.Display()) // "42"
//
// # Evaluation
//
// Evaluation is strictly binary. There is no precedence and no chaining of
// operator presses: an operator pressed with an empty input is ignored.
// The result of PressEquals becomes the new input, so typing a digit right
// after "=" extends the result.
//
// # Formatting
//
// Results pass through FormatResult. Integral values print without a point,
// other values keep up to FractionDigits digits with trailing zeros removed.
// NaN and infinities print as ErrorDisplay. Division by zero, invalid powers
// and factorial outside 0..20 all end up there.
//
// # Functions
//
// PressUnary applies built-in functions (sqrt, square, reciprocal, percent,
// factorial, sin, cos, tan, log10, ln, negate) or extension functions added
// with Register. Trigonometric functions take degrees.
package engine
