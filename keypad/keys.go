package keypad

import (
	"github.com/wippyai/calc/engine"
	"github.com/wippyai/calc/errors"
)

// Action is what a key does to the engine.
type Action uint8

const (
	ActionDigit Action = iota
	ActionParen
	ActionOperator
	ActionEquals
	ActionClear
	ActionBackspace
	ActionFunc
	ActionConstant
	ActionToggle
)

// Key is one calculator button.
type Key struct {
	Label    string
	Token    string
	Func     string
	Action   Action
	Operator engine.Operator
	Constant engine.Constant
}

// Press applies k to e.
func (k Key) Press(e *engine.Engine) error {
	switch k.Action {
	case ActionDigit:
		return e.PressDigitOrPoint(k.Token)
	case ActionParen:
		return e.PressParen(k.Token)
	case ActionOperator:
		return e.PressOperator(k.Operator)
	case ActionEquals:
		e.PressEquals()
	case ActionClear:
		e.PressClear()
	case ActionBackspace:
		e.PressBackspace()
	case ActionFunc:
		return e.PressUnary(k.Func)
	case ActionConstant:
		return e.PressConstant(k.Constant)
	case ActionToggle:
		e.ToggleScientificPanel()
	default:
		return errors.UnknownKey(k.Label)
	}
	return nil
}

func digit(d string) Key {
	return Key{Label: d, Action: ActionDigit, Token: d}
}

func operator(op engine.Operator) Key {
	label := op.Symbol()
	if op == engine.Pow {
		label = "x^y"
	}
	return Key{Label: label, Action: ActionOperator, Operator: op}
}

func function(label, name string) Key {
	return Key{Label: label, Action: ActionFunc, Func: name}
}

var (
	KeyPoint     = digit(".")
	KeyOpen      = Key{Label: "(", Action: ActionParen, Token: "("}
	KeyClose     = Key{Label: ")", Action: ActionParen, Token: ")"}
	KeyAdd       = operator(engine.Add)
	KeySub       = operator(engine.Sub)
	KeyMul       = operator(engine.Mul)
	KeyDiv       = operator(engine.Div)
	KeyPow       = operator(engine.Pow)
	KeyEquals    = Key{Label: "=", Action: ActionEquals}
	KeyClear     = Key{Label: "AC", Action: ActionClear}
	KeyBackspace = Key{Label: "⌫", Action: ActionBackspace}
	KeySqrt      = function("√x", engine.FuncSqrt)
	KeySquare    = function("x²", engine.FuncSquare)
	KeyRecip     = function("1/x", engine.FuncReciprocal)
	KeyPercent   = function("%", engine.FuncPercent)
	KeyFactorial = function("x!", engine.FuncFactorial)
	KeySin       = function("sin", engine.FuncSin)
	KeyCos       = function("cos", engine.FuncCos)
	KeyTan       = function("tan", engine.FuncTan)
	KeyLog       = function("log", engine.FuncLog10)
	KeyLn        = function("ln", engine.FuncLn)
	KeyNegate    = function("±", engine.FuncNegate)
	KeyPi        = Key{Label: "π", Action: ActionConstant, Constant: engine.Pi}
	KeyE         = Key{Label: "e", Action: ActionConstant, Constant: engine.E}
	KeySci       = Key{Label: "SCI", Action: ActionToggle}
)

var digits = [10]Key{
	digit("0"), digit("1"), digit("2"), digit("3"), digit("4"),
	digit("5"), digit("6"), digit("7"), digit("8"), digit("9"),
}

var byLabel = labels()

// aliases maps keyboard keys and function names to button labels.
var aliases = map[string]string{
	"*":          "×",
	"x":          "×",
	"/":          "÷",
	"^":          "x^y",
	"enter":      "=",
	"c":          "AC",
	"esc":        "AC",
	"backspace":  "⌫",
	"r":          "√x",
	"sqrt":       "√x",
	"square":     "x²",
	"reciprocal": "1/x",
	"percent":    "%",
	"!":          "x!",
	"factorial":  "x!",
	"s":          "sin",
	"o":          "cos",
	"t":          "tan",
	"g":          "log",
	"log10":      "log",
	"l":          "ln",
	"n":          "±",
	"negate":     "±",
	"p":          "π",
	"pi":         "π",
	"tab":        "SCI",
}

func labels() map[string]Key {
	m := make(map[string]Key)
	for _, k := range digits {
		m[k.Label] = k
	}
	for _, k := range []Key{
		KeyPoint, KeyOpen, KeyClose,
		KeyAdd, KeySub, KeyMul, KeyDiv, KeyPow,
		KeyEquals, KeyClear, KeyBackspace,
		KeySqrt, KeySquare, KeyRecip, KeyPercent, KeyFactorial,
		KeySin, KeyCos, KeyTan, KeyLog, KeyLn, KeyNegate,
		KeyPi, KeyE, KeySci,
	} {
		m[k.Label] = k
	}
	return m
}

// Digit returns the key for decimal digit d. Values outside 0-9 wrap
// modulo 10, so -1 is the 9 key.
func Digit(d int) Key {
	return digits[(d%10+10)%10]
}

// Lookup resolves a button label or alias.
func Lookup(name string) (Key, bool) {
	if k, ok := byLabel[name]; ok {
		return k, true
	}
	if label, ok := aliases[name]; ok {
		return byLabel[label], true
	}
	return Key{}, false
}

// Dispatch presses the key called name. Names that are neither labels nor
// aliases are tried as engine functions, which covers extension functions.
func Dispatch(e *engine.Engine, name string) error {
	if k, ok := Lookup(name); ok {
		return k.Press(e)
	}
	if e.HasFunc(name) {
		return e.PressUnary(name)
	}
	return errors.UnknownKey(name)
}
