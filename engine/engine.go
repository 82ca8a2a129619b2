package engine

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/calc/errors"
)

// Engine is the calculator state machine. Each Press method is one complete
// transition. An Engine is not safe for concurrent use; the shell drives it
// from a single event loop.
type Engine struct {
	logger     *zap.Logger
	extensions map[string]Func
	display    string
	input      string
	first      float64
	digits     int
	op         Operator
	scientific bool
}

// New creates an engine in its initial state: display "0", empty input and
// no pending operator.
func New(opts ...Option) (*Engine, error) {
	cfg := config{digits: DefaultFractionDigits}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.digits < 0 || cfg.digits > MaxFractionDigits {
		return nil, errors.OutOfRange("fraction digits", cfg.digits, 0, MaxFractionDigits)
	}
	if cfg.logger == nil {
		cfg.logger = Logger()
	}

	e := &Engine{
		logger:     cfg.logger,
		extensions: make(map[string]Func),
		digits:     cfg.digits,
	}
	e.reset()

	for _, nf := range cfg.funcs {
		if err := e.Register(nf.name, nf.fn); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) reset() {
	e.display = "0"
	e.input = ""
	e.op = None
	e.first = 0
}

// State returns a snapshot of the current state.
func (e *Engine) State() State {
	return State{
		Display:                e.display,
		CurrentInput:           e.input,
		FirstOperand:           e.first,
		Operator:               e.op,
		ScientificPanelVisible: e.scientific,
	}
}

// Display returns the text currently shown to the user.
func (e *Engine) Display() string {
	return e.display
}

// FractionDigits returns the configured result precision.
func (e *Engine) FractionDigits() int {
	return e.digits
}

// PressDigitOrPoint appends a digit or the decimal point to the input.
// A second point is ignored and a point on empty input becomes "0.".
// An input buffer holding the error sentinel is replaced rather than extended.
func (e *Engine) PressDigitOrPoint(token string) error {
	if len(token) != 1 || !isDigitOrPoint(token[0]) {
		return errors.InvalidToken(token, "digit or decimal point")
	}
	e.clearErrorInput()
	if token == "." {
		if strings.Contains(e.input, ".") {
			return nil
		}
		if e.input == "" {
			e.input = "0"
		}
	}
	e.input += token
	e.display = e.input
	return nil
}

func isDigitOrPoint(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.'
}

// PressParen appends "(" or ")" to the input. Parentheses are never
// evaluated; a buffer holding one parses as zero.
func (e *Engine) PressParen(token string) error {
	if token != "(" && token != ")" {
		return errors.InvalidToken(token, "parenthesis")
	}
	e.clearErrorInput()
	e.input += token
	e.display = e.input
	return nil
}

func (e *Engine) clearErrorInput() {
	if e.input == ErrorDisplay {
		e.input = ""
	}
}

// PressOperator commits the input as the left operand of op. With an empty
// input the press is ignored and any pending operator stays as it was.
func (e *Engine) PressOperator(op Operator) error {
	if !op.Binary() {
		return errors.UnknownOperator(op)
	}
	if e.input == "" {
		return nil
	}
	e.first = parseOperand(e.input)
	e.op = op
	e.input = ""
	e.logger.Debug("operator committed",
		zap.Stringer("op", op),
		zap.Float64("lhs", e.first))
	return nil
}

// PressEquals evaluates the pending operation. The formatted result becomes
// both the display and the start of the next input. It does nothing when
// the input is empty or no operator is pending.
func (e *Engine) PressEquals() {
	if e.input == "" || e.op == None {
		return
	}
	rhs := parseOperand(e.input)
	result := e.op.apply(e.first, rhs)
	e.display = FormatResult(result, e.digits)
	e.input = e.display
	e.logger.Debug("evaluated",
		zap.Stringer("op", e.op),
		zap.Float64("lhs", e.first),
		zap.Float64("rhs", rhs),
		zap.String("display", e.display))
	e.op = None
}

// PressClear returns to the initial state. Panel visibility is kept.
func (e *Engine) PressClear() {
	e.reset()
}

// PressBackspace drops the last input character. Removing the last one
// shows "0". The error sentinel is removed as a whole.
func (e *Engine) PressBackspace() {
	if e.input == "" {
		return
	}
	if e.input == ErrorDisplay {
		e.input = ""
	} else {
		e.input = e.input[:len(e.input)-1]
	}
	if e.input == "" {
		e.display = "0"
		return
	}
	e.display = e.input
}

// PressUnary applies the named function to the input and replaces the input
// with the formatted result. It does nothing when the input is empty.
func (e *Engine) PressUnary(name string) error {
	fn, ok := e.lookup(name)
	if !ok {
		return errors.UnknownFunction(name)
	}
	if e.input == "" {
		return nil
	}
	x := parseOperand(e.input)
	r, ok := fn(x)
	if !ok {
		return nil
	}
	e.input = FormatResult(r, e.digits)
	e.display = e.input
	e.logger.Debug("function applied",
		zap.String("func", name),
		zap.Float64("x", x),
		zap.String("display", e.display))
	return nil
}

// PressConstant overwrites the input with the formatted constant.
func (e *Engine) PressConstant(c Constant) error {
	if c != Pi && c != E {
		return errors.New(errors.PhaseInput, errors.KindInvalidToken).
			Value(c).
			Detail("unknown constant").
			Build()
	}
	e.input = FormatResult(c.Value(), e.digits)
	e.display = e.input
	return nil
}

// ToggleScientificPanel flips the scientific panel flag.
func (e *Engine) ToggleScientificPanel() {
	e.scientific = !e.scientific
}

// Register adds an extension function. Built-in names cannot be reused;
// registering an existing extension name replaces it.
func (e *Engine) Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return errors.InvalidInput(errors.PhaseEvaluate, "function needs a name and an implementation")
	}
	if IsBuiltin(name) {
		return errors.Duplicate(errors.PhaseEvaluate, "built-in function", name)
	}
	e.extensions[name] = fn
	return nil
}

// ResetExtensions removes every extension function.
func (e *Engine) ResetExtensions() {
	clear(e.extensions)
}

// HasFunc reports whether name is a built-in or registered function.
func (e *Engine) HasFunc(name string) bool {
	_, ok := e.lookup(name)
	return ok
}

// Extensions returns the registered extension names in sorted order.
func (e *Engine) Extensions() []string {
	names := make([]string, 0, len(e.extensions))
	for name := range e.extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) lookup(name string) (Func, bool) {
	if fn, ok := builtins[name]; ok {
		return fn, true
	}
	fn, ok := e.extensions[name]
	return fn, ok
}
