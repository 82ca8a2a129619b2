package engine

// State is a snapshot of the calculator.
type State struct {
	Display                string
	CurrentInput           string
	FirstOperand           float64
	Operator               Operator
	ScientificPanelVisible bool
}

// Pending reports whether a binary operator is waiting for its right operand.
func (s State) Pending() bool {
	return s.Operator != None
}

// IsError reports whether the display shows the error sentinel.
func (s State) IsError() bool {
	return s.Display == ErrorDisplay
}
