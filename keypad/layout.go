package keypad

var baseRows = [][]Key{
	{KeyPow, KeySqrt, KeyFactorial, KeyPi, KeyDiv},
	{KeySin, KeyCos, KeyTan, KeyClear, KeyBackspace},
	{Digit(7), Digit(8), Digit(9), KeyMul},
	{Digit(4), Digit(5), Digit(6), KeySub},
	{Digit(1), Digit(2), Digit(3), KeyAdd},
	{Digit(0), KeyPoint, KeySci, KeyEquals},
}

var scientificRows = [][]Key{
	{KeySquare, KeyRecip, KeyPercent, KeyLog, KeyLn},
	{KeyE, KeyOpen, KeyClose, KeyNegate},
}

// Layout returns the button grid top to bottom. The scientific rows sit
// above the standard pad when the panel is visible.
func Layout(scientific bool) [][]Key {
	var rows [][]Key
	if scientific {
		rows = append(rows, scientificRows...)
	}
	return append(rows, baseRows...)
}

// DisplaySize returns the display font size in points for text. Longer
// text gets a smaller font so it fits the display.
func DisplaySize(text string) int {
	n := len([]rune(text))
	switch {
	case n > 15:
		return 28
	case n > 12:
		return 36
	case n > 9:
		return 44
	case n > 6:
		return 52
	default:
		return 60
	}
}
