package keypad

import (
	"strings"

	"github.com/wippyai/calc/engine"
)

// Tokenize splits a key script into key names. Fields are separated by
// white space. A field that is not itself a key, and that known does not
// accept, is split into single characters when every character is a key,
// so "12.5" and "6×7=" both work. Passing nil for known skips that check.
func Tokenize(line string, known func(string) bool) []string {
	var out []string
	for _, field := range strings.Fields(line) {
		if _, ok := Lookup(field); ok || (known != nil && known(field)) {
			out = append(out, field)
			continue
		}
		if chars, ok := splitKeys(field); ok {
			out = append(out, chars...)
			continue
		}
		out = append(out, field)
	}
	return out
}

func splitKeys(field string) ([]string, bool) {
	chars := make([]string, 0, len(field))
	for _, r := range field {
		s := string(r)
		if _, ok := Lookup(s); !ok {
			return nil, false
		}
		chars = append(chars, s)
	}
	return chars, true
}

// Run executes a key script against e and stops at the first key that
// cannot be pressed. Keys before it stay applied.
func Run(e *engine.Engine, line string) error {
	for _, name := range Tokenize(line, e.HasFunc) {
		if err := Dispatch(e, name); err != nil {
			return err
		}
	}
	return nil
}
