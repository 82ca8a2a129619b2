package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/calc/engine"
	"github.com/wippyai/calc/keypad"
)

// runBatch runs one key script per line and prints the display after
// each. Blank lines and lines starting with # are skipped. State carries
// over between lines.
func runBatch(e *engine.Engine, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := keypad.Run(e, text); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := fmt.Fprintln(w, e.Display()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return nil
}
