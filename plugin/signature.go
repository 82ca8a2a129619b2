package plugin

import (
	"fmt"
	"regexp"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/calc/errors"
)

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;\n]+))?`)

// parseSignatures extracts the function names declared in witText and checks
// that each one is func(f64) -> f64.
func parseSignatures(module, witText string) ([]string, error) {
	matches := funcPattern.FindAllStringSubmatch(witText, -1)
	if len(matches) == 0 {
		return nil, errors.InvalidInput(errors.PhasePlugin, "no functions found in WIT text for "+module)
	}

	names := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, match := range matches {
		name := match[1]
		path := []string{module, name}
		if seen[name] {
			return nil, errors.Duplicate(errors.PhasePlugin, "function", name)
		}
		seen[name] = true

		params := splitParams(match[2])
		if len(params) != 1 {
			return nil, errors.InvalidSignature(path, fmt.Sprintf("want 1 parameter, got %d", len(params)))
		}
		typStr := params[0]
		if idx := strings.LastIndex(typStr, ":"); idx != -1 {
			typStr = typStr[idx+1:]
		}
		if err := expectF64(path, "parameter", typStr); err != nil {
			return nil, err
		}

		result := strings.TrimSpace(match[3])
		result = strings.TrimSuffix(strings.TrimPrefix(result, "("), ")")
		if result == "" {
			return nil, errors.InvalidSignature(path, "want an f64 result")
		}
		if err := expectF64(path, "result", result); err != nil {
			return nil, err
		}

		names = append(names, name)
	}
	return names, nil
}

func expectF64(path []string, what, typStr string) error {
	t, err := wit.ParseType(strings.TrimSpace(typStr))
	if err != nil {
		return errors.New(errors.PhasePlugin, errors.KindInvalidSignature).
			Path(path...).
			Detail("parse %s type %q", what, typStr).
			Cause(err).
			Build()
	}
	if _, ok := t.(wit.F64); !ok {
		return errors.InvalidSignature(path, fmt.Sprintf("%s must be f64, got %s", what, strings.TrimSpace(typStr)))
	}
	return nil
}

func splitParams(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
