package aspect

import (
	"regexp"
	"sort"
	"strings"

	"github.com/facetlabs/facet/internal/errs"
)

// Known is the default aspect universe. Orchestrators take the allowed set
// as a parameter so tests can run against a smaller universe.
var Known = []string{
	"correctness",
	"readability",
	"testing",
	"test-audit",
	"security",
	"performance",
	"refactoring",
}

// Presets are the builtin named aspect selections.
var Presets = map[string][]string{
	"minimal":  {"correctness", "security"},
	"standard": {"correctness", "readability", "testing", "security"},
	"full":     Known,
}

// ResolvePreset expands a builtin preset name to its aspect list. The name
// goes through Normalize first so "Minimal" and "minimal" resolve alike.
func ResolvePreset(name string) ([]string, error) {
	key, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	preset, ok := Presets[key]
	if !ok {
		names := make([]string, 0, len(Presets))
		for n := range Presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, errs.ExecFailure("unknown preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	return append([]string(nil), preset...), nil
}

var aspectRE = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// Normalize lowercases an aspect name, maps underscores to dashes, and
// rejects anything outside the allowed slug shape.
func Normalize(value string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(value))
	a = strings.ReplaceAll(a, "_", "-")
	if a == "" || !aspectRE.MatchString(a) {
		return "", errs.ExecFailure("invalid aspect: %q", value)
	}
	return a, nil
}
