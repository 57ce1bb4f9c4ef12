package bundle

import (
	"strconv"
	"strings"
)

// Index maps bundle paths to the set of line numbers present in their SRC
// blocks. It is rebuilt from bundle text on every run and is the ground
// truth for evidence verification.
type Index map[string]map[int]bool

const srcHeaderPrefix = "# SRC: "

// ParseIndex reconstructs an Index from rendered bundle text.
//
// Lines prefixed `L<n>:` contribute their declared number. A SRC block whose
// lines carry no prefix (unexpected but tolerated) is indexed by sequential
// position within the block so its content is still addressable.
func ParseIndex(text string) Index {
	idx := make(Index)
	var current string
	autoLine := 0

	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "# SoT Bundle" {
			current = ""
			autoLine = 0
			continue
		}

		if strings.HasPrefix(raw, srcHeaderPrefix) {
			current = strings.TrimRight(raw[len(srcHeaderPrefix):], " \t")
			autoLine = 0
			if current != "" && idx[current] == nil {
				idx[current] = make(map[int]bool)
			}
			continue
		}

		if current == "" || raw == "" {
			continue
		}

		if n, ok := parseLinePrefix(raw); ok {
			if n >= 1 {
				idx[current][n] = true
			}
			continue
		}

		autoLine++
		idx[current][autoLine] = true
	}

	return idx
}

// parseLinePrefix matches `L<digits>: ` at the start of a bundle line.
func parseLinePrefix(s string) (int, bool) {
	if len(s) < 3 || s[0] != 'L' {
		return 0, false
	}
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 1 || i >= len(s) || s[i] != ':' {
		return 0, false
	}
	if i+1 >= len(s) || (s[i+1] != ' ' && s[i+1] != '\t') {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:i])
	if err != nil {
		return 0, false
	}
	return n, true
}
