package diffparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SourceLine is a single line on the HEAD/new side of a diff hunk.
type SourceLine struct {
	NewLine int
	Text    string
}

// SourceBlock holds the collected HEAD-side lines for one file section.
// A block is emitted whole or not at all.
type SourceBlock struct {
	Path  string
	Lines []SourceLine
}

var hunkRE = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// skip reasons recorded in warnings
const (
	skipDeleted     = "deleted"
	skipBinary      = "binary"
	skipParseFailed = "parse_failed"
	skipNoHunks     = "no_hunks"
)

// Parse extracts HEAD-side blocks from a unified diff patch.
//
// Malformed input is never fatal: a file section that cannot be parsed is
// skipped whole with a warning and scanning continues at the next
// `diff --git` line. Deleted lines have no HEAD-side position and are
// dropped; deleted and binary files contribute no block.
func Parse(patch string) ([]SourceBlock, []string) {
	var blocks []SourceBlock
	var warnings []string

	var (
		curPath    string
		haveFile   bool
		curLines   []SourceLine
		curNewLine int
		inHunk     bool
		skipKind   string
	)

	flush := func() {
		if !haveFile {
			curLines = nil
			inHunk = false
			skipKind = ""
			return
		}
		switch {
		case skipKind != "":
			warnings = append(warnings, fmt.Sprintf("diff_parse_skipped kind=%s path=%s", skipKind, curPath))
		case len(curLines) == 0:
			// Rename-only / mode-only sections have no hunks.
			warnings = append(warnings, fmt.Sprintf("diff_parse_skipped kind=%s path=%s", skipNoHunks, curPath))
		default:
			blocks = append(blocks, SourceBlock{Path: curPath, Lines: curLines})
		}
		curPath = ""
		haveFile = false
		curLines = nil
		inHunk = false
		skipKind = ""
	}

	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			_, bPath, ok := HeaderPaths(line)
			if !ok {
				warnings = append(warnings, "diff_parse_skipped kind="+skipParseFailed+" path=")
				continue
			}
			curPath = bPath
			haveFile = bPath != ""
			continue
		}

		if !haveFile {
			continue
		}
		if skipKind != "" {
			// Skip the remainder of this file section.
			continue
		}

		if strings.HasPrefix(line, "+++ ") {
			plus := PathToken(line[4:])
			if plus == "/dev/null" {
				skipKind = skipDeleted
			} else if strings.HasPrefix(plus, "b/") {
				// The +++ path is authoritative for renames.
				curPath = plus[2:]
			}
			continue
		}

		if strings.HasPrefix(line, "GIT binary patch") || strings.HasPrefix(line, "Binary files ") {
			skipKind = skipBinary
			continue
		}

		if strings.HasPrefix(line, "@@") {
			m := hunkRE.FindStringSubmatch(line)
			if m == nil {
				skipKind = skipParseFailed
				inHunk = false
				continue
			}
			start, err := strconv.Atoi(m[3])
			if err != nil {
				skipKind = skipParseFailed
				inHunk = false
				continue
			}
			curNewLine = start
			inHunk = true
			continue
		}

		if !inHunk || line == "" {
			continue
		}

		switch line[0] {
		case '\\':
			// "\ No newline at end of file"
		case '+', ' ':
			curLines = append(curLines, SourceLine{NewLine: curNewLine, Text: line[1:]})
			curNewLine++
		case '-':
			// Deletions do not exist on the HEAD side.
		}
	}

	flush()
	return blocks, warnings
}

// HeaderPaths tokenizes a `diff --git a/X b/Y` line, honoring the
// shell-style quoting git emits for paths with spaces or special bytes.
func HeaderPaths(line string) (aPath, bPath string, ok bool) {
	const prefix = "diff --git "
	if !strings.HasPrefix(line, prefix) {
		return "", "", false
	}
	rest := line[len(prefix):]
	parts, err := splitShellWords(rest)
	if err != nil || len(parts) < 2 {
		return "", "", false
	}
	aTok, bTok := parts[0], parts[1]
	if !strings.HasPrefix(aTok, "a/") || !strings.HasPrefix(bTok, "b/") {
		return "", "", false
	}
	return aTok[2:], bTok[2:], true
}

// PathToken parses a single, possibly quoted path token. The token may
// carry a trailing file-mode or timestamp column; only the first word counts.
func PathToken(token string) string {
	t := strings.TrimSpace(token)
	if t == "" {
		return ""
	}
	parts, err := splitShellWords(t)
	if err != nil || len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// splitShellWords splits a string into words using POSIX shell quoting rules:
// double quotes group words and allow backslash escapes, single quotes group
// words literally, and a backslash outside quotes escapes the next byte.
func splitShellWords(s string) ([]string, error) {
	var words []string
	var cur strings.Builder
	inWord := false

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
			i++
		case c == '\'':
			inWord = true
			j := strings.IndexByte(s[i+1:], '\'')
			if j < 0 {
				return nil, fmt.Errorf("unterminated single quote")
			}
			cur.WriteString(s[i+1 : i+1+j])
			i += j + 2
		case c == '"':
			inWord = true
			i++
			for {
				if i >= len(s) {
					return nil, fmt.Errorf("unterminated double quote")
				}
				if s[i] == '"' {
					i++
					break
				}
				if s[i] == '\\' && i+1 < len(s) {
					cur.WriteByte(unescapeQuoted(s[i+1]))
					i += 2
					continue
				}
				cur.WriteByte(s[i])
				i++
			}
		case c == '\\':
			if i+1 >= len(s) {
				return nil, fmt.Errorf("trailing backslash")
			}
			inWord = true
			cur.WriteByte(s[i+1])
			i += 2
		default:
			inWord = true
			cur.WriteByte(c)
			i++
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}

func unescapeQuoted(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}
