package viewpoint

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/facetlabs/facet/internal/errs"
)

// ExtractPayload pulls the final review payload out of a JSONL event
// stream.
//
// The runner interleaves log lines with JSON events; non-JSON lines are
// ignored, but a line that looks like JSON (starts with '{') and fails to
// parse is an execution failure. The payload is the last `type=text`
// event's part text, which must itself be valid JSON.
func ExtractPayload(r io.Reader) (json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	sawEvent := false
	var lastText *string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		sawEvent = true

		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, errs.ExecFailure("viewpoint runner returned an invalid JSONL event")
		}
		if ev["type"] != "text" {
			continue
		}
		if part, ok := ev["part"].(map[string]any); ok {
			if text, ok := part["text"].(string); ok {
				lastText = &text
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.ExecFailureWrap(err, "reading viewpoint runner output")
	}

	if !sawEvent {
		return nil, errs.ExecFailure("viewpoint runner returned no JSON events")
	}
	if lastText == nil {
		return nil, errs.ExecFailure("viewpoint runner events contained no final text output")
	}

	payload := strings.TrimSpace(*lastText)
	if !json.Valid([]byte(payload)) {
		return nil, errs.ExecFailure("viewpoint runner returned invalid JSON")
	}
	return json.RawMessage(payload), nil
}
