package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/review"
)

// JSONWriter outputs the full summary document as JSON.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, summary *review.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errs.ExecFailureWrap(err, "marshaling JSON")
	}
	if _, err := w.Write(data); err != nil {
		return errs.ExecFailureWrap(err, "writing JSON")
	}
	_, err = fmt.Fprintln(w)
	return err
}
