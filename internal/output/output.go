package output

import (
	"io"
	"os"

	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/review"
)

// Writer renders a merged review summary in a specific format.
type Writer interface {
	Write(w io.Writer, summary *review.Summary) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, errs.ExecFailure("unsupported output format: %s", format)
	}
}

// WriteSummary writes the summary to the specified output (file path or
// stdout).
func WriteSummary(summary *review.Summary, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return errs.ExecFailureWrap(err, "creating output file")
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, summary)
}
