package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DirName is the artifact tree created in the working directory.
const DirName = ".facet-review"

// Store writes run artifacts under a single base directory. All JSON writes
// are atomic (temp file + rename) and permission-restricted, since aspect
// payloads can quote repository content.
type Store struct {
	root string
}

// Open ensures the artifact directory exists under baseDir.
func Open(baseDir string) (*Store, error) {
	root := filepath.Join(baseDir, DirName)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating artifacts dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the artifact directory path.
func (s *Store) Root() string { return s.root }

// AspectResultPath returns the path of an aspect's validated result document.
func (s *Store) AspectResultPath(aspect string) string {
	return filepath.Join(s.root, "aspects", aspect+".json")
}

// AspectRawPath returns the path where the pre-policy aspect result is
// preserved for auditing.
func (s *Store) AspectRawPath(aspect string) string {
	return filepath.Join(s.root, "aspects", aspect+".raw.json")
}

// AspectErrorPath returns the path of an aspect's error document.
func (s *Store) AspectErrorPath(aspect string) string {
	return filepath.Join(s.root, "aspects", aspect+".error.json")
}

// IndexPath returns the path of the per-run aspect outcome index.
func (s *Store) IndexPath() string {
	return filepath.Join(s.root, "aspects", "index.json")
}

// EvidencePath returns the path of the per-run evidence policy summary.
func (s *Store) EvidencePath() string {
	return filepath.Join(s.root, "evidence.json")
}

// SummaryPath returns the path of the merged review summary document.
func (s *Store) SummaryPath() string {
	return filepath.Join(s.root, "review-summary.json")
}

// SummaryMarkdownPath returns the path of the rendered summary report.
func (s *Store) SummaryMarkdownPath() string {
	return filepath.Join(s.root, "review-summary.md")
}

// ClearSummary removes summary artifacts so a failed run cannot leave a
// stale summary from a previous successful one.
func (s *Store) ClearSummary() {
	os.Remove(s.SummaryPath())
	os.Remove(s.SummaryMarkdownPath())
}

// Rel converts an artifact path to a stable, slash-separated path relative
// to the artifact root's parent, for human-facing messages.
func (s *Store) Rel(path string) string {
	rel, err := filepath.Rel(filepath.Dir(s.root), path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// WriteJSON atomically writes payload as indented JSON with 0600 mode,
// creating parent directories with 0700.
func (s *Store) WriteJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	return s.writeAtomic(path, append(data, '\n'))
}

// WriteText atomically writes content with a trailing newline.
func (s *Store) WriteText(path, content string) error {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return s.writeAtomic(path, []byte(content))
}

func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("restricting artifact mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publishing artifact: %w", err)
	}
	return nil
}

// WriteDiffPatch persists the raw diff under diff.patch.
func (s *Store) WriteDiffPatch(patch string) error {
	return s.WriteText(filepath.Join(s.root, "diff.patch"), patch)
}

// WriteContextBundle persists the rendered bundle text.
func (s *Store) WriteContextBundle(text string) error {
	return s.WriteText(filepath.Join(s.root, "context-bundle.txt"), text)
}

// WriteReferenceBundle persists the rendered reference doc bundle.
func (s *Store) WriteReferenceBundle(text string) error {
	return s.WriteText(filepath.Join(s.root, "sot.md"), text)
}

// WriteWarnings persists parser/bundle warnings, one per line.
func (s *Store) WriteWarnings(warnings []string) error {
	kept := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if strings.TrimSpace(w) != "" {
			kept = append(kept, w)
		}
	}
	return s.WriteText(filepath.Join(s.root, "warnings.txt"), strings.Join(kept, "\n"))
}

// RunMeta records what change a run was bound to.
type RunMeta struct {
	SchemaVersion int    `json:"schema_version"`
	RunID         string `json:"run_id"`
	ScopeID       string `json:"scope_id"`
	StartedAt     string `json:"started_at"`
}

// WriteRunMeta writes meta.json with a fresh run id and returns the meta.
func (s *Store) WriteRunMeta(scopeID string) (RunMeta, error) {
	meta := RunMeta{
		SchemaVersion: 1,
		RunID:         uuid.NewString(),
		ScopeID:       scopeID,
		StartedAt:     time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
	}
	return meta, s.WriteJSON(filepath.Join(s.root, "meta.json"), meta)
}

// ValidationError is the machine-readable error artifact left for
// downstream gates when input or output validation fails.
type ValidationError struct {
	SchemaVersion int            `json:"schema_version"`
	Kind          string         `json:"kind"`
	Message       string         `json:"message"`
	TargetPath    string         `json:"target_path"`
	Errors        []string       `json:"errors"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// WriteValidationError writes a validation-error artifact under errors/ and
// returns its path.
func (s *Store) WriteValidationError(filename string, ve ValidationError) (string, error) {
	ve.SchemaVersion = 1
	if ve.Errors == nil {
		ve.Errors = []string{}
	}
	path := filepath.Join(s.root, "errors", filename)
	return path, s.WriteJSON(path, ve)
}

// ClearAspectErrors removes stale per-aspect error artifacts from previous
// runs. The artifact dir is stable across runs and is never assumed empty.
func (s *Store) ClearAspectErrors(aspects []string) {
	for _, a := range aspects {
		os.Remove(s.AspectErrorPath(a))
		for _, kind := range []string{"schema", "exec_failure", "unexpected"} {
			os.Remove(filepath.Join(s.root, "errors", fmt.Sprintf("%s.%s.error.json", a, kind)))
		}
	}
}
