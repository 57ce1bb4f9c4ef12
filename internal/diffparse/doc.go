// Package diffparse extracts HEAD-side (new/b) content from unified diffs.
//
// The parser walks a patch line by line, tracking one file section at a
// time. Deleted files, binary files, and sections with malformed hunk
// headers are skipped whole with a warning; parsing itself never fails.
// The output feeds the context bundle, which is the ground truth for
// evidence verification.
package diffparse
