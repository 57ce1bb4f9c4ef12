// Package gitctx acquires diffs and repository metadata by shelling out to
// git.
//
// It covers the four local review modes — unstaged, staged, commit, and
// range — and derives the deterministic scope identifiers that bind a run
// to the exact change under review.
package gitctx
