// Facet is a CLI for evidence-grounded, multi-aspect code review of diffs
// and pull requests.
//
// It acquires a diff (unstaged, staged, commit, range, or GitHub PR), builds
// a line-addressable context bundle, fans the review out across independent
// aspects through an external LLM capability, verifies every finding against
// the bundle lines it cites, and merges the surviving findings into a single
// summary with deterministic exit codes.
//
// Usage:
//
//	facet review unstaged                 # review working tree changes
//	facet review staged                   # review staged changes
//	facet review commit <sha>             # review a specific commit
//	facet review range origin/main..HEAD  # review a revision range
//	facet review pr octo/widgets#42       # review a GitHub pull request
//
// Exit codes: 0 approved, 1 blocked, 2 execution failure.
//
// See https://github.com/facetlabs/facet for full documentation.
package main
