// Package github talks to the GitHub REST API for pull request review:
// fetching PR diffs and head SHAs, and managing the comments facet owns.
//
// Two comment protocols are implemented. The summary comment is a single
// marker-tagged conversation comment upserted per PR, with latest-wins
// convergence when concurrent runs race. Inline comments anchor P0/P1
// findings to diff positions, keyed by content fingerprint, and are
// reconciled against the current summary on every run. All inline
// mutations are guarded by a head-SHA check so a force-push during the
// run aborts posting instead of annotating the wrong commit.
package github
