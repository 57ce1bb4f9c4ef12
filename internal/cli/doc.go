// Package cli wires together the Cobra command tree for the facet binary.
//
// It defines the root command and all subcommands (review, aspects, config,
// cache, hook, version), binds flags, reads configuration, drives the review
// pipeline, and maps blocked/failed runs onto deterministic exit codes for
// CI gating and git hooks.
package cli
