// Package config loads and merges facet configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (FACET_ASPECTS, FACET_MAX_LLM_CALLS, etc.)
//  3. Config file ($XDG_CONFIG_HOME/facet/config.json)
//  4. Built-in defaults
//
// A .env file in the working directory is loaded into the environment
// before merging, so per-repo credentials like GITHUB_TOKEN can live there.
// Use [Load] to obtain a merged [Config], and [Get]/[Set] for single-key
// access from the config subcommands.
package config
