// Package cache provides a file-based cache for viewpoint payloads.
//
// Entries are keyed by a SHA-256 hash of the runner binary, model, and
// rendered prompt. Each entry stores the extracted JSON payload with a
// creation timestamp and TTL; expired entries are skipped on read and
// removed during cache-clear operations.
//
// The default cache directory is $XDG_CACHE_HOME/facet (or the
// OS-appropriate equivalent). Cached payloads have already passed through
// JSONL extraction, so a hit skips the subprocess entirely.
package cache
