// Package review defines the aspect-review wire contract and the pure core
// that decides what generated findings are allowed to reach a human:
// schema validation, evidence verification against the bundle index, the
// exclude/downgrade policy, finding fingerprints, and the deterministic
// merge with a recomputed status.
//
// Nothing in this package performs I/O. A capability payload enters as raw
// JSON and leaves as a typed AspectReview only through Validate.
package review
