// Package aspect runs the review aspects: it validates and normalizes the
// requested aspect names, renders one prompt per aspect from a closed token
// set, fans invocations out over a bounded worker pool, and aggregates the
// per-aspect outcomes into artifacts plus a deterministic index.
//
// Failure isolation is the organizing principle here. A failing aspect is
// converted into an error artifact and an ok:false index entry; it never
// cancels its siblings. Only after every aspect has finished does the run
// raise a single aggregate error, with a blocked prerequisite taking
// precedence over execution failures.
package aspect
