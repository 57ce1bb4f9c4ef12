// Package errs defines the run-level error taxonomy and exit-code contract.
//
// There are three kinds of failure: blocked (a prerequisite is unmet and the
// user must act), execution failure (invalid input or a runtime fault), and
// unexpected (anything unclassified, reported as an execution failure but
// labeled distinctly in artifacts for diagnosis).
package errs
