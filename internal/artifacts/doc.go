// Package artifacts manages the .facet-review/ artifact tree: the diff,
// the context bundle, per-aspect results and errors, the outcome index,
// and the merged summary. Writes are atomic so concurrent aspect workers
// and downstream consumers never observe a partial document.
package artifacts
