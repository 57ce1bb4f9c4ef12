// Package bundle renders HEAD-side diff blocks into the budgeted,
// line-addressable context bundle and rebuilds the path->line index from
// bundle text.
//
// The bundle is both the model input and the evidence ground truth, so
// rendering is deliberately conservative: blocks are admitted whole or not
// at all, and every path and content line is sanitized so crafted diff
// content cannot forge headers.
package bundle
