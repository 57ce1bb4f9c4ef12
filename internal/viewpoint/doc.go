// Package viewpoint abstracts the LLM subprocess that produces one aspect
// review per invocation.
//
// The Runner interface takes a fully rendered prompt and returns the raw
// JSON payload the model emitted. OpenCode is the production implementation:
// it shells out to the opencode CLI in headless JSON mode, feeds the prompt
// on stdin, and extracts the final assistant text from the JSONL event
// stream. Transcripts are secret-redacted and size-capped before they are
// written under the run's artifact directory.
package viewpoint
