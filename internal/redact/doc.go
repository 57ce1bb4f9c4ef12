// Package redact scrubs secret-looking material from text before it is
// written to transcript artifacts or surfaced in error messages.
//
// Detection uses regex heuristics covering the shapes that actually appear
// in subprocess output: Authorization headers, KEY=VALUE env assignments
// ending in _TOKEN/_KEY/_SECRET, explicit api_key/token/secret assignments,
// JWTs, private key blocks, and provider-recognizable tokens (GitHub,
// Slack, OpenAI-style, AWS access key IDs).
package redact
