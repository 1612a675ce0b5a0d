// Package services defines shared utilities consumed by the pipeline stages
// and external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so stage failures carry a
//     classification (extraction, generation, synthesis, cover, feed) that
//     callers inspect with errors.Is.
//
// Provider clients live in subpackages (llm, speech, imagegen).
package services
