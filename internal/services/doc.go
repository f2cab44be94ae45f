// Package services defines shared utilities consumed by the extraction
// pipeline, its ants and post-processors.
//
// Key responsibilities:
//   - Context helpers that stamp case item IDs, pipeline phases, unit (ant)
//     names, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the orchestrator
//     tell loader-fatal failures apart from recoverable ones and render a
//     concise message for the run marker.
//
// Use these helpers when wiring new ants so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
