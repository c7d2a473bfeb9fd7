// Package diag defines the diagnostic model shared by extraction, composition,
// schema acquisition and validation.
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Embedded – line/column inside the GraphQL text the finding belongs to.
//   - Primary span – the same location in host coordinates.
//   - Notes – optional secondary spans/messages, e.g. every other definition
//     site of a duplicated fragment.
//
// Per-document problems are always Diagnostics; Go errors are reserved for
// infrastructure failures (I/O, schema transport). Diagnostics without a host
// location use source.NoFile and are reported at project level.
//
// Apart from the stable short format in golden.go, rendering lives in
// internal/diagfmt.
package diag
