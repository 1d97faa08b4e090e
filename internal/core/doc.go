// Package core provides the park CSV import pipeline.
//
// This package holds the domain logic independent of any UI, transport or
// storage engine. It is used by the HTTP server, the potactl CLI and tests
// without modification.
//
// # Pipeline
//
// An import runs four stages, each usable on its own:
//
//   - [Tokenize] splits one CSV line, honouring double-quoted fields.
//   - [MakeHeaderIndex] maps lowercased header names to column positions.
//   - [ExtractRow] pulls the eight park columns out of a tokenized line.
//   - [ValidateRow] turns a [RawRow] into a [NormalizedPark] or a list of
//     messages.
//
// [Parser] streams a file through those stages line by line, and [Importer]
// hands the valid parks to an insert function in batches of 500.
//
// # Progress
//
// Progress is a synchronous [ProgressCallback] moving through the phases
// reading, parsing, importing and completed (or error). Parsing events are
// throttled to one per [Parser.ProgressInterval].
//
// # Service
//
// [Service] owns the import state of one session. It allows a single import
// at a time, fans progress out to subscribers via [Service.SubscribeProgress]
// and records every finished import in the store's history.
//
// # Error Handling
//
// Row problems never fail an import; they are collected as
// [RowValidationError] values. File and store failures abort the import and
// are mapped to operator-facing messages with [MapError]:
//
//   - FILE001-FILE006: File errors (missing, unreadable, encoding, size)
//   - IMP001-IMP005: Import errors (conflict, not found, cancelled, timeout)
//   - DB001-DB005: Database errors
package core
