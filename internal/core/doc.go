// Package core provides the upload service for beatmap archives.
//
// The service is independent of any transport layer. It can be used by web
// handlers, CLI tools, or tests without modification.
//
// # Processing an archive
//
//  1. The caller hands [Service.ProcessArchive] an io.ReaderAt over the zip.
//  2. The service takes a slot from the [UploadLimiter] for the whole run.
//  3. A zipmap session indexes the archive and decodes Info.dat.
//  4. Every declared difficulty is analyzed once; the content hash selects
//     or creates the map version and stats are written insert-if-absent.
//  5. The registered score provider and user verifier run; failures of
//     either are logged and downgraded, never returned.
//  6. The session is closed on every path, deleting temporary audio.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError]:
//
//   - ZIP001-ZIP006: archive and document errors
//   - UPL001-UPL007: upload, limiter and lookup errors
//   - DB001-DB007: database errors
package core
