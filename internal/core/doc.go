// Package core provides the session-level operations of the cleansing
// engine: loading uploads into a consolidated table, editing filter rules
// and producing the filtered result.
//
// The package owns no UI. The web server and the CLI both drive a
// [Service] and render what it returns.
//
// # Sessions
//
// Each call to [Service.CreateSession] loads a set of uploads, joins them
// on their shared fields and stores the consolidated table together with an
// empty rule store. Sessions live in memory only and expire after the
// configured idle TTL; [Service.StartSessionSweeper] removes them.
//
//  1. Client calls [Service.CreateSession] with one or more uploads
//  2. Uploads are parsed concurrently; the [LoadLimiter] bounds how many
//     sessions load at once
//  3. Tables are consolidated with [BuildConsolidatedTable]
//  4. Rules are edited with [Service.SetFilterRule] and [Service.ClearFilterRule]
//  5. [Service.RunFilter] applies the active rules to the consolidated table
//
// Rule edits and filter runs on the same session are serialized by the
// session's mutex.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - JOIN001: uploaded tables share no field
//   - RULE001-RULE002: invalid thresholds and rules
//   - FILE001-FILE006: file errors (size, format, encoding, count)
//   - SES001: session not found or expired
//   - UPL001-UPL003: load errors (busy, cancelled, timeout)
//   - EXP001-EXP003: export errors (sink disabled, table name, database)
package core
