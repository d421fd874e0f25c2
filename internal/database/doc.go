// Package database provides SQLite-based storage for docharvest.
//
// DocumentDB stores:
//   - processed documents, keyed by normalized download URL, which also
//     answer the known-URL lookup that keeps later runs from processing a
//     document twice
//   - harvest run reports as JSON, for the run history
//
// The store uses modernc.org/sqlite, a CGO-free driver, and keeps the whole
// database in a single file under the XDG data directory.
package database
