// Package store provides persistent storage for the request client using SQLite.
//
// # Architecture
//
// SQLiteStore implements get, list, upsert and delete for every entity kind
// against a single database/sql pool. Mutations are reported to a Notifier
// once the write has committed:
//
//   - Upsert: assigns a prefixed id when the id is empty, trims names,
//     inserts or overwrites the row, re-reads it and publishes "upserted"
//   - Delete: reads the row, deletes dependents through their own delete
//     paths, removes the row and publishes "deleted" with the last value
//
// # Data Models
//
// Workspace hierarchy:
//
//   - Workspace: root; owns environments, folders, requests and cookie jars
//   - Folder: nests folders and requests through FolderID
//   - HTTPRequest → HTTPResponse (newest first)
//   - GRPCRequest → GRPCConnection (newest first) → GRPCMessage (oldest first)
//
// Independent of the hierarchy:
//
//   - Settings: singleton stored under SettingsID
//   - KeyValue: namespaced entries holding JSON strings or integers
//
// # Cascades
//
// Response body files live outside the database, so every path that can
// remove a response goes through DeleteHTTPResponse. Workspace deletes
// remove the workspace's responses first and rely on foreign keys for the
// rest. Folder deletes walk child folders and requests explicitly.
// Body removal failures are logged and counted but never fail the delete.
//
// # SQLite Configuration
//
// Both drivers get the same pragmas on every pooled connection:
//
//	journal_mode=WAL
//	foreign_keys=ON
//	busy_timeout=5000
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrClosed: the store has been closed
//
// Engine errors are wrapped with the failing operation and returned as is.
package store
