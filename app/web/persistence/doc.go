// Package persistence provides storage for run history behind the status API.
// Currently backed by SQLite with WAL mode for better concurrency.
package persistence
