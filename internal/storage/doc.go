// Package storage persists the cached command table.
//
// A Store holds a single snapshot: the encoded record list and the time it
// was written. Drivers: "file" (JSON file, freshness from mtime), "sqlite"
// (single-row table) and "none" (caching disabled).
package storage
