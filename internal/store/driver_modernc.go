//go:build !sqlite_vec || !cgo

package store

import (
	_ "modernc.org/sqlite"
)

// Pure-Go driver. Chunk search runs the in-process cosine fallback in
// vector.go.
const driverName = "sqlite"
