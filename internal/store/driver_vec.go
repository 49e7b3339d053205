//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// Cgo driver with the sqlite-vec extension auto-loaded. Chunk search
// goes through the vec0 virtual table in vector_vec.go.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}
