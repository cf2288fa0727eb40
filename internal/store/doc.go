// Package store persists projects, versions, builds and build commands in
// SQLite through database/sql and the pure-Go modernc.org/sqlite driver.
package store
