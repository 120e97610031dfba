// Package csync provides small thread-safe collections shared between the
// watcher's event loop and the completion callbacks of spawned pipeline runs.
//
// All operations hold a mutex for the duration of the call only; nothing in
// this package performs I/O while locked.
package csync
