// Package storage provides the string key/value port that session state is
// persisted through, with in-memory, encrypted file and Redis backends.
package storage

import "errors"

// ErrUnavailable is wrapped by backends when the underlying medium cannot
// be reached or written.
var ErrUnavailable = errors.New("storage unavailable")

// Storage is a small synchronous key/value port. A missing key is reported
// with ok == false and a nil error.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}
