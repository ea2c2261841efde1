package ports

import "errors"

// ErrCorruptSnapshot is returned by a repository whose stored snapshot cannot
// be decoded. Stores treat it as an empty snapshot and keep running.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")
