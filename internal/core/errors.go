package core

import (
	"errors"
	"fmt"
)

// Persistence and lookup failures. Callers classify with errors.Is.
var (
	// ErrStorageUnavailable means the durable store could not be opened or read.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrWriteFailed means a commit was rejected; the previous record is intact.
	ErrWriteFailed = errors.New("write failed")
	// ErrStaleWrite is a rejected commit whose version is not newer than the stored one.
	ErrStaleWrite = fmt.Errorf("%w: stale ledger version", ErrWriteFailed)
	// ErrNotFound is returned for edits and deletes of unknown transaction ids.
	ErrNotFound = errors.New("transaction not found")
	// ErrImportMalformed marks a missing or corrupt spreadsheet. It is treated as absence.
	ErrImportMalformed = errors.New("spreadsheet import malformed")
	// ErrNoData is the terminal condition once store, mirror and defaults yielded nothing.
	ErrNoData = errors.New("no ledger data available")
)
