package database

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("diary entry not found")
	ErrInvalidEntry = errors.New("diary entry requires a non-empty title and content")
	ErrStoreClosed  = errors.New("diary store is closed")
)

// InitError reports that the connection or schema could not be set up.
// The store discards the failed attempt; the next operation retries.
type InitError struct {
	Path string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize diary store at %s: %v", e.Path, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// WriteError wraps a failed create, update or delete.
type WriteError struct {
	Op  string
	ID  int64
	Err error
}

func (e *WriteError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("diary %s (id %d) failed: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("diary %s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError wraps a failed select. List-style reads log it and return an
// empty result instead of surfacing it.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("diary %s failed: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// writeError wraps err for a write path. Initialization failures keep their
// own type so callers can tell a broken store from a rejected write.
func writeError(op string, id int64, err error) error {
	var initErr *InitError
	if errors.As(err, &initErr) {
		return err
	}
	return &WriteError{Op: op, ID: id, Err: err}
}

func readError(op string, err error) error {
	var initErr *InitError
	if errors.As(err, &initErr) {
		return err
	}
	return &ReadError{Op: op, Err: err}
}
