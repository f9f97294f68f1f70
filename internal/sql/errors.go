package sql

import "errors"

// Cursor misuse errors.
var (
	// ErrForwardOnly is returned when a forward-only cursor is asked to move
	// anywhere but the next row.
	ErrForwardOnly = errors.New("cursor is forward-only")

	// ErrResultClosed is returned by operations on a closed result.
	ErrResultClosed = errors.New("result is closed")

	// ErrAbsoluteUnsupported is returned by cursors that cannot address rows
	// by number, such as the distributed row set.
	ErrAbsoluteUnsupported = errors.New("absolute positioning is not supported")

	// ErrNoRow is returned when a value is read while the cursor is not on a
	// row.
	ErrNoRow = errors.New("cursor is not positioned on a row")
)
