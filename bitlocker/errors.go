// Package bitlocker provides read-only access to the decrypted contents of
// BitLocker Drive Encryption (BDE) volume images.
//
// A Volume is opened from a file path or any random-access data source,
// unlocked with a password, recovery password, startup key file or clear
// key, and then read through a seekable byte-stream API that decrypts
// sectors on demand.
package bitlocker

import (
	"errors"
	"fmt"
)

// Sentinel errors. All errors returned by this package match exactly one of
// these via errors.Is.
var (
	// ErrInvalidArgument is returned when a caller-supplied value is out of
	// range or malformed.
	ErrInvalidArgument = errors.New("bitlocker: invalid argument")

	// ErrUnsupportedMode is returned when a volume is opened with an access
	// mode other than read-only.
	ErrUnsupportedMode = errors.New("bitlocker: unsupported access mode")

	// ErrNotOpen is returned when an operation requires an open volume.
	ErrNotOpen = errors.New("bitlocker: volume not open")

	// ErrAlreadyOpen is returned when opening a volume that is already open.
	ErrAlreadyOpen = errors.New("bitlocker: volume already open")

	// ErrLocked is returned when reading from a volume whose keys could not
	// be resolved.
	ErrLocked = errors.New("bitlocker: volume is locked")

	// ErrUnableToUnlock is returned by Unlock when no key protector could be
	// satisfied with the provided credentials.
	ErrUnableToUnlock = errors.New("bitlocker: unable to unlock volume")

	// ErrAborted is returned when SignalAbort interrupts a long-running
	// operation.
	ErrAborted = errors.New("bitlocker: operation aborted")

	// ErrFormat is the class of all on-disk format violations.
	ErrFormat = errors.New("bitlocker: invalid volume format")

	// ErrTruncatedInput is the class of all errors caused by a data source
	// that ends before a declared structure is complete.
	ErrTruncatedInput = errors.New("bitlocker: truncated input")

	// ErrIO is the class of all errors originating in the underlying data
	// source.
	ErrIO = errors.New("bitlocker: input/output error")
)

// FormatError reports data that violates the BDE on-disk format. It matches
// ErrFormat via errors.Is.
type FormatError struct {
	// Offset is the byte offset of the structure that failed to parse,
	// relative to the start of the volume.
	Offset int64

	// Err is the underlying parse error.
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bitlocker: invalid volume format at offset %d: %v", e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// TruncatedInputError reports a data source that ends before a declared
// structure is complete. It matches ErrTruncatedInput via errors.Is.
type TruncatedInputError struct {
	// Offset is the byte offset of the structure that could not be read in
	// full.
	Offset int64

	// Err is the underlying error.
	Err error
}

func (e *TruncatedInputError) Error() string {
	return fmt.Sprintf("bitlocker: truncated input at offset %d: %v", e.Offset, e.Err)
}

func (e *TruncatedInputError) Unwrap() error { return e.Err }

func (e *TruncatedInputError) Is(target error) bool { return target == ErrTruncatedInput }

// IOError reports a failure of the underlying data source. It matches ErrIO
// via errors.Is.
type IOError struct {
	// Op is the operation that failed, for example "read" or "open".
	Op string

	// Err is the error reported by the data source.
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("bitlocker: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }
