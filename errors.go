package extentfs

import (
	"fmt"
	"syscall"
)

// DriverError is the error surface returned by every file system operation.
// The bridge translates it to a host errno with [ErrnoOf].
type DriverError interface {
	error
	WithMessage(message string) DriverError
	WrapError(err error) DriverError
}

// Error is a base driver error. Each constant corresponds to one POSIX errno
// condition; wrapped errors produced by WithMessage and WrapError still match
// the base constant via [errors.Is].
type Error string

const ErrExists = Error("File exists")
const ErrInvalidArgument = Error("Invalid argument")
const ErrInvalidImage = Error("Wrong medium type")
const ErrIsADirectory = Error("Is a directory")
const ErrNameTooLong = Error("File name too long")
const ErrNoSpaceOnDevice = Error("No space left on device")
const ErrNotADirectory = Error("Not a directory")
const ErrDirectoryNotEmpty = Error("Directory not empty")
const ErrNotFound = Error("No such file or directory")
const ErrNotSupported = Error("Operation not supported")
const ErrOutOfMemory = Error("Cannot allocate memory")
const ErrReadOnlyFileSystem = Error("Read-only file system")

// errnoCodes maps each base error to the errno value reported to the host.
var errnoCodes = map[Error]syscall.Errno{
	ErrExists:             syscall.EEXIST,
	ErrInvalidArgument:    syscall.EINVAL,
	ErrInvalidImage:       syscall.EMEDIUMTYPE,
	ErrIsADirectory:       syscall.EISDIR,
	ErrNameTooLong:        syscall.ENAMETOOLONG,
	ErrNoSpaceOnDevice:    syscall.ENOSPC,
	ErrNotADirectory:      syscall.ENOTDIR,
	ErrDirectoryNotEmpty:  syscall.ENOTEMPTY,
	ErrNotFound:           syscall.ENOENT,
	ErrNotSupported:       syscall.ENOTSUP,
	ErrOutOfMemory:        syscall.ENOMEM,
	ErrReadOnlyFileSystem: syscall.EROFS,
}

func (e Error) Error() string {
	return string(e)
}

// Errno returns the errno value the bridge should report for this error.
func (e Error) Errno() syscall.Errno {
	code, ok := errnoCodes[e]
	if !ok {
		return syscall.EIO
	}
	return code
}

// WithMessage returns a new error that wraps `e` with a more specific message.
func (e Error) WithMessage(message string) DriverError {
	return wrappedError{
		message:       message,
		originalError: e,
	}
}

// WrapError returns a new error that matches `e` and whose message appends
// the text of `err`. Only `e` is in the unwrap chain; `err` is kept as text.
func (e Error) WrapError(err error) DriverError {
	return wrappedError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: e,
	}
}

// -----------------------------------------------------------------------------

type wrappedError struct {
	message       string
	originalError error
}

func (e wrappedError) Error() string {
	return e.message
}

func (e wrappedError) WithMessage(message string) DriverError {
	return wrappedError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e wrappedError) WrapError(err error) DriverError {
	return wrappedError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: e,
	}
}

func (e wrappedError) Unwrap() error {
	return e.originalError
}

// ErrnoOf reports the errno value for any error coming out of a driver
// operation, unwrapping as needed. Unrecognized errors map to EIO.
func ErrnoOf(err error) syscall.Errno {
	for err != nil {
		if base, ok := err.(Error); ok {
			return base.Errno()
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return syscall.EIO
}
