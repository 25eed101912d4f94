package covstore

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrStoreUnavailable wraps every failure of the underlying key-value store.
	// Operations are not retried, retry policies belong to the caller.
	ErrStoreUnavailable = errors.New("coverage store unavailable")

	// ErrKeyCollision reports a stored key that can't be mapped back to exactly one
	// (namespace, type, path). Keys are constructed deterministically, so this is an invariant violation.
	ErrKeyCollision = errors.New("coverage key collision")

	// ErrMergeConflict is returned when a record could not be merged within the configured
	// number of compare-and-swap attempts or the lock could not be acquired in time.
	ErrMergeConflict = errors.New("coverage merge conflict")

	// ErrInvalidNamespace is returned for namespaces containing the key separator
	ErrInvalidNamespace = errors.New("namespace must not contain '.'")

	// ErrReadOnlyType is returned when saving under a type that is not stored (e.g. merged)
	ErrReadOnlyType = errors.New("coverage type is read-only")
)

// unavailableError marks an error of the key-value store
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStoreUnavailable, e.err)
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *unavailableError) Unwrap() error {
	return e.err
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &unavailableError{err: err}
}

// FileError is the failure to save the coverage of a single file.
// SaveReport returns one FileError per failed file, combined in a *multierror.Error.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// FailedFiles returns the files of all FileErrors contained in err
func FailedFiles(err error) []string {
	var files []string
	collect := func(e error) {
		var fe *FileError
		if errors.As(e, &fe) {
			files = append(files, fe.File)
		}
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.WrappedErrors() {
			collect(e)
		}
	} else if err != nil {
		collect(err)
	}
	return files
}
