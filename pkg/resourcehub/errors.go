package resourcehub

import (
	"errors"
	"fmt"
)

// Error kinds
var (
	// ErrValidation indicates malformed or missing required input
	ErrValidation = errors.New("validation failed")

	// ErrResourceNotFound indicates no resource record exists for an id
	ErrResourceNotFound = errors.New("resource not found")

	// ErrBlobNotFound indicates the blob behind a storage path is missing
	ErrBlobNotFound = errors.New("blob not found")

	// ErrBlobExists indicates an upload targeted a key that is already taken
	ErrBlobExists = errors.New("blob already exists")

	// ErrDownloadCountDecrease indicates an update tried to lower the download count
	ErrDownloadCountDecrease = errors.New("download count cannot decrease")

	// ErrStorageWrite indicates the blob store rejected a write
	ErrStorageWrite = errors.New("storage write failed")

	// ErrPersistence indicates the metadata store failed
	ErrPersistence = errors.New("metadata persistence failed")
)

// IsNotFound reports whether err means the resource or its blob is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrBlobNotFound)
}

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ResourceError represents an error related to resource operations
type ResourceError struct {
	ID  int64
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("resource operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("resource operation %s failed for resource %d: %v", e.Op, e.ID, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
