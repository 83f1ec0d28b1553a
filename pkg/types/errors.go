package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")

	ErrDocumentNotFound      = fmt.Errorf("document %w", ErrNotFound)
	ErrDocumentTypeNotFound  = fmt.Errorf("document type %w", ErrNotFound)
	ErrOwnerNotFound         = fmt.Errorf("owner %w", ErrNotFound)
	ErrChecklistItemNotFound = fmt.Errorf("checklist item %w", ErrNotFound)
	ErrTemplateNotFound      = fmt.Errorf("checklist template %w", ErrNotFound)

	// ErrDocumentAlreadyReviewed guards the PENDING -> APPROVED|REJECTED
	// transition; reviewed documents are replaced by a new upload instead.
	ErrDocumentAlreadyReviewed = &ValidationError{Field: "status", Message: "document has already been reviewed"}

	ErrStorageWrite  = errors.New("storage write failed")
	ErrStorageRead   = errors.New("storage read failed")
	ErrStorageDelete = errors.New("storage delete failed")

	ErrRenameInProgress = errors.New("owner folder rename already in progress")
)

// ValidationError is bad input rejected before any I/O. Message is safe to
// show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type StorageOp string

const (
	StorageOpWrite  StorageOp = "write"
	StorageOpRead   StorageOp = "read"
	StorageOpDelete StorageOp = "delete"
)

// StorageError wraps a failure from the object store. errors.Is matches the
// ErrStorage* sentinel for its Op.
type StorageError struct {
	Op  StorageOp
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	switch e.Op {
	case StorageOpWrite:
		return target == ErrStorageWrite
	case StorageOpRead:
		return target == ErrStorageRead
	case StorageOpDelete:
		return target == ErrStorageDelete
	}
	return false
}

// SequenceViolation is returned when an item is completed before every
// earlier item on the same event.
type SequenceViolation struct {
	ItemID   string
	Label    string
	Blocking []string
}

func (e *SequenceViolation) Error() string {
	return fmt.Sprintf("cannot complete %q before: %s", e.Label, strings.Join(e.Blocking, ", "))
}

// PartialRenameError reports a folder rename where some objects could not be
// moved. Rows for the moved objects have already been rewritten.
type PartialRenameError struct {
	Moved      int
	FailedKeys []string
}

func (e *PartialRenameError) Error() string {
	return fmt.Sprintf("owner folder rename incomplete: %d moved, %d failed", e.Moved, len(e.FailedKeys))
}
