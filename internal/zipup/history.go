package zipup

import "time"

// Upload status values recorded in the history.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// UploadRecord is one pipeline attempt as kept in the upload history.
type UploadRecord struct {
	ID          int64
	OperationID string
	Owner       string
	Repository  string
	Archive     string // where the archive was loaded from
	Status      string
	URL         string
	Files       int
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// UploadOutcome closes an UploadRecord.
type UploadOutcome struct {
	Status     string
	URL        string
	Files      int
	Error      string
	FinishedAt time.Time
}

// History stores upload attempts. It is a record only; nothing in the
// pipeline reads it back, so a failed run cannot be resumed from it.
type History interface {
	// CreateUpload inserts rec with status running and sets rec.ID.
	CreateUpload(rec *UploadRecord) error

	// FinishUpload records the outcome of the upload with the given id.
	FinishUpload(id int64, outcome UploadOutcome) error

	// ListUploads returns the most recent uploads, newest first.
	ListUploads(limit int) ([]*UploadRecord, error)

	// FindUpload returns the upload with the given operation id, or nil if none exists.
	FindUpload(operationID string) (*UploadRecord, error)

	// CheckMigrations reports whether the store schema is current.
	CheckMigrations() error

	// Close closes the underlying store.
	Close() error
}
