package app

import (
	"time"

	"zipup/internal/zipup"
)

// UploadOperation tracks one upload run. It is created in memory with ID=0
// and gets its history row id once recorded.
type UploadOperation struct {
	ID          int64
	OperationID string
	Repository  string
	Status      string
	Files       int
	URL         string
	Err         error
}

// NewUploadOperation creates a running, unrecorded operation.
func NewUploadOperation(operationID, repository string) *UploadOperation {
	return &UploadOperation{
		OperationID: operationID,
		Repository:  repository,
		Status:      zipup.StatusRunning,
	}
}

// Persisted returns true if this operation has been saved to the history.
func (op *UploadOperation) Persisted() bool {
	return op.ID != 0
}

// Finish records the pipeline result on the operation.
func (op *UploadOperation) Finish(res *zipup.UploadResult, err error) {
	if err != nil {
		op.Status = zipup.StatusError
		op.Err = err
		return
	}
	op.Status = zipup.StatusSuccess
	if res != nil {
		op.URL = res.URL
		op.Files = res.Files
	}
}

// Outcome converts the finished operation into a history outcome.
func (op *UploadOperation) Outcome(finishedAt time.Time) zipup.UploadOutcome {
	out := zipup.UploadOutcome{
		Status:     op.Status,
		URL:        op.URL,
		Files:      op.Files,
		FinishedAt: finishedAt,
	}
	if op.Err != nil {
		out.Error = op.Err.Error()
	}
	if out.Status == zipup.StatusRunning {
		// Never finished: treat as an error so the row is closed.
		out.Status = zipup.StatusError
		if out.Error == "" {
			out.Error = "upload did not finish"
		}
	}
	return out
}
