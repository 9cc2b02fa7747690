package zipup

import (
	"errors"
	"fmt"
)

// ErrEmptyArchive is returned when an archive decodes but holds no files.
var ErrEmptyArchive = errors.New("the ZIP file is empty or contains no files")

// ErrEmptyMemberName is wrapped in a *DecodeError when an archive member has no name.
var ErrEmptyMemberName = errors.New("archive member has an empty name")

// ErrUnprocessable is wrapped by ObjectAPI implementations when the remote
// rejects a request as unprocessable (HTTP 422 on GitHub). For repository
// creation this means the name is taken or invalid.
var ErrUnprocessable = errors.New("unprocessable entity")

// InputValidationError reports a missing caller-supplied field.
type InputValidationError struct {
	Field string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("missing required input: %s", e.Field)
}

// DecodeError reports that the archive bytes are not a readable ZIP container.
type DecodeError struct {
	Path string // member being read, empty when the container itself is bad
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("decoding archive member %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("decoding archive: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RepositoryConflictError reports that the remote refused the repository name.
type RepositoryConflictError struct {
	Name string
	Err  error
}

func (e *RepositoryConflictError) Error() string {
	return fmt.Sprintf("repository '%s' already exists or name is invalid", e.Name)
}

func (e *RepositoryConflictError) Unwrap() error { return e.Err }

// RepositoryCreateError wraps any other repository creation failure.
type RepositoryCreateError struct {
	Err error
}

func (e *RepositoryCreateError) Error() string {
	return fmt.Sprintf("failed to create repository: %v", e.Err)
}

func (e *RepositoryCreateError) Unwrap() error { return e.Err }

// RemoteCallError wraps a failure from any remote step after repository creation.
type RemoteCallError struct {
	Stage Stage
	Err   error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage.describe(), e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }
