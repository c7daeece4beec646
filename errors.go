package smartedit

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrUpstreamUnavailable = errors.New("ai gateway unavailable")
	ErrPathEscape          = errors.New("path escapes target folder")
	ErrAbsolutePath        = errors.New("absolute paths are not allowed")
	ErrInvalidPath         = errors.New("invalid path")
	ErrNoTargetFolder      = errors.New("no target folder set")
	ErrNoBackup            = errors.New("no backup found")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func requiredField(field string) error {
	return &ValidationError{Field: field}
}

// ActionApplyError wraps the failure of a single file action.
type ActionApplyError struct {
	Action FileAction
	Err    error
}

func (e *ActionApplyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *ActionApplyError) Unwrap() error { return e.Err }

// ConfigPersistError wraps a failed write of the config document.
type ConfigPersistError struct {
	Path string
	Err  error
}

func (e *ConfigPersistError) Error() string {
	return fmt.Sprintf("persist config %s: %v", e.Path, e.Err)
}

func (e *ConfigPersistError) Unwrap() error { return e.Err }

// fatalError marks a gateway failure that another attempt cannot fix,
// such as a rejected credential or an unknown model.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func newFatalError(err error) error {
	return &fatalError{err: err}
}

func isFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}
