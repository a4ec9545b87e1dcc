package export

import (
	"errors"
	"fmt"
)

// Stable failure codes recorded on export jobs and surfaced to pollers.
const (
	CodeBadRequest       = "E_BAD_REQUEST"
	CodePagingParam      = "E_PAGING_PARAM"
	CodeFieldNotFound    = "E_FIELD_NOT_FOUND"
	CodeNodeNotFound     = "E_NODE_NOT_FOUND"
	CodeTransport        = "E_TRANSPORT"
	CodeUpstreamErrors   = "E_UPSTREAM_ERRORS"
	CodeUpstreamProblems = "E_UPSTREAM_PROBLEMS"
	CodeArtifactWrite    = "E_ARTIFACT_WRITE_FAILED"
	CodeDatasetNotFound  = "E_DATASET_NOT_FOUND"
)

// Error wraps export failures with a stable code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func wrapError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

func errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the failure code from an error chain, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDatasetNotFound reports whether err means an unknown dataset id.
func IsDatasetNotFound(err error) bool {
	return CodeOf(err) == CodeDatasetNotFound
}
