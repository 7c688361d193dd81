package pipeline

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why a Target failed.
type ErrorCode int

const (
	ErrorUnsupportedArchitecture ErrorCode = 1
	ErrorToolMissing             ErrorCode = 2
	ErrorFetch                   ErrorCode = 3
	ErrorChecksum                ErrorCode = 4
	ErrorBootstrapStage1         ErrorCode = 5
	ErrorBootstrapStage2         ErrorCode = 6
	ErrorConfigure               ErrorCode = 7
	ErrorPackageUpdate           ErrorCode = 8
	ErrorFinalize                ErrorCode = 9
	ErrorArchive                 ErrorCode = 10
	ErrorRelease                 ErrorCode = 11
	ErrorInvalidRelease          ErrorCode = 12
	ErrorEmulation               ErrorCode = 13
	ErrorCancelled               ErrorCode = 14
	ErrorInternal                ErrorCode = 15
)

var codeNames = map[ErrorCode]string{
	ErrorUnsupportedArchitecture: "unsupported-architecture",
	ErrorToolMissing:             "tool-missing",
	ErrorFetch:                   "fetch",
	ErrorChecksum:                "checksum",
	ErrorBootstrapStage1:         "bootstrap-stage1",
	ErrorBootstrapStage2:         "bootstrap-stage2",
	ErrorConfigure:               "configure",
	ErrorPackageUpdate:           "package-update",
	ErrorFinalize:                "finalize",
	ErrorArchive:                 "archive",
	ErrorRelease:                 "release",
	ErrorInvalidRelease:          "invalid-release",
	ErrorEmulation:               "emulation",
	ErrorCancelled:               "cancelled",
	ErrorInternal:                "internal",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error-%d", int(c))
}

func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Error is the failure of one step of a Target.
type Error struct {
	ID      ErrorCode   `json:"id" yaml:"id"`
	Reason  string      `json:"reason" yaml:"reason"`
	Details interface{} `json:"details,omitempty" yaml:"details,omitempty"`

	err error
}

// NewError wraps err with a code and a reason. err may be nil.
func NewError(code ErrorCode, reason string, err error) *Error {
	e := &Error{ID: code, Reason: reason, err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.ID, e.Reason, e.err)
	}
	return fmt.Sprintf("%s: %s", e.ID, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.err
}

// CodeOf returns the code of the first *Error in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.ID
	}
	return 0
}
