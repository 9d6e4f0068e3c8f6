package trace

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is matched by every decode failure.
var ErrMalformedRecord = errors.New("malformed trace record")

// ErrTimestampOutOfRange is returned by Marshal for a timestamp whose year
// does not fit in four digits.
var ErrTimestampOutOfRange = errors.New("timestamp outside years 0000-9999")

// MalformedRecordError describes why a record could not be decoded. Field is
// the dotted path of the offending key, e.g. "request.headers.Accept".
type MalformedRecordError struct {
	Field  string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	msg := ErrMalformedRecord.Error()
	if e.Field != "" {
		msg += fmt.Sprintf(": %s", e.Field)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

func malformed(field, reason string, err error) *MalformedRecordError {
	return &MalformedRecordError{Field: field, Reason: reason, Err: err}
}

// LineError locates a decode failure within a JSON Lines stream.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
