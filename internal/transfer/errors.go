package transfer

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"io/fs"

	"gorm.io/gorm"
)

// Kind classifies import and export failures.
type Kind string

const (
	KindFileNotFound Kind = "FILE_NOT_FOUND"
	KindParse        Kind = "PARSE"
	KindOutOfMemory  Kind = "OUT_OF_MEMORY"
	KindConstraint   Kind = "CONSTRAINT"
	KindIO           Kind = "IO"
)

var messages = map[Kind]string{
	KindFileNotFound: "The selected file could not be found.",
	KindParse:        "The file is not a valid journal export.",
	KindOutOfMemory:  "The file is too large to import.",
	KindConstraint:   "The file contains conflicting or dangling records.",
	KindIO:           "The journal could not be read or written.",
}

var (
	errTooLarge = errors.New("document exceeds the import size limit")
	errDangling = errors.New("dangling reference")
	errInvalid  = errors.New("invalid record")
	// errUnsupported marks documents written by a newer format version.
	errUnsupported = errors.New("unsupported document")
)

// Error is a classified failure with a message for the user and a technical
// detail they can copy into a bug report.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	err     error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.err
}

// Classify maps err into the failure taxonomy. It returns nil for nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return &Error{Kind: kindOf(err), Message: messages[kindOf(err)], Detail: err.Error(), err: err}
}

func kindOf(err error) Kind {
	var (
		syntaxErr    *json.SyntaxError
		typeErr      *json.UnmarshalTypeError
		corruptInput base64.CorruptInputError
	)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindFileNotFound
	case errors.Is(err, errTooLarge):
		return KindOutOfMemory
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.As(err, &corruptInput),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, errInvalid), errors.Is(err, errUnsupported):
		return KindParse
	case errors.Is(err, errDangling), errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated):
		return KindConstraint
	default:
		return KindIO
	}
}
