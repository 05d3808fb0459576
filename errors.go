package matio

import (
	"errors"
	"io/fs"

	"github.com/serum-errors/go-serum"

	"github.com/robert-malhotra/go-matio/internal/matfile"
)

// Error codes. Every error returned by File and the package functions
// carries one of these, retrievable with serum.Code.
const (
	CodeNotOpen      = "matio-error-not-open"
	CodeReadOnly     = "matio-error-read-only"
	CodeInvalidInput = "matio-error-invalid-input"
	CodeIO           = "matio-error-io"
	CodeFormat       = "matio-error-format"
	CodeNotFound     = "matio-error-not-found"
	CodeExists       = "matio-error-exists"
	CodeUnsupported  = "matio-error-unsupported"
)

// ErrorNotOpen is returned when an operation needs an open file.
//
// Errors:
//
//   - matio-error-not-open --
func ErrorNotOpen(op string) error {
	result := serum.Error(CodeNotOpen, serum.WithMessageLiteral("the file is not open"))
	addDetails(result, [][2]string{{"op", op}})
	return result
}

// ErrorReadOnly is returned when writing through a read-only handle.
//
// Errors:
//
//   - matio-error-read-only --
func ErrorReadOnly(op string, path string) error {
	result := serum.Error(CodeReadOnly, serum.WithMessageLiteral("the file cannot be written"))
	addDetails(result, [][2]string{{"op", op}, {"path", path}})
	return result
}

// ErrorInvalidInput is returned for invalid variables and arguments.
// The caller formats the message.
//
// Errors:
//
//   - matio-error-invalid-input --
func ErrorInvalidInput(op string, message string) error {
	result := serum.Error(CodeInvalidInput, serum.WithMessageLiteral(message))
	addDetails(result, [][2]string{{"op", op}})
	return result
}

// ErrorIo wraps filesystem failures.
//
// Errors:
//
//   - matio-error-io --
func ErrorIo(op string, path string, cause error) error {
	result := serum.Errorf(CodeIO, "io error on %q: %w", path, cause)
	addDetails(result, [][2]string{{"op", op}, {"path", path}})
	return result
}

// ErrorUnsupported is returned for operations a file version cannot do.
//
// Errors:
//
//   - matio-error-unsupported --
func ErrorUnsupported(op string, message string) error {
	result := serum.Error(CodeUnsupported, serum.WithMessageLiteral(message))
	addDetails(result, [][2]string{{"op", op}})
	return result
}

// errorFromContainer turns a container error into a coded error.
//
// Errors:
//
//   - matio-error-not-found -- the variable is absent
//   - matio-error-exists -- a variable of that name is already stored
//   - matio-error-read-only -- the container refused a write
//   - matio-error-unsupported -- the version cannot hold or decode the variable
//   - matio-error-invalid-input -- the variable is malformed
//   - matio-error-io -- the filesystem failed
//   - matio-error-format -- the file contents could not be decoded
func errorFromContainer(op string, path string, variable string, cause error) error {
	code := CodeFormat
	var pathErr *fs.PathError
	switch {
	case errors.Is(cause, matfile.ErrNotFound):
		code = CodeNotFound
	case errors.Is(cause, matfile.ErrExists):
		code = CodeExists
	case errors.Is(cause, matfile.ErrReadOnly):
		code = CodeReadOnly
	case errors.Is(cause, matfile.ErrUnsupported):
		code = CodeUnsupported
	case errors.Is(cause, matfile.ErrInvalid):
		code = CodeInvalidInput
	case errors.Is(cause, matfile.ErrFormat):
		code = CodeFormat
	case errors.As(cause, &pathErr), errors.Is(cause, fs.ErrNotExist), errors.Is(cause, fs.ErrPermission):
		code = CodeIO
	}
	result := serum.Errorf(code, "%s: %w", op, cause)
	details := [][2]string{{"op", op}, {"path", path}}
	if variable != "" {
		details = append(details, [2]string{"variable", variable})
	}
	addDetails(result, details)
	return result
}

func addDetails(err error, details [][2]string) {
	s := err.(*serum.ErrorValue)
	s.Data.Details = append(s.Data.Details, details...)
}
