package layout

import (
	"errors"
	"fmt"
)

// Error codes for layout failures
const (
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeConversionFailed  = "CONVERSION_FAILED"
	ErrCodePageLimitExceeded = "PAGE_LIMIT_EXCEEDED"
	ErrCodeRenderingDegraded = "RENDERING_DEGRADED"
)

// SupportedFormats lists the extensions accepted by the converter, in the
// order they are presented to end users.
var SupportedFormats = []string{
	"pdf", "jpg", "jpeg", "png", "webp", "tiff", "heic", "heif",
	"doc", "docx", "xls", "xlsx", "ppt", "pptx", "odt", "ods", "odp", "txt", "rtf",
}

// Error is returned by every stage of the layout pipeline.
type Error struct {
	Code    string
	Message string
	// Pages carries the offending page count for PAGE_LIMIT_EXCEEDED.
	Pages int
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func pageLimitError(pages int) *Error {
	return &Error{
		Code:    ErrCodePageLimitExceeded,
		Message: fmt.Sprintf("too many pages (%d), at most %d are allowed", pages, MaxPages),
		Pages:   pages,
	}
}

func unsupportedFormatError(fileName string, cause error) *Error {
	return NewError(ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported file format: %q", fileName), cause)
}

// IsCode reports whether err is a layout Error with the given code.
func IsCode(err error, code string) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// PageLimitPages returns the page count carried by a PAGE_LIMIT_EXCEEDED
// error, or 0 when err is something else.
func PageLimitPages(err error) int {
	var le *Error
	if errors.As(err, &le) && le.Code == ErrCodePageLimitExceeded {
		return le.Pages
	}
	return 0
}

func checkPageLimit(pages int) error {
	if pages > MaxPages {
		return pageLimitError(pages)
	}
	return nil
}
