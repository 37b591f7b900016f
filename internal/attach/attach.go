// Package attach validates and stores note attachments. The validation
// rules are enforced on both sides of the wire: the editor rejects a bad
// file before uploading and the API rejects one that arrives anyway.
package attach

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSize is the attachment size ceiling in bytes.
const MaxSize = 5 << 20

var (
	ErrUnsupportedType = errors.New("attachment must be an image or a PDF")
	ErrTooLarge        = fmt.Errorf("attachment exceeds %d bytes", MaxSize)
)

// AllowedType reports whether the MIME type may be attached to a note:
// any image/* subtype or application/pdf.
func AllowedType(mimeType string) bool {
	if strings.HasPrefix(mimeType, "image/") {
		return len(mimeType) > len("image/")
	}
	return mimeType == "application/pdf"
}

// Validate checks one candidate attachment against the shared rules.
func Validate(mimeType string, size int64) error {
	if !AllowedType(mimeType) {
		return fmt.Errorf("%w (got %q)", ErrUnsupportedType, mimeType)
	}
	if size > MaxSize {
		return fmt.Errorf("%w (got %d)", ErrTooLarge, size)
	}
	return nil
}
