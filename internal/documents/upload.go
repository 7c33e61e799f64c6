package documents

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

// MaxFileSize is the per-file upload limit (10MB).
const MaxFileSize = 10 * 1024 * 1024

var (
	ErrEmptyFile          = errors.New("file is empty")
	ErrFileTooLarge       = fmt.Errorf("file too large, maximum size is %d bytes", MaxFileSize)
	ErrFileTypeNotAllowed = errors.New("file type not allowed, use PDF, JPEG, PNG or WEBP")
)

// allowed maps accepted MIME types to the extension used for stored files.
var allowed = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._ -]`)

// Inspected is the outcome of validating one uploaded file.
type Inspected struct {
	MimeType  string
	Extension string
}

// Inspect checks the declared size and sniffs the content type of r.
// The content is identified from its bytes, never from the client's
// filename or Content-Type header. r is rewound before returning.
func Inspect(r io.ReadSeeker, size int64) (*Inspected, error) {
	if size <= 0 {
		return nil, ErrEmptyFile
	}
	if size > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	for m, ext := range allowed {
		if mt.Is(m) {
			return &Inspected{MimeType: m, Extension: ext}, nil
		}
	}
	return nil, ErrFileTypeNotAllowed
}

// StoredFilename returns a unique, time-sortable name for a stored file.
func StoredFilename(ext string) string {
	return strings.ToLower(ulid.Make().String()) + ext
}

// CleanFilename strips path components and unusual characters from a
// client-supplied filename so it is safe to display and log.
func CleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	return name
}
