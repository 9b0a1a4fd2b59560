package core

// document.go loads uploaded or fetched files into memory before any row is
// processed. Decoding is fallible: a file that is not valid UTF-8 is rejected
// with a DocumentError instead of being sanitized, so no partial writes happen
// for a file whose bytes cannot be trusted.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultMaxFileSize is the default upper bound for a single document (50MB).
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	errFileTooLarge = errors.New("file too large")
	errEmptyFile    = errors.New("empty file")
)

// readDocument reads doc fully, strips a UTF-8 BOM and validates the encoding.
func readDocument(doc Document, maxSize int64) ([]byte, error) {
	if doc.Reader == nil {
		return nil, &DocumentError{File: doc.Name, Err: ErrNoDocuments}
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(doc.Reader, maxSize+1))
	if err != nil {
		return nil, &DocumentError{File: doc.Name, Err: fmt.Errorf("read: %w", err)}
	}
	if int64(len(data)) > maxSize {
		return nil, &DocumentError{File: doc.Name, Err: fmt.Errorf("%w: exceeds %d bytes", errFileTooLarge, maxSize)}
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &DocumentError{File: doc.Name, Err: errEmptyFile}
	}

	if offset := invalidUTF8Offset(data); offset >= 0 {
		return nil, &DocumentError{
			File: doc.Name,
			Err:  fmt.Errorf("encoding error: invalid UTF-8 at byte %d", offset),
		}
	}
	return data, nil
}

// invalidUTF8Offset returns the offset of the first invalid UTF-8 sequence, or -1.
func invalidUTF8Offset(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
