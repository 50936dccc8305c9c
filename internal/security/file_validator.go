package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned for source files above the configured size limit
var ErrTooLarge = errors.New("file exceeds the maximum source size")

// ErrBinary is returned for files whose header is not text
var ErrBinary = errors.New("file appears to be binary (source extension on binary file)")

// FileValidator checks source files before the build reads them fully.
// Bundled vendor blobs and mislabeled binaries are refused instead of parsed.
type FileValidator struct {
	MaxSize    int64 // 0 disables the size limit
	HeaderSize int64 // Bytes inspected for binary content
}

func NewFileValidator(maxSize int64) *FileValidator {
	return &FileValidator{
		MaxSize:    maxSize,
		HeaderSize: 64 * 1024,
	}
}

// Validate reads only the header of path and reports why it should not be resolved
func (fv *FileValidator) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if fv.MaxSize > 0 && info.Size() > fv.MaxSize {
		return fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, info.Size(), fv.MaxSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, min(fv.HeaderSize, info.Size()))
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read header: %w", err)
	}
	return fv.ValidateHeader(path, header[:n])
}

// ValidateHeader checks an in-memory header, for callers that already hold the content
func (fv *FileValidator) ValidateHeader(path string, header []byte) error {
	if err := checkMagicBytes(header); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if isBinaryData(header) {
		return ErrBinary
	}
	return nil
}

// Signatures of formats that sometimes end up in a source tree under a script name
var magicBytes = map[string][]byte{
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"jpeg": {0xFF, 0xD8, 0xFF},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"pdf":  {0x25, 0x50, 0x44, 0x46, 0x2D},
	"zip":  {0x50, 0x4B, 0x03, 0x04},
	"wasm": {0x00, 0x61, 0x73, 0x6D},
	"exe":  {0x4D, 0x5A, 0x90, 0x00},
}

func checkMagicBytes(header []byte) error {
	for format, magic := range magicBytes {
		if bytes.HasPrefix(header, magic) {
			return fmt.Errorf("%w: %s signature", ErrBinary, strings.ToUpper(format))
		}
	}
	return nil
}

// isBinaryData reports whether data holds a NUL byte or more than 30% control bytes
func isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range data {
		// Control characters other than tab, LF, VT, FF, CR
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(data)) > 0.3
}
