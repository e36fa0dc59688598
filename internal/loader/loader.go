// Package loader turns uploaded document files into raw text units for
// chunking. Format support is a closed set keyed by file extension; there
// is no content sniffing.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file too large")
)

const defaultMaxFileBytes = 10 << 20 // 10 MiB

type parseFunc func(content []byte) ([]string, error)

// parsers is the static extension dispatch table.
var parsers = map[string]parseFunc{
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".html": parseHTML,
}

type Loader struct {
	maxFileBytes int64
}

func New(maxFileBytes int64) *Loader {
	if maxFileBytes <= 0 {
		maxFileBytes = defaultMaxFileBytes
	}
	return &Loader{maxFileBytes: maxFileBytes}
}

// Supported reports whether ext (with leading dot, any case) has a parser.
func Supported(ext string) bool {
	_, ok := parsers[strings.ToLower(ext)]
	return ok
}

// Load reads the file at path and returns its raw text units. The
// extension must be one of the supported set and the file must not exceed
// the size cap.
func (l *Loader) Load(path string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > l.maxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), l.maxFileBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return l.LoadBytes(content, ext)
}

// LoadBytes parses already-read content by extension. Used by the upload
// handler, which has the multipart body in memory.
func (l *Loader) LoadBytes(content []byte, ext string) ([]string, error) {
	ext = strings.ToLower(ext)
	parse, ok := parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if int64(len(content)) > l.maxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(content), l.maxFileBytes)
	}
	return parse(content)
}

// MaxFileBytes returns the configured size cap.
func (l *Loader) MaxFileBytes() int64 {
	return l.maxFileBytes
}
