package services

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
)

type fileValidator struct {
	allowed  map[string][]byte
	maxBytes int64
}

// NewFileValidator accepts the configured extensions that have a known
// signature. maxBytes <= 0 disables the size ceiling.
func NewFileValidator(extensions []string, maxBytes int64) ports.FileValidator {
	allowed := make(map[string][]byte, len(extensions))
	for _, ext := range extensions {
		if sig, ok := domain.UploadSignature(ext); ok {
			allowed[domain.NormalizeExtension(ext)] = sig
		}
	}
	return &fileValidator{allowed: allowed, maxBytes: maxBytes}
}

// Validate peeks at the stream and restores its position before returning.
func (v *fileValidator) Validate(r io.ReadSeeker, declaredName string) ports.ValidationResult {
	name := strings.TrimSpace(declaredName)
	if name == "" {
		return reject("no file selected")
	}

	ext := strings.ToLower(filepath.Ext(name))
	sig, ok := v.allowed[ext]
	if !ok {
		return reject(fmt.Sprintf("file type %q is not allowed, expected one of %s", ext, v.extensionList()))
	}

	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return reject("file is not readable")
	}
	defer r.Seek(start, io.SeekStart)

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return reject("file is not readable")
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		return reject(fmt.Sprintf("file is %d bytes, the limit is %d", size, v.maxBytes))
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return reject("file is not readable")
	}
	header := make([]byte, len(sig))
	if _, err := io.ReadFull(r, header); err != nil {
		return reject("file is too short to be a spreadsheet")
	}
	if !bytes.Equal(header, sig) {
		return reject(fmt.Sprintf("file content does not match the %s format", ext))
	}

	return ports.ValidationResult{OK: true}
}

func (v *fileValidator) extensionList() string {
	exts := make([]string, 0, len(v.allowed))
	for ext := range v.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

func reject(reason string) ports.ValidationResult {
	return ports.ValidationResult{OK: false, Reason: reason}
}
