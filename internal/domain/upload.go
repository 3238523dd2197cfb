package domain

import "strings"

// uploadSignatures are container magic numbers keyed by extension: .xlsx is
// a ZIP archive, .xls an OLE compound document.
var uploadSignatures = map[string][]byte{
	".xlsx": {0x50, 0x4B, 0x03, 0x04},
	".xls":  {0xD0, 0xCF, 0x11, 0xE0},
}

// NormalizeExtension lower-cases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// UploadSignature returns the magic number expected for ext, if any.
func UploadSignature(ext string) ([]byte, bool) {
	sig, ok := uploadSignatures[NormalizeExtension(ext)]
	return sig, ok
}
