package model

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"
)

// UploadedImage is the raw floor-plan image received once per request.
// It lives only for the duration of that request.
type UploadedImage struct {
	// Filename is the original file name supplied by the caller.
	// It is forwarded verbatim to the image host as the "name" field.
	Filename string `json:"filename"`

	// ContentType is the MIME type reported by the caller, if any.
	ContentType string `json:"content_type,omitempty"`

	// Data holds the whole file in memory.
	Data []byte `json:"-"`
}

// NewUploadedImage creates an UploadedImage from raw bytes.
func NewUploadedImage(filename, contentType string, data []byte) *UploadedImage {
	return &UploadedImage{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
	}
}

// Size returns the image size in bytes.
func (u *UploadedImage) Size() int {
	return len(u.Data)
}

// IsEmpty reports whether the upload carries no bytes.
func (u *UploadedImage) IsEmpty() bool {
	return u == nil || len(u.Data) == 0
}

// Digest returns the hex encoded SHA3-256 digest of the image bytes.
// The digest lets the history store recognize repeated uploads of the same plan.
func (u *UploadedImage) Digest() string {
	sum := sha3.Sum256(u.Data)
	return hex.EncodeToString(sum[:])
}

// Extension returns the lower-cased file extension without the dot.
func (u *UploadedImage) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Filename), "."))
}
