package decode

import (
	"bytes"
	"fmt"

	"github.com/spherical/glance/internal/domain"
)

// DefaultMaxBytes bounds a single capture.
const DefaultMaxBytes = 8 * 1024 * 1024

var (
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
)

// Validator provides input validation for captured images
type Validator struct {
	maxBytes int
}

// NewValidator creates a new validator instance
func NewValidator(maxBytes int) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// ValidateImage checks that data looks like a JPEG or PNG within the size limit
func (v *Validator) ValidateImage(data []byte) error {
	if len(data) == 0 {
		return domain.DecodeError("image is empty", nil)
	}

	if len(data) > v.maxBytes {
		return domain.DecodeError(fmt.Sprintf("image is %d bytes, limit is %d", len(data), v.maxBytes), nil)
	}

	if !bytes.HasPrefix(data, jpegMagic) && !bytes.HasPrefix(data, pngMagic) {
		return domain.DecodeError("image is neither JPEG nor PNG", nil)
	}

	return nil
}

// ValidateQuality validates the capture quality parameter
func (v *Validator) ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}
