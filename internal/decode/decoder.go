// Package decode turns captured image bytes into pixels.
package decode

import (
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/glance/internal/domain"
)

// FitzDecoder decodes JPEG and PNG captures with MuPDF through go-fitz.
type FitzDecoder struct {
	validator *Validator
}

// NewFitzDecoder creates a decoder that rejects images larger than maxBytes.
func NewFitzDecoder(maxBytes int) *FitzDecoder {
	return &FitzDecoder{validator: NewValidator(maxBytes)}
}

// Decode validates data and renders its first (only) page.
func (d *FitzDecoder) Decode(data []byte) (image.Image, error) {
	if err := d.validator.ValidateImage(data); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.DecodeError("failed to open image", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, domain.DecodeError("image has no frames", nil)
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, domain.DecodeError("failed to render image", err)
	}

	return img, nil
}
