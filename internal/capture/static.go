package capture

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"time"

	"github.com/spherical/glance/internal/domain"
)

// StaticSource returns the same image for every capture.
type StaticSource struct {
	data []byte
	now  func() time.Time
}

// NewStaticSource serves data on every request.
func NewStaticSource(data []byte) *StaticSource {
	return &StaticSource{data: data, now: time.Now}
}

// BlankJPEG encodes a small grey frame, enough for offline runs whose
// recognizer ignores pixels.
func BlankJPEG() []byte {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 50})
	return buf.Bytes()
}

// RequestCapture returns a copy of the configured image.
func (s *StaticSource) RequestCapture(ctx context.Context, settings domain.CaptureSettings) (domain.CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return domain.CapturedImage{}, err
	}
	if len(s.data) == 0 {
		return domain.CapturedImage{}, domain.TransportError("no image configured", nil)
	}
	now := s.now()
	return domain.CapturedImage{
		Data: append([]byte(nil), s.data...),
		Metadata: domain.CaptureMetadata{
			Quality:    settings.Quality,
			Exposure:   settings.Exposure,
			ByteSize:   len(s.data),
			CapturedAt: now,
		},
	}, nil
}
