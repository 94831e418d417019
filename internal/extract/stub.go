package extract

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/spherical/glance/internal/domain"
)

// StubRecognizer returns a fixed set of blocks, for offline runs and tests.
type StubRecognizer struct {
	// Blocks are returned as-is, in recognizer order.
	Blocks []domain.RecognizedBlock
	// Delay simulates recognition time.
	Delay time.Duration
}

// DefaultStubBlocks is a small street-sign scene, deliberately out of order.
func DefaultStubBlocks() []domain.RecognizedBlock {
	return []domain.RecognizedBlock{
		{Top: 40, Lines: []domain.RecognizedLine{{Text: "Platform 3", Top: 40}}},
		{Top: 220, Lines: []domain.RecognizedLine{
			{Text: "Please keep your ticket until you leave the station", Top: 250},
			{Text: "Trains to the airport every 15 minutes", Top: 220},
		}},
		{Top: 120, Lines: []domain.RecognizedLine{{Text: "Mind the gap between the train and the platform edge", Top: 120}}},
	}
}

// Recognize returns the configured blocks after the configured delay.
func (s *StubRecognizer) Recognize(ctx context.Context, img image.Image, rotationDegrees int) ([]domain.RecognizedBlock, error) {
	if err := sleep(ctx, s.Delay); err != nil {
		return nil, err
	}
	out := make([]domain.RecognizedBlock, len(s.Blocks))
	copy(out, s.Blocks)
	return out, nil
}

// StubTranslator returns deterministic translations.
type StubTranslator struct {
	// Dictionary maps source text to its translation.
	// Unknown text is returned as "[Lang] " + text.
	Dictionary map[string]string
	Lang       string
	// Delay simulates translation time.
	Delay time.Duration
}

// Translate looks text up in the dictionary or tags it with the language.
func (s *StubTranslator) Translate(ctx context.Context, text string) (string, error) {
	if err := sleep(ctx, s.Delay); err != nil {
		return "", err
	}
	if translated, ok := s.Dictionary[text]; ok {
		return translated, nil
	}
	return "[" + strings.ToUpper(s.Lang) + "] " + text, nil
}

// PassthroughDecoder skips decoding; recognizers that ignore pixels can use it offline.
type PassthroughDecoder struct{}

// Decode returns a 1x1 image for any non-empty input.
func (PassthroughDecoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, domain.DecodeError("image is empty", nil)
	}
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
