package domain

import (
	"context"
	"image"
)

// CaptureService asks the accessory camera for a photo
type CaptureService interface {
	// RequestCapture blocks until the image has been transferred or the transfer fails
	RequestCapture(ctx context.Context, settings CaptureSettings) (CapturedImage, error)
}

// Decoder turns compressed image bytes into pixels
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// Recognizer finds text regions in an image
type Recognizer interface {
	// Recognize returns blocks in recognizer order, which is not reliable
	Recognize(ctx context.Context, img image.Image, rotationDegrees int) ([]RecognizedBlock, error)
}

// Translator translates a single piece of text
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Transport carries messages to the accessory and tap counts back
type Transport interface {
	Send(ctx context.Context, msg Message) error

	// Taps returns the tap-count stream in arrival order
	Taps(ctx context.Context) (<-chan int, error)
}

// Archive stores completed captures for sharing
type Archive interface {
	Save(ctx context.Context, rec CaptureRecord) error
	Get(ctx context.Context, id string) (*CaptureRecord, error)
}
