// Package extract turns a captured image into display-ordered text blocks.
package extract

import (
	"context"
	"fmt"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/observability"
)

// Service wraps the external decode, recognition and translation engines
// behind a single call.
type Service struct {
	decoder    domain.Decoder
	recognizer domain.Recognizer
	translator domain.Translator
	rotation   int
	logger     *observability.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTranslator enables per-block translation.
func WithTranslator(t domain.Translator) Option {
	return func(s *Service) { s.translator = t }
}

// WithRotation sets the rotation hint passed to the recognizer.
func WithRotation(degrees int) Option {
	return func(s *Service) { s.rotation = degrees }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new extraction service
func NewService(decoder domain.Decoder, recognizer domain.Recognizer, opts ...Option) *Service {
	s := &Service{
		decoder:    decoder,
		recognizer: recognizer,
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Translates reports whether translation is enabled.
func (s *Service) Translates() bool {
	return s.translator != nil
}

// Extract decodes img, recognizes its text and returns the blocks in display
// order. A block whose translation fails keeps its source text and carries
// the error in TranslationErr; the remaining blocks are still translated.
func (s *Service) Extract(ctx context.Context, img domain.CapturedImage) ([]domain.TextBlock, error) {
	decoded, err := s.decoder.Decode(img.Data)
	if err != nil {
		if domain.IsType(err, domain.ErrorTypeDecode) {
			return nil, err
		}
		return nil, domain.DecodeError("failed to decode capture", err)
	}

	raw, err := s.recognizer.Recognize(ctx, decoded, s.rotation)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if domain.IsType(err, domain.ErrorTypeExtraction) {
			return nil, err
		}
		return nil, domain.ExtractionError("text recognition failed", err)
	}

	blocks := Order(raw)
	s.logger.Debug().Int("blocks", len(blocks)).Msg("text recognized")

	if s.translator == nil {
		return blocks, nil
	}

	for i := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		translated, err := s.translator.Translate(ctx, blocks[i].Source())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			blocks[i].TranslationErr = domain.TranslationError(fmt.Sprintf("block %d of %d", i+1, len(blocks)), err)
			s.logger.Warn().
				Int("block", i+1).
				Int("blocks", len(blocks)).
				Err(err).
				Msg("translation failed, keeping source text")
			continue
		}
		blocks[i].Translated = translated
	}

	return blocks, nil
}
