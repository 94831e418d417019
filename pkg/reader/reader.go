// Package reader assembles a glance reading session for a single accessory.
package reader

import (
	"context"
	"errors"
	"time"

	"github.com/spherical/glance/internal/cache"
	"github.com/spherical/glance/internal/config"
	"github.com/spherical/glance/internal/decode"
	"github.com/spherical/glance/internal/display"
	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/extract"
	"github.com/spherical/glance/internal/input"
	"github.com/spherical/glance/internal/layout"
	"github.com/spherical/glance/internal/observability"
	"github.com/spherical/glance/internal/pager"
	"github.com/spherical/glance/internal/session"
)

// Re-export event types for public API
type (
	StreamEvent  = domain.StreamEvent
	EventType    = domain.EventType
	Snapshot     = domain.Snapshot
	SessionState = domain.SessionState
)

// Event type constants
const (
	EventCycleStart        = domain.EventCycleStart
	EventStateChange       = domain.EventStateChange
	EventPageShown         = domain.EventPageShown
	EventTranslationFailed = domain.EventTranslationFailed
	EventError             = domain.EventError
	EventCancelled         = domain.EventCancelled
	EventComplete          = domain.EventComplete
)

// ErrBusy is returned when a capture is requested while one is running.
var ErrBusy = session.ErrBusy

const shutdownTimeout = 5 * time.Second

// Deps are the external engines a Reader drives.
type Deps struct {
	Transport  domain.Transport
	Capture    domain.CaptureService
	Recognizer domain.Recognizer

	// Optional.
	Decoder    domain.Decoder
	Translator domain.Translator
	Cache      cache.Client
	Archive    domain.Archive
	Logger     *observability.Logger
}

// Reader wires the pager, display emitter, capture controller and tap
// dispatcher around one accessory.
type Reader struct {
	transport  domain.Transport
	pages      *pager.Pager
	emitter    *display.Emitter
	controller *session.Controller
	dispatcher *input.Dispatcher
	logger     *observability.Logger
}

// New creates a Reader from cfg and deps.
func New(cfg *config.Config, deps Deps) (*Reader, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Transport == nil {
		return nil, domain.ConfigError("transport is required", nil)
	}
	if deps.Capture == nil {
		return nil, domain.ConfigError("capture service is required", nil)
	}
	if deps.Recognizer == nil {
		return nil, domain.ConfigError("recognizer is required", nil)
	}

	logger := deps.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	decoder := deps.Decoder
	if decoder == nil {
		decoder = decode.NewFitzDecoder(cfg.Capture.MaxImageBytes)
	}

	opts := []extract.Option{
		extract.WithRotation(cfg.Capture.RotationDegrees),
		extract.WithLogger(logger),
	}
	if cfg.Extraction.Translate {
		if deps.Translator == nil {
			return nil, domain.ConfigError("translation enabled without a translator", nil)
		}
		translator := deps.Translator
		if deps.Cache != nil {
			translator = extract.NewCachingTranslator(translator, deps.Cache, cfg.Extraction.TargetLang, cfg.Cache.TTL, logger)
		}
		opts = append(opts, extract.WithTranslator(translator))
	}
	extractor := extract.NewService(decoder, deps.Recognizer, opts...)

	pages := pager.New(layout.NewEngine(cfg.Display.WidthChars, cfg.Display.MaxLines))
	emitter := display.NewEmitter(deps.Transport, pages, cfg.Display.Prompt, logger)

	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithCaptureSettings(domain.CaptureSettings{
			Quality:  cfg.Capture.Quality,
			Exposure: cfg.Capture.Exposure,
		}),
		session.WithCycleTimeout(cfg.Capture.CycleTimeout),
	}
	if deps.Archive != nil {
		sessionOpts = append(sessionOpts, session.WithArchive(deps.Archive))
	}
	controller := session.NewController(deps.Capture, extractor, pages, emitter, sessionOpts...)

	return &Reader{
		transport:  deps.Transport,
		pages:      pages,
		emitter:    emitter,
		controller: controller,
		dispatcher: input.NewDispatcher(pages, emitter, controller, session.ErrBusy, logger),
		logger:     logger.WithComponent("reader"),
	}, nil
}

// Run subscribes to taps, shows the prompt and handles taps until ctx is
// done or the tap stream ends. On return taps are unsubscribed and the
// display is blank.
func (r *Reader) Run(ctx context.Context) error {
	taps, err := r.transport.Taps(ctx)
	if err != nil {
		return err
	}
	if err := r.emitter.SetTapSubscription(ctx, true); err != nil {
		return err
	}
	if err := r.emitter.ShowPrompt(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("failed to show prompt")
	}
	r.logger.Info().Msg("reader session started")

	runErr := r.dispatcher.Run(ctx, taps)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := r.emitter.SetTapSubscription(shutdownCtx, false); err != nil {
		r.logger.Warn().Err(err).Msg("failed to unsubscribe taps")
	}
	if err := r.controller.Cancel(shutdownCtx); err != nil {
		r.logger.Warn().Err(err).Msg("failed to blank display")
	}
	r.controller.Wait()
	r.logger.Info().Msg("reader session stopped")

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// Capture starts a capture cycle.
func (r *Reader) Capture(ctx context.Context) error {
	return r.controller.Start(ctx)
}

// Cancel aborts any cycle, clears the text and blanks the display.
func (r *Reader) Cancel(ctx context.Context) error {
	return r.controller.Cancel(ctx)
}

// ShowStatus replaces the screen with a one-line status until the next page is shown.
func (r *Reader) ShowStatus(ctx context.Context, text string) error {
	return r.emitter.Status(ctx, text)
}

// Controller returns the capture controller for observers such as the HTTP API.
func (r *Reader) Controller() *session.Controller {
	return r.controller
}

// Events returns the controller event stream.
func (r *Reader) Events() <-chan StreamEvent {
	return r.controller.Events()
}

// Snapshot returns the current session view.
func (r *Reader) Snapshot() Snapshot {
	return r.controller.Snapshot()
}
