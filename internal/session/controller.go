// Package session runs capture cycles and owns the text shown on the accessory.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/observability"
)

// ErrBusy is returned by Start while a cycle is already running.
var ErrBusy = errors.New("capture already in progress")

const (
	defaultEventBuffer = 64
	archiveTimeout     = 5 * time.Second
)

// Extractor turns a captured image into ordered text blocks.
type Extractor interface {
	Extract(ctx context.Context, img domain.CapturedImage) ([]domain.TextBlock, error)
}

// Pages is the pagination state the controller replaces on each cycle.
type Pages interface {
	Load(texts []string)
	Clear()
	CurrentPage() []string
	Position() (index, count int)
}

// Display is the outbound side the controller drives. ShowPageIf sends the
// current page only if current still reports true once the send is ordered
// against every other display message.
type Display interface {
	ShowPageIf(ctx context.Context, current func() bool) (bool, error)
	Blank(ctx context.Context) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithArchive records every completed cycle.
func WithArchive(a domain.Archive) Option {
	return func(c *Controller) { c.archive = a }
}

// WithLogger sets the controller logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithCaptureSettings sets the quality and exposure sent with each capture request.
func WithCaptureSettings(s domain.CaptureSettings) Option {
	return func(c *Controller) { c.settings = s }
}

// WithCycleTimeout bounds a whole cycle. Zero means no limit.
func WithCycleTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithEventBuffer sets the size of the event channel.
func WithEventBuffer(n int) Option {
	return func(c *Controller) { c.eventBuffer = n }
}

// Controller sequences capture, extraction, pagination and display for one
// accessory. At most one cycle is active at a time.
type Controller struct {
	capture   domain.CaptureService
	extractor Extractor
	pages     Pages
	display   Display
	archive   domain.Archive
	settings  domain.CaptureSettings
	timeout   time.Duration
	logger    *observability.Logger
	now       func() time.Time

	eventBuffer int
	events      chan domain.StreamEvent

	mu         sync.Mutex
	state      domain.SessionState
	generation uint64
	cancel     context.CancelFunc
	cycleID    string
	status     string
	image      []byte
	metadata   *domain.CaptureMetadata
	recognized []string
	translated []string

	wg sync.WaitGroup
}

// NewController wires a controller. The pager and display are shared with
// the input dispatcher.
func NewController(capture domain.CaptureService, extractor Extractor, pages Pages, display Display, opts ...Option) *Controller {
	c := &Controller{
		capture:     capture,
		extractor:   extractor,
		pages:       pages,
		display:     display,
		settings:    domain.CaptureSettings{Quality: 80},
		logger:      observability.Nop(),
		now:         time.Now,
		eventBuffer: defaultEventBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.eventBuffer < 1 {
		c.eventBuffer = 1
	}
	c.events = make(chan domain.StreamEvent, c.eventBuffer)
	c.logger = c.logger.WithComponent("session")
	return c
}

// Events returns the controller's event stream. Events are dropped when the
// channel is full.
func (c *Controller) Events() <-chan domain.StreamEvent {
	return c.events
}

// State returns the current session state.
func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a new capture cycle. It returns ErrBusy and changes nothing
// when a cycle is already running. The cycle outlives ctx; use Cancel to
// stop it.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}

	c.generation++
	gen := c.generation
	id := uuid.NewString()

	cycleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if c.timeout > 0 {
		var cancelTimeout context.CancelFunc
		cycleCtx, cancelTimeout = context.WithTimeout(cycleCtx, c.timeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}

	c.cancel = cancel
	c.cycleID = id
	c.status = ""
	c.state = domain.StateCapturing
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.WithCycle(id).Info().Msg("capture cycle started")
	c.emit(domain.StreamEvent{Type: domain.EventCycleStart, CycleID: id, State: domain.StateCapturing})

	go c.run(cycleCtx, gen, id)
	return nil
}

// Cancel aborts any running cycle, clears the pages and recognized text and
// blanks the remote display. Results arriving afterwards are discarded.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	id := c.cycleID
	c.state = domain.StateCancelling
	c.pages.Clear()
	c.clearBuffers()
	c.cycleID = ""
	c.status = ""
	c.mu.Unlock()

	err := c.display.Blank(ctx)

	c.mu.Lock()
	if c.generation == gen {
		c.state = domain.StateIdle
	}
	c.mu.Unlock()

	c.logger.Info().Str("cycle_id", id).Msg("session cancelled")
	c.emit(domain.StreamEvent{Type: domain.EventCancelled, CycleID: id, State: domain.StateIdle})
	return err
}

// Wait blocks until every started cycle goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Snapshot returns a consistent view of the controller and the page on screen.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, count := c.pages.Position()
	snap := domain.Snapshot{
		State:     c.state,
		CycleID:   c.cycleID,
		Page:      c.pages.CurrentPage(),
		PageIndex: index,
		PageCount: count,
		Status:    c.status,
	}
	if c.metadata != nil {
		md := *c.metadata
		snap.Metadata = &md
	}
	return snap
}

// Preview returns the image behind the text on screen, or nil.
func (c *Controller) Preview() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.image == nil {
		return nil
	}
	return append([]byte(nil), c.image...)
}

// Texts returns the recognized text per block and, when translation ran,
// the translated text per block.
func (c *Controller) Texts() (recognized, translated []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string{}, c.recognized...), append([]string{}, c.translated...)
}

func (c *Controller) run(ctx context.Context, gen uint64, id string) {
	defer c.wg.Done()
	log := c.logger.WithCycle(id)
	started := c.now()

	img, err := c.capture.RequestCapture(ctx, c.settings)
	if err != nil {
		if !domain.IsType(err, domain.ErrorTypeTransport) {
			err = domain.TransportError("capture request failed", err)
		}
		c.fail(gen, id, "capture failed", err)
		return
	}

	if !c.advance(gen, id, domain.StateExtracting, func() {}) {
		log.Debug().Msg("discarding capture from superseded cycle")
		return
	}

	blocks, err := c.extractor.Extract(ctx, img)
	if err != nil {
		c.fail(gen, id, statusFor(err), err)
		return
	}

	recognized := make([]string, len(blocks))
	texts := make([]string, len(blocks))
	var translated []string
	for i, b := range blocks {
		recognized[i] = b.Source()
		texts[i] = b.DisplayText()
		if b.Translated != "" || b.TranslationErr != nil {
			translated = texts
		}
	}

	// Image, metadata and pages switch together.
	if !c.advance(gen, id, domain.StatePaginating, func() {
		c.pages.Load(texts)
		c.image = img.Data
		md := img.Metadata
		c.metadata = &md
		c.recognized = recognized
		c.translated = append([]string(nil), translated...)
	}) {
		log.Debug().Msg("discarding extraction from superseded cycle")
		return
	}

	shown, err := c.display.ShowPageIf(ctx, func() bool { return c.current(gen) })
	if err != nil {
		log.Error().Err(err).Msg("failed to show first page")
		c.fail(gen, id, "display failed", err)
		return
	}
	if !shown {
		log.Debug().Msg("cycle superseded before first page was shown")
		return
	}

	// Queued under the lock: no event of this cycle may follow a Cancel.
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		log.Debug().Msg("cycle superseded after first page was shown")
		return
	}
	for i, b := range blocks {
		if b.TranslationErr != nil {
			c.emit(domain.StreamEvent{
				Type:    domain.EventTranslationFailed,
				CycleID: id,
				State:   domain.StatePaginating,
				Payload: fmt.Sprintf("block %d: %v", i+1, b.TranslationErr),
			})
		}
	}
	index, count := c.pages.Position()
	c.emit(domain.StreamEvent{
		Type:    domain.EventPageShown,
		CycleID: id,
		State:   domain.StatePaginating,
		Payload: map[string]int{"index": index, "count": count},
	})
	c.state = domain.StateIdle
	c.releaseCancel()
	c.emit(domain.StreamEvent{Type: domain.EventComplete, CycleID: id, State: domain.StateIdle, Payload: len(blocks)})
	c.mu.Unlock()

	elapsed := c.now().Sub(started)
	log.Info().Int("blocks", len(blocks)).Int("pages", count).Dur("elapsed", elapsed).Msg("capture cycle complete")

	if c.archive != nil {
		c.record(ctx, id, img.Metadata, recognized, translated)
	}
}

// advance moves the cycle to state and applies update, both under the lock,
// only while gen is still the current generation.
func (c *Controller) advance(gen uint64, id string, state domain.SessionState, update func()) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return false
	}
	c.state = state
	update()
	c.mu.Unlock()

	c.emit(domain.StreamEvent{Type: domain.EventStateChange, CycleID: id, State: state})
	return true
}

// fail ends the cycle in Idle with an error status. Pages and display are
// left as they were.
func (c *Controller) fail(gen uint64, id, status string, err error) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateIdle
	c.status = status
	c.releaseCancel()
	c.mu.Unlock()

	c.logger.WithCycle(id).Error().Err(err).Str("status", status).Msg("capture cycle failed")
	c.emit(domain.StreamEvent{Type: domain.EventError, CycleID: id, State: domain.StateIdle, Payload: err.Error()})
}

func (c *Controller) record(ctx context.Context, id string, md domain.CaptureMetadata, recognized, translated []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	rec := domain.CaptureRecord{
		ID:         id,
		CapturedAt: md.CapturedAt,
		Metadata:   md,
		Recognized: recognized,
		Translated: translated,
	}
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = c.now()
	}
	if err := c.archive.Save(ctx, rec); err != nil {
		c.logger.WithCycle(id).Warn().Err(err).Msg("failed to archive capture")
	}
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

// releaseCancel must be called with c.mu held.
func (c *Controller) releaseCancel() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// clearBuffers must be called with c.mu held.
func (c *Controller) clearBuffers() {
	c.image = nil
	c.metadata = nil
	c.recognized = nil
	c.translated = nil
}

func (c *Controller) emit(event domain.StreamEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	select {
	case c.events <- event:
	default:
		c.logger.Warn().Str("event", string(event.Type)).Msg("event channel full, dropping event")
	}
}

func statusFor(err error) string {
	switch {
	case domain.IsType(err, domain.ErrorTypeDecode):
		return "could not decode image"
	case domain.IsType(err, domain.ErrorTypeExtraction):
		return "could not read text"
	case errors.Is(err, context.DeadlineExceeded):
		return "capture timed out"
	default:
		return "capture cycle failed"
	}
}
