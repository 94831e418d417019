package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spherical/glance/internal/display"
	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/layout"
	"github.com/spherical/glance/internal/pager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	data    []byte
	err     error
}

func (f *fakeCapture) RequestCapture(ctx context.Context, settings domain.CaptureSettings) (domain.CapturedImage, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	data := f.data
	err := f.err
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return domain.CapturedImage{}, err
	}
	if data == nil {
		data = []byte{0xFF, 0xD8, 0xFF}
	}
	return domain.CapturedImage{
		Data:     data,
		Metadata: domain.CaptureMetadata{Quality: settings.Quality, ByteSize: len(data), CapturedAt: time.Unix(1700000000, 0)},
	}, nil
}

type fakeExtractor struct {
	blocks []domain.TextBlock
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, img domain.CapturedImage) ([]domain.TextBlock, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.blocks, nil
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []domain.Message
}

func (r *recordingTransport) Send(ctx context.Context, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) Taps(ctx context.Context) (<-chan int, error) {
	return nil, errors.New("not used")
}

func (r *recordingTransport) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, m := range r.sent {
		out[i] = m.Payload
	}
	return out
}

type memoryArchive struct {
	mu      sync.Mutex
	records []domain.CaptureRecord
}

func (a *memoryArchive) Save(ctx context.Context, rec domain.CaptureRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *memoryArchive) Get(ctx context.Context, id string) (*domain.CaptureRecord, error) {
	return nil, errors.New("not used")
}

type harness struct {
	capture   *fakeCapture
	extractor *fakeExtractor
	pages     *pager.Pager
	transport *recordingTransport
	display   *display.Emitter
	ctrl      *Controller
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		capture:   &fakeCapture{},
		extractor: &fakeExtractor{blocks: []domain.TextBlock{{Lines: []string{"Exit"}}, {Lines: []string{"Platform 4"}}}},
		pages:     pager.New(layout.NewEngine(20, 1)),
		transport: &recordingTransport{},
	}
	h.display = display.NewEmitter(h.transport, h.pages, [2]string{}, nil)
	h.ctrl = NewController(h.capture, h.extractor, h.pages, h.display, opts...)
	return h
}

func (h *harness) cycle(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.Wait()
}

func drain(ch <-chan domain.StreamEvent) []domain.StreamEvent {
	var out []domain.StreamEvent
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(events []domain.StreamEvent) []domain.EventType {
	out := make([]domain.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestCycleShowsFirstPage(t *testing.T) {
	archive := &memoryArchive{}
	h := newHarness(t, WithArchive(archive))

	h.cycle(t)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, domain.StateIdle, snap.State)
	assert.Equal(t, []string{"Exit"}, snap.Page)
	assert.Equal(t, 0, snap.PageIndex)
	assert.Equal(t, 2, snap.PageCount)
	assert.Empty(t, snap.Status)
	require.NotNil(t, snap.Metadata)
	assert.Equal(t, 3, snap.Metadata.ByteSize)
	assert.NotEmpty(t, snap.CycleID)

	assert.Equal(t, []string{"Exit"}, h.transport.payloads())
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, h.ctrl.Preview())

	recognized, translated := h.ctrl.Texts()
	assert.Equal(t, []string{"Exit", "Platform 4"}, recognized)
	assert.Empty(t, translated)

	require.Len(t, archive.records, 1)
	assert.Equal(t, snap.CycleID, archive.records[0].ID)
	assert.Equal(t, recognized, archive.records[0].Recognized)

	assert.Equal(t, []domain.EventType{
		domain.EventCycleStart,
		domain.EventStateChange,
		domain.EventStateChange,
		domain.EventPageShown,
		domain.EventComplete,
	}, eventTypes(drain(h.ctrl.Events())))
}

func TestStartIsSingleFlight(t *testing.T) {
	h := newHarness(t)
	h.capture.release = make(chan struct{})

	require.NoError(t, h.ctrl.Start(context.Background()))
	assert.Equal(t, domain.StateCapturing, h.ctrl.State())

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, h.ctrl.Start(context.Background()), ErrBusy)
	}
	assert.Equal(t, domain.StateCapturing, h.ctrl.State())

	close(h.capture.release)
	h.ctrl.Wait()

	assert.Equal(t, 1, h.capture.calls)
	assert.Equal(t, domain.StateIdle, h.ctrl.State())
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.Wait()
	assert.Equal(t, 2, h.capture.calls)
}

func TestConcurrentStartsRunOneCycle(t *testing.T) {
	h := newHarness(t)
	h.capture.release = make(chan struct{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.ctrl.Start(context.Background()) == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(h.capture.release)
	h.ctrl.Wait()

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, h.capture.calls)
}

func TestExtractionFailureLeavesPagesAndDisplay(t *testing.T) {
	h := newHarness(t)
	h.cycle(t)
	h.pages.NextPage()
	before := h.ctrl.Snapshot()
	sent := len(h.transport.payloads())
	drain(h.ctrl.Events())

	h.capture.data = []byte{0xFF, 0xD8, 0xFF, 0xD9}
	h.extractor.err = domain.ExtractionError("recognizer unavailable", errors.New("503"))
	h.cycle(t)

	after := h.ctrl.Snapshot()
	assert.Equal(t, domain.StateIdle, after.State)
	require.NotNil(t, after.Metadata)
	assert.Equal(t, 3, after.Metadata.ByteSize)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, h.ctrl.Preview())
	assert.Equal(t, before.Page, after.Page)
	assert.Equal(t, before.PageIndex, after.PageIndex)
	assert.Equal(t, before.PageCount, after.PageCount)
	assert.Equal(t, "could not read text", after.Status)
	assert.Len(t, h.transport.payloads(), sent)

	events := drain(h.ctrl.Events())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Type)
	assert.Contains(t, last.Payload, "recognizer unavailable")
}

func TestCaptureFailureIsTransportError(t *testing.T) {
	h := newHarness(t)
	h.capture.err = errors.New("accessory disconnected")

	h.cycle(t)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, domain.StateIdle, snap.State)
	assert.Equal(t, "capture failed", snap.Status)
	assert.Empty(t, snap.Page)
	assert.Empty(t, h.transport.payloads())

	events := drain(h.ctrl.Events())
	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Type)
	assert.Contains(t, last.Payload, "[transport]")

	h.capture.err = nil
	h.cycle(t)
	assert.Equal(t, []string{"Exit"}, h.ctrl.Snapshot().Page)
}

func TestDecodeFailureStatus(t *testing.T) {
	h := newHarness(t)
	h.extractor.err = domain.DecodeError("not a jpeg", nil)

	h.cycle(t)

	assert.Equal(t, "could not decode image", h.ctrl.Snapshot().Status)
}

func TestCancelClearsAndBlanks(t *testing.T) {
	h := newHarness(t)
	h.cycle(t)

	require.NoError(t, h.ctrl.Cancel(context.Background()))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, domain.StateIdle, snap.State)
	assert.Equal(t, []string{}, snap.Page)
	assert.Equal(t, 0, snap.PageCount)
	assert.Nil(t, snap.Metadata)
	assert.Nil(t, h.ctrl.Preview())
	recognized, translated := h.ctrl.Texts()
	assert.Empty(t, recognized)
	assert.Empty(t, translated)

	payloads := h.transport.payloads()
	assert.Equal(t, " ", payloads[len(payloads)-1])
}

func TestCancelDiscardsLateResults(t *testing.T) {
	h := newHarness(t)
	h.capture.release = make(chan struct{})

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.Cancel(context.Background()))
	assert.Equal(t, domain.StateIdle, h.ctrl.State())

	close(h.capture.release)
	h.ctrl.Wait()

	snap := h.ctrl.Snapshot()
	assert.Equal(t, domain.StateIdle, snap.State)
	assert.Empty(t, snap.Page)
	assert.Empty(t, snap.Status)
	assert.Nil(t, h.ctrl.Preview())
	assert.Equal(t, []string{" "}, h.transport.payloads())
}

func TestStartAfterCancelWhileStaleCycleRuns(t *testing.T) {
	h := newHarness(t)
	stale := make(chan struct{})
	h.capture.release = stale

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.Cancel(context.Background()))

	h.capture.mu.Lock()
	h.capture.release = nil
	h.capture.mu.Unlock()

	require.NoError(t, h.ctrl.Start(context.Background()))
	close(stale)
	h.ctrl.Wait()

	snap := h.ctrl.Snapshot()
	assert.Equal(t, domain.StateIdle, snap.State)
	assert.Equal(t, []string{"Exit"}, snap.Page)
	assert.Equal(t, 2, snap.PageCount)
}

func TestNavigationDuringCapture(t *testing.T) {
	h := newHarness(t)
	h.cycle(t)
	h.capture.release = make(chan struct{})

	require.NoError(t, h.ctrl.Start(context.Background()))
	assert.Equal(t, domain.StateCapturing, h.ctrl.State())

	h.pages.NextPage()
	require.NoError(t, h.display.ShowPage(context.Background()))
	assert.Equal(t, []string{"Platform 4"}, h.ctrl.Snapshot().Page)
	assert.Equal(t, []string{"Exit", "Platform 4"}, h.transport.payloads())

	h.pages.PreviousPage()
	require.NoError(t, h.display.ShowPage(context.Background()))
	assert.Equal(t, domain.StateCapturing, h.ctrl.State())

	close(h.capture.release)
	h.ctrl.Wait()

	assert.Equal(t, []string{"Exit", "Platform 4", "Exit", "Exit"}, h.transport.payloads())
	assert.Equal(t, 0, h.ctrl.Snapshot().PageIndex)
}

// cancellingDisplay cancels the session around the first page send.
type cancellingDisplay struct {
	inner *display.Emitter
	ctrl  *Controller
	after bool
	once  sync.Once
}

func (d *cancellingDisplay) ShowPageIf(ctx context.Context, current func() bool) (bool, error) {
	if !d.after {
		d.once.Do(func() { _ = d.ctrl.Cancel(ctx) })
		return d.inner.ShowPageIf(ctx, current)
	}
	shown, err := d.inner.ShowPageIf(ctx, current)
	d.once.Do(func() { _ = d.ctrl.Cancel(ctx) })
	return shown, err
}

func (d *cancellingDisplay) Blank(ctx context.Context) error {
	return d.inner.Blank(ctx)
}

func TestCancelRacingFirstPage(t *testing.T) {
	tests := []struct {
		name  string
		after bool
		sent  []string
	}{
		{name: "before send", sent: []string{" "}},
		{name: "after send", after: true, sent: []string{"Exit", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			d := &cancellingDisplay{inner: h.display, after: tt.after}
			h.ctrl = NewController(h.capture, h.extractor, h.pages, d)
			d.ctrl = h.ctrl

			h.cycle(t)

			assert.Equal(t, tt.sent, h.transport.payloads())
			snap := h.ctrl.Snapshot()
			assert.Equal(t, domain.StateIdle, snap.State)
			assert.Empty(t, snap.Page)
			assert.Nil(t, h.ctrl.Preview())

			assert.Equal(t, []domain.EventType{
				domain.EventCycleStart,
				domain.EventStateChange,
				domain.EventStateChange,
				domain.EventCancelled,
			}, eventTypes(drain(h.ctrl.Events())))
		})
	}
}

func TestTranslationFailureKeepsOtherBlocks(t *testing.T) {
	h := newHarness(t)
	h.extractor.blocks = []domain.TextBlock{
		{Lines: []string{"Sortie"}, Translated: "Exit"},
		{Lines: []string{"Quai 4"}, TranslationErr: domain.TranslationError("block 2 of 3", errors.New("timeout"))},
		{Lines: []string{"Billets"}, Translated: "Tickets"},
	}

	h.cycle(t)

	recognized, translated := h.ctrl.Texts()
	assert.Equal(t, []string{"Sortie", "Quai 4", "Billets"}, recognized)
	assert.Equal(t, []string{"Exit", "Quai 4", "Tickets"}, translated)

	var shown [][]string
	for i := 0; i < 3; i++ {
		shown = append(shown, h.pages.CurrentPage())
		h.pages.NextPage()
	}
	assert.Equal(t, [][]string{{"Exit"}, {"Quai 4"}, {"Tickets"}}, shown)

	var failed []domain.StreamEvent
	for _, e := range drain(h.ctrl.Events()) {
		if e.Type == domain.EventTranslationFailed {
			failed = append(failed, e)
		}
	}
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Payload, "block 2")
}

func TestCycleTimeout(t *testing.T) {
	h := newHarness(t, WithCycleTimeout(20*time.Millisecond))
	h.extractor.err = nil
	h.ctrl.extractor = extractorFunc(func(ctx context.Context, img domain.CapturedImage) ([]domain.TextBlock, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	h.cycle(t)

	assert.Equal(t, "capture timed out", h.ctrl.Snapshot().Status)
}

type extractorFunc func(ctx context.Context, img domain.CapturedImage) ([]domain.TextBlock, error)

func (f extractorFunc) Extract(ctx context.Context, img domain.CapturedImage) ([]domain.TextBlock, error) {
	return f(ctx, img)
}

func TestEventsDropWhenFull(t *testing.T) {
	h := newHarness(t, WithEventBuffer(1))

	h.cycle(t)

	events := drain(h.ctrl.Events())
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCycleStart, events[0].Type)
}
