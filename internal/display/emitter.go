// Package display serializes pages and prompts into accessory messages.
package display

import (
	"context"
	"strings"
	"sync"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/observability"
)

// LineSeparator is the line break the accessory's text renderer understands.
const LineSeparator = "\n"

// blank clears the screen; the accessory ignores empty payloads.
const blank = " "

// DefaultPrompt is shown when a session starts.
var DefaultPrompt = [2]string{"Triple-tap to read text", "Tap: next  Double-tap: back"}

// PageSource provides the page currently on screen.
type PageSource interface {
	CurrentPage() []string
}

// Emitter sends display messages one at a time. Each page send reads the
// page at send time, so the last message reflects the latest pager state.
type Emitter struct {
	mu        sync.Mutex
	transport domain.Transport
	pages     PageSource
	prompt    [2]string
	logger    *observability.Logger
}

// NewEmitter creates an emitter that shows pages from pages over transport.
func NewEmitter(transport domain.Transport, pages PageSource, prompt [2]string, logger *observability.Logger) *Emitter {
	if prompt[0] == "" && prompt[1] == "" {
		prompt = DefaultPrompt
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Emitter{transport: transport, pages: pages, prompt: prompt, logger: logger}
}

// ShowPage sends the current page, or a blank screen when there is none.
func (e *Emitter) ShowPage(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sendText(ctx, strings.Join(e.pages.CurrentPage(), LineSeparator))
}

// ShowPageIf sends the current page only when current reports true. The
// check runs after earlier sends have finished, so a message queued behind
// this one (a Blank from a cancel) always lands last.
func (e *Emitter) ShowPageIf(ctx context.Context, current func() bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !current() {
		return false, nil
	}
	return true, e.sendText(ctx, strings.Join(e.pages.CurrentPage(), LineSeparator))
}

// ShowPrompt sends the two-line instructions.
func (e *Emitter) ShowPrompt(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sendText(ctx, e.prompt[0]+LineSeparator+e.prompt[1])
}

// Blank clears the remote display.
func (e *Emitter) Blank(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sendText(ctx, blank)
}

// Status shows a single status line.
func (e *Emitter) Status(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sendText(ctx, strings.ReplaceAll(text, LineSeparator, " "))
}

// SetTapSubscription turns accessory tap notifications on or off.
func (e *Emitter) SetTapSubscription(ctx context.Context, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload := "0"
	if on {
		payload = "1"
	}
	return e.send(ctx, domain.Message{Code: domain.MsgTapSubscription, Payload: payload})
}

func (e *Emitter) sendText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		text = blank
	}
	return e.send(ctx, domain.Message{Code: domain.MsgDisplayText, Payload: text})
}

func (e *Emitter) send(ctx context.Context, msg domain.Message) error {
	if err := e.transport.Send(ctx, msg); err != nil {
		e.logger.Error().Int("code", int(msg.Code)).Err(err).Msg("display send failed")
		if domain.IsType(err, domain.ErrorTypeTransport) {
			return err
		}
		return domain.TransportError("display send failed", err)
	}
	return nil
}
