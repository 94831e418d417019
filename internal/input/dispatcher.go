// Package input maps accessory taps to reader actions.
package input

import (
	"context"
	"errors"

	"github.com/spherical/glance/internal/observability"
)

// Tap counts reported by the accessory.
const (
	TapNext     = 1
	TapPrevious = 2
	TapCapture  = 3
)

// Navigator moves through the loaded pages.
type Navigator interface {
	NextPage()
	PreviousPage()
}

// PageShower sends the current page to the accessory.
type PageShower interface {
	ShowPage(ctx context.Context) error
}

// Starter begins a capture cycle.
type Starter interface {
	Start(ctx context.Context) error
}

// Dispatcher consumes taps in arrival order.
type Dispatcher struct {
	pages   Navigator
	display PageShower
	starter Starter
	busy    error
	logger  *observability.Logger
}

// NewDispatcher creates a dispatcher. busy is the error Start returns when a
// cycle is already running; such taps are dropped quietly.
func NewDispatcher(pages Navigator, display PageShower, starter Starter, busy error, logger *observability.Logger) *Dispatcher {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Dispatcher{
		pages:   pages,
		display: display,
		starter: starter,
		busy:    busy,
		logger:  logger.WithComponent("input"),
	}
}

// Run handles taps until ctx is done or taps is closed.
func (d *Dispatcher) Run(ctx context.Context, taps <-chan int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tap, ok := <-taps:
			if !ok {
				return nil
			}
			d.Handle(ctx, tap)
		}
	}
}

// Handle performs the action for a single tap.
func (d *Dispatcher) Handle(ctx context.Context, tap int) {
	switch tap {
	case TapNext:
		d.pages.NextPage()
		d.show(ctx)
	case TapPrevious:
		d.pages.PreviousPage()
		d.show(ctx)
	case TapCapture:
		err := d.starter.Start(ctx)
		switch {
		case err == nil:
		case d.busy != nil && errors.Is(err, d.busy):
			d.logger.Debug().Msg("capture already running, tap dropped")
		default:
			d.logger.Error().Err(err).Msg("failed to start capture")
		}
	default:
		d.logger.Debug().Int("taps", tap).Msg("ignoring unmapped tap")
	}
}

func (d *Dispatcher) show(ctx context.Context) {
	if err := d.display.ShowPage(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("failed to show page")
	}
}
