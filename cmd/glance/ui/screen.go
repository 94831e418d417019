package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/layout"
)

// Screen draws accessory display messages as a framed monochrome panel.
type Screen struct {
	mu    sync.Mutex
	out   io.Writer
	width int
	lines int
	frame *color.Color
	text  *color.Color
}

// NewScreen creates a screen width characters wide and lines tall.
func NewScreen(out io.Writer, width, lines int) *Screen {
	return &Screen{
		out:   out,
		width: width,
		lines: lines,
		frame: color.New(color.FgCyan, color.Bold),
		text:  color.New(color.FgHiWhite),
	}
}

// Render draws msg. Tap subscription changes are printed as a note.
func (s *Screen) Render(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Code {
	case domain.MsgDisplayText:
		s.draw(msg.Payload)
	case domain.MsgTapSubscription:
		state := "off"
		if msg.Payload == "1" {
			state = "on"
		}
		fmt.Fprintf(s.out, "[taps %s]\n", state)
	default:
		fmt.Fprintf(s.out, "[message 0x%02x] %q\n", uint8(msg.Code), msg.Payload)
	}
}

func (s *Screen) draw(payload string) {
	rows := strings.Split(payload, "\n")
	if strings.TrimSpace(payload) == "" {
		rows = nil
	}

	horizontal := strings.Repeat("─", s.width+2)
	s.frame.Fprintf(s.out, "┌%s┐\n", horizontal)
	for i := 0; i < s.lines || i < len(rows); i++ {
		row := ""
		if i < len(rows) {
			row = rows[i]
		}
		pad := s.width - layout.Measure(row)
		if pad < 0 {
			pad = 0
		}
		s.frame.Fprint(s.out, "│ ")
		s.text.Fprint(s.out, row+strings.Repeat(" ", pad))
		s.frame.Fprint(s.out, " │\n")
	}
	s.frame.Fprintf(s.out, "└%s┘\n", horizontal)
}
