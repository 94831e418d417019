// Package pager holds the paginated text currently shown on the accessory.
package pager

import (
	"sync"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/layout"
)

// Pager owns an ordered list of pages and the index of the page on screen.
// The index is kept within [0, max(0, len(pages)-1)] after every mutation.
type Pager struct {
	mu      sync.RWMutex
	engine  layout.Engine
	pages   []domain.Page
	current int
}

// New creates an empty pager that lays text out with engine.
func New(engine layout.Engine) *Pager {
	return &Pager{engine: engine}
}

// Clear drops all pages and resets the index.
func (p *Pager) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pages = nil
	p.current = 0
}

// AppendLine lays text out on its own and appends the resulting pages after
// the existing ones, so no page mixes text from two calls.
func (p *Pager) AppendLine(text string) {
	pages := p.engine.Layout(text)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.pages = append(p.pages, pages...)
	p.clamp()
}

// Load replaces the pages with the layout of texts in order and shows the
// first page. Readers see either the old pages or all of the new ones.
func (p *Pager) Load(texts []string) {
	var pages []domain.Page
	for _, text := range texts {
		pages = append(pages, p.engine.Layout(text)...)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.pages = pages
	p.current = 0
}

// NextPage moves forward one page; it does nothing on the last page.
func (p *Pager) NextPage() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	p.clamp()
}

// PreviousPage moves back one page; it does nothing on the first page.
func (p *Pager) PreviousPage() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current--
	p.clamp()
}

// CurrentPage returns a copy of the lines on screen, or an empty slice.
func (p *Pager) CurrentPage() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.pages) == 0 {
		return []string{}
	}
	page := p.pages[p.current]
	out := make([]string, len(page))
	copy(out, page)
	return out
}

// Position returns the current index and the page count.
func (p *Pager) Position() (index, count int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.current, len(p.pages)
}

func (p *Pager) clamp() {
	last := len(p.pages) - 1
	if last < 0 {
		last = 0
	}
	if p.current > last {
		p.current = last
	}
	if p.current < 0 {
		p.current = 0
	}
}
