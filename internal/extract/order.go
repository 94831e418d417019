package extract

import (
	"sort"
	"strings"

	"github.com/spherical/glance/internal/domain"
)

// Order converts recognizer output into display order: blocks by descending
// top edge, and the lines of each block by descending top edge. The camera
// is mounted rotated, so the bottom of the frame is read first. Blank lines
// and blocks without text are dropped.
func Order(raw []domain.RecognizedBlock) []domain.TextBlock {
	sorted := make([]domain.RecognizedBlock, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Top > sorted[j].Top
	})

	blocks := make([]domain.TextBlock, 0, len(sorted))
	for _, rb := range sorted {
		lines := make([]domain.RecognizedLine, len(rb.Lines))
		copy(lines, rb.Lines)
		sort.SliceStable(lines, func(i, j int) bool {
			return lines[i].Top > lines[j].Top
		})

		var text []string
		for _, l := range lines {
			if t := strings.TrimSpace(l.Text); t != "" {
				text = append(text, t)
			}
		}
		if len(text) == 0 {
			continue
		}

		blocks = append(blocks, domain.TextBlock{Lines: text, Top: rb.Top})
	}
	return blocks
}
