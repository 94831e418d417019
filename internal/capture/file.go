// Package capture provides capture services that do not need an accessory.
package capture

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spherical/glance/internal/domain"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// FileSource serves captures from image files on disk. When given a
// directory it cycles through the images in name order.
type FileSource struct {
	mu    sync.Mutex
	files []string
	next  int
	now   func() time.Time
}

// NewFileSource creates a source from a single image or a directory of images.
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.IOError("cannot access capture source "+path, err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, domain.IOError("cannot list capture directory "+path, err)
		}
		for _, e := range entries {
			if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	if len(files) == 0 {
		return nil, domain.ValidationError("no images found in "+path, nil)
	}

	return &FileSource{files: files, now: time.Now}, nil
}

// RequestCapture reads the next image file.
func (s *FileSource) RequestCapture(ctx context.Context, settings domain.CaptureSettings) (domain.CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return domain.CapturedImage{}, err
	}

	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	start := s.now()
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.CapturedImage{}, domain.TransportError("failed to read "+path, err)
	}

	return domain.CapturedImage{
		Data: data,
		Metadata: domain.CaptureMetadata{
			Quality:    settings.Quality,
			Exposure:   settings.Exposure,
			ByteSize:   len(data),
			Elapsed:    s.now().Sub(start),
			CapturedAt: start,
		},
	}, nil
}
