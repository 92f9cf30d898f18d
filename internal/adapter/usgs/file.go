package usgs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/quake-query-service/internal/domain"
)

// FileSource serves events from a GeoJSON file on disk, re-read on every call.
// It ignores the window; the filter engine applies it.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) FetchRecentEvents(_ context.Context, _ time.Duration) ([]domain.Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}
