// ABOUTME: Source interface definition
// ABOUTME: Common interface for all media sources and the file opener
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// ErrUnsupported is returned for files or encodings no source can read
var ErrUnsupported = errors.New("unsupported media")

// Source produces decoded audio
type Source interface {
	// Format is the format of every chunk returned by Read
	Format() audio.Format

	// Read decodes up to frames frames. It returns io.EOF with an empty chunk at the end.
	Read(frames int) (audio.Chunk, error)

	// Close releases source resources
	Close() error
}

// Open opens a media file, picking the decoder by extension
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}

	var src Source
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		src, err = NewWAV(f)
	case ".mp3":
		src, err = NewMP3(f)
	case ".ogg", ".oga":
		src, err = NewVorbis(f)
	case ".flac":
		src, err = NewFLAC(f)
	default:
		err = fmt.Errorf("%s: %w", ext, ErrUnsupported)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// fileCloser closes the underlying reader when it is closable
func fileCloser(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
