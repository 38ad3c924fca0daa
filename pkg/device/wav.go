// ABOUTME: WAV file playback backend
// ABOUTME: Drains streams in real time and records what was played to a .wav file
package device

import (
	"encoding/binary"
	"log/slog"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// WAVBackend exposes a single endpoint that writes consumed frames to Path.
// The file keeps the mix format for its whole life.
type WAVBackend struct {
	Path string
	Mix  audio.Format

	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	frames  int64
	streams []*drainStream
	logger  *slog.Logger
}

// NewWAVBackend records 48kHz stereo 16-bit audio to path
func NewWAVBackend(path string, logger *slog.Logger) *WAVBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &WAVBackend{
		Path:   path,
		Mix:    audio.FormatFor(audio.Pcm16, 48000, 2, audio.MaskStereo),
		logger: logger.With("component", "wav-backend", "path", path),
	}
}

func (b *WAVBackend) Name() string { return "wav" }

func (b *WAVBackend) Endpoints() ([]Endpoint, error) {
	return []Endpoint{{ID: "wav:" + b.Path, Name: "WAV File", Default: true}}, nil
}

func (b *WAVBackend) MixFormat(Endpoint) (audio.Format, error) {
	switch b.Mix.SampleFormat() {
	case audio.Pcm16, audio.Pcm24, audio.Pcm32:
		return b.Mix, nil
	}
	return audio.Format{}, errors.Wrapf(ErrUnsupportedFormat, "wav mix format %s", b.Mix)
}

// Supports accepts only the mix format; the file cannot change format midway
func (b *WAVBackend) Supports(_ Endpoint, format audio.Format, _ bool) bool {
	return format == b.Mix
}

func (b *WAVBackend) Open(_ Endpoint, format audio.Format, _ bool, bufferFrames int) (Stream, error) {
	if format != b.Mix {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "wav file is %s, got %s", b.Mix, format)
	}
	if bufferFrames <= 0 {
		return nil, errors.Errorf("invalid buffer of %d frames", bufferFrames)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.encoder == nil {
		f, err := os.Create(b.Path)
		if err != nil {
			return nil, errors.Wrap(err, "create wav file")
		}
		b.file = f
		b.encoder = wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, 1)
		b.logger.Info("recording", "format", format.String())
	}

	s := newDrainStream(format, bufferFrames, 0, b.write)
	b.streams = append(b.streams, s)
	return s, nil
}

// write appends little-endian PCM bytes to the file
func (b *WAVBackend) write(data []byte) {
	bps := b.Mix.BitDepth / 8
	samples := make([]int, len(data)/bps)
	for i := range samples {
		p := data[i*bps:]
		switch bps {
		case 2:
			samples[i] = int(int16(binary.LittleEndian.Uint16(p)))
		case 3:
			samples[i] = int(audio.SampleFrom24Bit([3]byte{p[0], p[1], p[2]}))
		case 4:
			samples[i] = int(int32(binary.LittleEndian.Uint32(p)))
		}
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: b.Mix.Channels, SampleRate: b.Mix.SampleRate},
		Data:           samples,
		SourceBitDepth: b.Mix.BitDepth,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.encoder == nil {
		return
	}
	if err := b.encoder.Write(buf); err != nil {
		b.logger.Warn("wav write failed", "err", err)
		return
	}
	b.frames += int64(len(samples) / b.Mix.Channels)
}

// Frames returns the number of frames written so far
func (b *WAVBackend) Frames() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Close stops every stream and finalizes the file header
func (b *WAVBackend) Close() error {
	b.mu.Lock()
	streams := b.streams
	b.streams = nil
	b.mu.Unlock()
	for _, s := range streams {
		s.Close()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.encoder == nil {
		return nil
	}
	err := b.encoder.Close()
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	b.encoder = nil
	b.file = nil
	b.logger.Info("recording finished", "frames", b.frames)
	return errors.Wrap(err, "finalize wav file")
}
