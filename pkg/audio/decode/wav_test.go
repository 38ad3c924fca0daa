// ABOUTME: Tests for the WAV source and the file opener
// ABOUTME: Round-trips wave files written with go-audio
package decode

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

func writeWAV(t *testing.T, bits int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 44100, bits, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           samples,
		SourceBitDepth: bits,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestOpenWAV16(t *testing.T) {
	samples := make([]int, 2*300)
	for i := range samples {
		samples[i] = i - 300
	}
	src, err := Open(writeWAV(t, 16, samples))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, audio.Format{Codec: audio.CodecPCM, SampleRate: 44100, Channels: 2, BitDepth: 16}, src.Format())

	total := 0
	for {
		chunk, err := src.Read(128)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, audio.Pcm16, chunk.Format())
		total += chunk.FrameCount()
	}
	assert.Equal(t, 300, total)
}

func TestOpenWAV24(t *testing.T) {
	src, err := Open(writeWAV(t, 24, []int{0x050403, -2, 7, 8}))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 24, src.Format().BitDepth)
	chunk, err := src.Read(10)
	require.NoError(t, err)
	assert.Equal(t, 2, chunk.FrameCount())
	assert.Equal(t, []byte{0x03, 0x04, 0x05}, chunk.Data()[:3])
}

func TestOpenUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Open(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestOpenInvalidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF junk"), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnsupported)
}
