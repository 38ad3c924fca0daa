// ABOUTME: Tests for the MP3 source
// ABOUTME: Tests rejection of data that is not an MP3 stream
package decode

import (
	"bytes"
	"testing"
)

func TestNewMP3_InvalidData(t *testing.T) {
	src, err := NewMP3(bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected error for empty input, got nil")
	}

	if src != nil {
		t.Fatal("expected source to be nil for invalid data")
	}
}

func TestNewVorbis_InvalidData(t *testing.T) {
	src, err := NewVorbis(bytes.NewReader([]byte("OggS but not really")))
	if err == nil {
		t.Fatal("expected error for invalid data, got nil")
	}

	if src != nil {
		t.Fatal("expected source to be nil for invalid data")
	}
}
