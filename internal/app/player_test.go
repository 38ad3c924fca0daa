// ABOUTME: Tests for player application orchestration
// ABOUTME: Tests player creation and full runs against the null backend
package app

import (
	"context"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

func testConfig() Config {
	return Config{
		Backend:      BackendNull,
		ToneDuration: 300 * time.Millisecond,
		Volume:       80,
	}
}

func TestNewPlayer(t *testing.T) {
	config := testConfig()

	player, err := New(config, settings.NewStatic(), nil)
	if err != nil {
		t.Fatalf("failed to create player: %v", err)
	}

	if player == nil {
		t.Fatal("expected player to be created")
	}

	if player.config.Rate != 1 {
		t.Errorf("expected default rate 1, got %v", player.config.Rate)
	}

	if player.State() != "idle" {
		t.Errorf("expected initial state 'idle', got '%s'", player.State())
	}

	if volume, _ := player.Renderer().Volume(); volume != 80 {
		t.Errorf("expected volume 80, got %d", volume)
	}
}

func TestNewPlayer_UnknownBackend(t *testing.T) {
	config := testConfig()
	config.Backend = "cassette"

	player, err := New(config, settings.NewStatic(), nil)
	if err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}

	if player != nil {
		t.Fatal("expected player to be nil for unknown backend")
	}
}

func TestPlayerRunsToneToEnd(t *testing.T) {
	player, err := New(testConfig(), settings.NewStatic(), nil)
	if err != nil {
		t.Fatalf("failed to create player: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := player.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if player.State() != "finished" {
		t.Errorf("expected state 'finished', got '%s'", player.State())
	}
}

func TestPlayerStop(t *testing.T) {
	config := testConfig()
	config.ToneDuration = 0

	player, err := New(config, settings.NewStatic(), nil)
	if err != nil {
		t.Fatalf("failed to create player: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- player.Run(context.Background()) }()

	time.Sleep(300 * time.Millisecond)
	player.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("player did not stop")
	}

	if player.State() == "finished" {
		t.Error("an endless tone should not finish")
	}
}

func TestPlayerPauseResume(t *testing.T) {
	config := testConfig()
	config.ToneDuration = 0

	player, err := New(config, settings.NewStatic(), nil)
	if err != nil {
		t.Fatalf("failed to create player: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- player.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for player.State() != "playing" {
		if time.Now().After(deadline) {
			t.Fatal("player did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := player.togglePause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if player.State() != "paused" {
		t.Errorf("expected 'paused', got '%s'", player.State())
	}

	time.Sleep(50 * time.Millisecond)
	if err := player.togglePause(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if player.State() != "playing" {
		t.Errorf("expected 'playing', got '%s'", player.State())
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{BackendNull, false},
		{BackendWAV, false},
		{"cassette", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.name, t.TempDir()+"/out.wav", nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBackend(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if b != nil {
				if b.Name() != tt.name {
					t.Errorf("expected backend %q, got %q", tt.name, b.Name())
				}
				b.Close()
			}
		})
	}
}
