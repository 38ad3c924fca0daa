// ABOUTME: Drift simulator for the renderer
// ABOUTME: Plays a tone into a skewed null device while following an external clock
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/resonate-renderer/internal/event"
	"github.com/Resonate-Protocol/resonate-renderer/internal/logging"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/device"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/renderer"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

var (
	deviceSkew = flag.Float64("device-skew-ppm", 500, "Device drift against real time, in ppm")
	clockSkew  = flag.Float64("clock-skew-ppm", 0, "External clock drift against real time, in ppm")
	duration   = flag.Duration("duration", 30*time.Second, "Simulation length")
	bufferMs   = flag.Int("buffer-ms", 100, "Device buffer, in milliseconds")
	logLevel   = flag.StringP("loglevel", "l", "warn", "Log level")
)

func main() {
	flag.Parse()

	if _, err := logging.ConfigureDefaultLogger(*logLevel, "", slog.HandlerOptions{}); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	color.Cyan("=== Renderer Drift Simulator ===")
	fmt.Printf("device skew %+.0f ppm, external clock skew %+.0f ppm, %s\n\n", *deviceSkew, *clockSkew, *duration)

	backend := device.NewNullBackend()
	backend.SkewPPM = *deviceSkew
	defer backend.Close()

	s := settings.NewStatic()
	s.SetBufferDuration(time.Duration(*bufferMs) * time.Millisecond)

	r, err := renderer.New(renderer.Config{
		Settings:     s,
		Clock:        clock.New(slog.Default()),
		Manager:      device.NewManager(backend, slog.Default()),
		BufferFilled: event.New(),
		Logger:       slog.Default(),
	})
	if err != nil {
		return err
	}
	defer r.Close()

	external := clock.NewSystem(*clockSkew)
	r.SetClock(external)

	src := decode.NewTone(decode.DefaultToneFrequency, 48000, 2, 0)
	stream := decode.NewStream(src, decode.DefaultSampleDuration)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		r.BeginFlush()
		return nil
	})
	g.Go(func() error {
		r.SetFormat(stream.Format())
		if err := r.NewSegment(1); err != nil {
			return err
		}
		now, err := external.Time()
		if err != nil {
			return err
		}
		if err := r.Play(now + clock.Milliseconds(100)); err != nil {
			return err
		}
		for ctx.Err() == nil {
			sample, err := stream.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if !r.Enqueue(sample) {
				return nil
			}
		}
		return nil
	})
	g.Go(func() error {
		return report(ctx, r)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	st := r.Status()
	fmt.Println()
	color.Green("pushed %d frames, total rate correction %s", st.PushedFrames, clock.ToDuration(st.RateCorrection))
	return nil
}

func report(ctx context.Context, r *renderer.Renderer) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	label := color.New(color.FgYellow).SprintFunc()
	for elapsed := 1; ; elapsed++ {
		select {
		case <-ticker.C:
			st := r.Status()
			fmt.Printf("%s %3ds  %-8s pushed=%-9d padding=%-5d correction=%-12s stages=%v\n",
				label("[sim]"), elapsed, st.State, st.PushedFrames, st.PaddingFrames,
				clock.ToDuration(st.RateCorrection), st.Processors)
		case <-ctx.Done():
			return nil
		}
	}
}
