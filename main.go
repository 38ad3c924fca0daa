// ABOUTME: Entry point for the Resonate renderer player
// ABOUTME: Parses CLI flags and config, then plays a file or tone through the renderer
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Resonate-Protocol/resonate-renderer/internal/app"
	"github.com/Resonate-Protocol/resonate-renderer/internal/config"
	"github.com/Resonate-Protocol/resonate-renderer/internal/logging"
	"github.com/Resonate-Protocol/resonate-renderer/internal/version"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

// TUI mode needs a log file since the terminal belongs to the UI
const defaultTUILogFile = "resonate-render.log"

var (
	flagConfig        string
	flagTone          bool
	flagToneFreq      float64
	flagToneDuration  time.Duration
	flagNoTUI         bool
	flagExternalClock bool
	flagSkewPPM       float64
	flagHelp          bool
	flagVersion       bool
)

func init() {
	flag.StringVarP(&flagConfig, "config", "c", "", "Config file")
	flag.StringP("backend", "b", "malgo", "Playback backend")
	flag.StringP("device", "d", "", "Output device name")
	flag.Bool("exclusive", false, "Use exclusive mode")
	flag.Bool("bitstreaming", false, "Allow bitstreaming in exclusive mode")
	flag.Int("buffer-ms", 200, "Device buffer, in milliseconds")
	flag.Bool("crossfeed", false, "Enable headphone crossfeed")
	flag.Int("volume", 100, "Initial volume (0-100)")
	flag.Int("balance", 0, "Initial balance (-100 left to 100 right)")
	flag.Float64("rate", 1.0, "Playback rate")
	flag.String("wav-path", "out.wav", "Output file for the wav backend")
	flag.StringP("loglevel", "l", "info", "Log level")
	flag.String("logfile", "", "Log file")

	flag.BoolVarP(&flagTone, "tone", "t", false, "Play a test tone instead of a file")
	flag.Float64Var(&flagToneFreq, "tone-freq", 440, "Tone frequency, in Hz")
	flag.DurationVar(&flagToneDuration, "tone-duration", 0, "Tone length (0 plays until stopped)")
	flag.BoolVar(&flagNoTUI, "no-tui", false, "Disable TUI, stream logs instead")
	flag.BoolVar(&flagExternalClock, "external-clock", false, "Follow a free-running system clock")
	flag.Float64Var(&flagSkewPPM, "skew-ppm", 0, "External clock skew, in parts per million")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Play audio through the Resonate renderer

Usage: resonate-render [OPTION]... FILE
       resonate-render --tone [OPTION]...

Output:
  -b, --backend=NAME     malgo, oto, null or wav (default: malgo)
  -d, --device=NAME      Output device (default: system default)
      --exclusive        Use exclusive mode
      --bitstreaming     Pass compressed formats through in exclusive mode
      --buffer-ms=NUM    Device buffer, in milliseconds (default: 200)
      --wav-path=FILE    Output file for the wav backend (default: out.wav)

Playback:
      --volume=NUM       Initial volume, 0-100 (default: 100)
      --balance=NUM      Initial balance, -100 (left) to 100 (right) (default: 0)
      --rate=NUM         Playback rate (default: 1.0)
      --crossfeed        Enable headphone crossfeed
  -t, --tone             Play a test tone
      --tone-freq=HZ     Tone frequency (default: 440)
      --tone-duration=D  Tone length, e.g. 10s (default: until stopped)
      --external-clock   Follow a free-running system clock
      --skew-ppm=NUM     External clock skew, in parts per million

Miscellaneous:
  -c, --config=FILE      Config file (yaml, toml or json)
  -l, --loglevel=LEVEL   none, error, warn, info or debug (default: info)
      --logfile=FILE     Log file (default: stdout, or resonate-render.log with the TUI)
      --no-tui           Disable the TUI and stream logs
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits
`

// flag name to viper key
var flagKeys = map[string]string{
	"backend":      config.KeyBackend,
	"device":       settings.KeyOutputDevice,
	"exclusive":    settings.KeyOutputExclusive,
	"bitstreaming": settings.KeyBitstreaming,
	"buffer-ms":    settings.KeyBufferMS,
	"crossfeed":    settings.KeyCrossfeedEnabled,
	"volume":       config.KeyVolume,
	"balance":      config.KeyBalance,
	"rate":         config.KeyRate,
	"wav-path":     config.KeyWAVPath,
	"loglevel":     config.KeyLogLevel,
	"logfile":      config.KeyLogFile,
}

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, helpString) }
	flag.Parse()

	if flagHelp {
		fmt.Print(helpString)
		return
	}
	if flagVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()
	if err := config.Load(v, flagConfig); err != nil {
		return err
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flag.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}

	path := flag.Arg(0)
	if flagTone {
		path = ""
	} else if path == "" {
		flag.Usage()
		return fmt.Errorf("no input file (use --tone for a test tone)")
	}

	useTUI := !flagNoTUI
	logFile := v.GetString(config.KeyLogFile)
	if useTUI && logFile == "" {
		logFile = defaultTUILogFile
	}
	f, err := logging.ConfigureDefaultLogger(v.GetString(config.KeyLogLevel), logFile, slog.HandlerOptions{})
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	if f != nil {
		defer f.Close()
	}

	s := settings.NewViper(v, slog.Default())

	if !useTUI {
		color.Cyan("%s", version.String())
		slog.Info("starting", "backend", v.GetString(config.KeyBackend), "file", path, "tone", flagTone)
	}

	player, err := app.New(app.Config{
		Path:          path,
		ToneFrequency: flagToneFreq,
		ToneDuration:  flagToneDuration,
		Backend:       v.GetString(config.KeyBackend),
		WAVPath:       v.GetString(config.KeyWAVPath),
		Volume:        v.GetInt(config.KeyVolume),
		Balance:       v.GetInt(config.KeyBalance),
		Rate:          v.GetFloat64(config.KeyRate),
		ExternalClock: flagExternalClock,
		ClockSkewPPM:  flagSkewPPM,
		UseTUI:        useTUI,
	}, s, slog.Default())
	if err != nil {
		return err
	}
	// v belongs to the watcher from here on
	if v.ConfigFileUsed() != "" {
		s.Watch()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := player.Run(ctx); err != nil {
		return err
	}
	if !useTUI {
		slog.Info("player stopped", "state", player.State())
	}
	return nil
}
