package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snovvcrash/dafgen/internal/config"
	"github.com/snovvcrash/dafgen/internal/device"
	"github.com/snovvcrash/dafgen/internal/engine"
	"github.com/snovvcrash/dafgen/internal/monitor"
	"github.com/snovvcrash/dafgen/internal/ring"
	"github.com/snovvcrash/dafgen/internal/ui"
)

// levelRefresh limits how often monitor readings reach the UI.
const levelRefresh = 200 * time.Millisecond

var (
	flagConfig   string
	flagDelayMs  int
	flagHeadless bool
	flagDuration time.Duration
	flagLogFile  string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "dafgen",
	Short: "Delayed auditory feedback generator",
	Long: `dafgen plays your microphone back to you after a configurable delay.
Captured audio chunks circulate through a ring buffer sized from the
requested delay; adjust the delay live while the loop is running.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to configuration file")
	rootCmd.Flags().IntVarP(&flagDelayMs, "delay", "d", 0, "initial delay in milliseconds (overrides config)")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "run without the control panel")
	rootCmd.Flags().DurationVar(&flagDuration, "duration", 0, "stop after this long in headless mode (0 = until interrupted)")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "write structured logs to this file (overrides config)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("delay") {
		cfg.Delay.DefaultMs = flagDelayMs
	}
	if flagLogFile != "" {
		cfg.Logging.File = flagLogFile
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging, flagHeadless)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.Int("sample_rate", cfg.Audio.SampleRate),
		zap.Int("channels", cfg.Audio.Channels),
		zap.Int("frames_per_chunk", cfg.Audio.FramesPerChunk),
		zap.Int("delay_ms", cfg.Delay.DefaultMs),
		zap.Bool("headless", flagHeadless),
	)

	if flagHeadless {
		return runHeadless(cfg, logger)
	}
	return runPanel(cfg, logger)
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Format:         cfg.Format(),
		MinDelay:       cfg.MinDelay(),
		MaxDelay:       cfg.MaxDelay(),
		ResizeInterval: cfg.ResizeThrottle(),
	}
}

// buildLogger routes logs away from the terminal while the TUI owns it.
func buildLogger(cfg config.LoggingConfig, headless bool) (*zap.Logger, error) {
	if cfg.File == "" && !headless {
		return zap.NewNop(), nil
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = atomic
	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
		zcfg.ErrorOutputPaths = []string{cfg.File}
	}
	return zcfg.Build()
}

// runHeadless drives the engine without a UI until the duration elapses,
// an interrupt arrives or the session dies on its own.
func runHeadless(cfg *config.Config, logger *zap.Logger) error {
	stopped := make(chan error, 1)
	eng := engine.New(engineConfig(cfg), device.Open, engine.Callbacks{
		DelayMeasured: func(d time.Duration) {
			logger.Info("delay measured", zap.Duration("actual", d))
		},
		Stopped: func(err error) { stopped <- err },
	}, logger)

	if err := eng.Start(cfg.DefaultDelay()); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var timeout <-chan time.Time
	if flagDuration > 0 {
		timeout = time.After(flagDuration)
	}

	select {
	case err := <-stopped:
		return err
	case <-sig:
		logger.Info("interrupted")
	case <-timeout:
		logger.Info("duration elapsed")
	}
	if err := eng.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
		return err
	}
	return nil
}

// runPanel wires the engine callbacks into the Bubble Tea program and
// feeds captured chunks to the input monitor on a separate goroutine.
func runPanel(cfg *config.Config, logger *zap.Logger) error {
	var p *tea.Program

	chunks := make(chan ring.Chunk, 8)
	cb := engine.Callbacks{
		DelayMeasured: func(d time.Duration) { p.Send(ui.DelayMeasuredMsg(d)) },
		Stopped:       func(err error) { p.Send(ui.StoppedMsg{Err: err}) },
	}
	if cfg.Monitor.Enabled {
		cb.ChunkCaptured = func(c ring.Chunk) {
			// Drop readings rather than stall the audio loop.
			select {
			case chunks <- c:
			default:
			}
		}
	}

	eng := engine.New(engineConfig(cfg), device.Open, cb, logger)
	model := ui.NewModel(eng, cfg.Delay.MinMs, cfg.Delay.MaxMs, cfg.Delay.DefaultMs)
	p = tea.NewProgram(model, tea.WithAltScreen())

	if cfg.Monitor.Enabled {
		go func() {
			analyzer := monitor.New(cfg.Format(), cfg.Monitor.WindowSize)
			var last time.Time
			for c := range chunks {
				r, ok := analyzer.Feed(c)
				if !ok || time.Since(last) < levelRefresh {
					continue
				}
				last = time.Now()
				p.Send(ui.LevelMsg(r))
			}
		}()
	}

	_, err := p.Run()
	if eng.Running() {
		eng.Stop()
	}
	close(chunks)
	return err
}
