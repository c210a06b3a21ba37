// Package cmd is the shared process entrypoint: flags, config, bootstrap and
// the bot runtime under a signal-aware context.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	coreconfig "github.com/m3rciful/goroute/core/config"
	"github.com/m3rciful/goroute/core/logger"
	coretelegram "github.com/m3rciful/goroute/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp builds the bot runtime options, including the lifecycle hooks
// that start and stop background services.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	Name string
	// Args are the command-line arguments without the program name.
	Args   []string
	Output io.Writer

	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

type flags struct {
	configPath string
	check      bool
	help       bool
}

func parseFlags(opts Options) (flags, *pflag.FlagSet, error) {
	var f flags
	name := opts.Name
	if name == "" {
		name = "goroute"
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(output(opts))
	fs.StringVarP(&f.configPath, "config", "c", "", "path to the YAML config (overrides the env var)")
	fs.BoolVar(&f.check, "check", false, "load config, run bootstrap and migrations, then exit")
	fs.BoolVarP(&f.help, "help", "h", false, "show help")
	if err := fs.Parse(opts.Args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			f.help = true
			return f, fs, nil
		}
		return f, fs, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return f, fs, fmt.Errorf("cmd: unexpected argument %q", rest[0])
	}
	return f, fs, nil
}

func output(opts Options) io.Writer {
	if opts.Output != nil {
		return opts.Output
	}
	return os.Stderr
}

// configPath picks the flag, then the env var, then the default.
func configPath(flagPath string, opts Options) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if opts.DefaultConfigPath != "" {
		return opts.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via --config, %s or DefaultConfigPath", env)
}

// Run parses flags, loads configuration, bootstraps the app and blocks in the
// bot runtime until SIGINT/SIGTERM or a service failure.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return fmt.Errorf("cmd: LoadConfig is required")
	}
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}

	f, fs, err := parseFlags(opts)
	if err != nil {
		return err
	}
	if f.help {
		fmt.Fprintf(output(opts), "Usage: %s [flags]\n", fs.Name())
		fs.PrintDefaults()
		return nil
	}

	path, err := configPath(f.configPath, opts)
	if err != nil {
		return err
	}
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return fmt.Errorf("cmd: loaded config is missing core configuration")
	}

	application, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	if f.check {
		logger.Info(logger.Background(), logger.CompApp, "check.ok",
			slog.String("config", path),
			slog.Int("services", len(runOpts.Services)),
		)
		if runOpts.OnStop != nil {
			return runOpts.OnStop(logger.Background(), coretelegram.Runtime{})
		}
		return nil
	}
	withLifecycleLogs(&runOpts, time.Now())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// withLifecycleLogs wraps the app hooks with ready/shutdown events.
func withLifecycleLogs(runOpts *coretelegram.RunOptions, startedAt time.Time) {
	prevStart, prevStop := runOpts.OnStart, runOpts.OnStop
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, logger.CompApp, "ready",
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			slog.Int("services", len(runOpts.Services)),
		)
		return nil
	}
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, logger.CompApp, "shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}
}
