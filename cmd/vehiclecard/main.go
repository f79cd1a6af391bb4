// Package main is the entry point for the vehiclecard terminal card.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/dshills/vehiclecard/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options are the command line settings.
type options struct {
	ConfigPath  string
	LogLevel    string
	LogFile     string
	MetricsAddr string
	Headless    bool
	Check       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}

	if opts.Check {
		return check(cfg)
	}

	headless := opts.Headless || !term.IsTerminal(int(os.Stdout.Fd()))
	logger, closeLog, err := newLogger(cfg.Logging, opts.LogFile, headless)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open log: %v\n", err)
		return 1
	}
	defer closeLog()

	for _, w := range config.Warnings(cfg) {
		logger.Warn("action will fail when triggered", "path", w.Path, "reason", w.Message)
	}

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := &runner{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		logger:     logger,
		headless:   headless,
	}
	if err := r.run(ctx); err != nil && !errors.Is(err, errQuit) {
		logger.Error("vehiclecard stopped", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// check validates the configuration and reports runtime warnings.
func check(cfg *config.Config) int {
	warnings := config.Warnings(cfg)
	for _, w := range warnings {
		fmt.Printf("warning: %v\n", w)
	}
	fmt.Printf("configuration ok: %d image(s), %d icon group(s), %d warning(s)\n",
		len(cfg.Card.Images), len(cfg.Card.IconGroups), len(warnings))
	return 0
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "vehiclecard.yaml", "Path to configuration file (.yaml, .yml or .toml)")
	flag.StringVar(&opts.ConfigPath, "c", "vehiclecard.yaml", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the file")
	flag.StringVar(&opts.LogFile, "log-file", "", "Write logs to this file instead of stderr")
	flag.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&opts.Headless, "headless", false, "Run without the terminal UI and log card events")
	flag.BoolVar(&opts.Check, "check", false, "Validate the configuration and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "vehiclecard - Home Assistant vehicle status card for the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: vehiclecard [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		for _, name := range config.EnvVars() {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vehiclecard -c car.yaml             Show the card\n")
		fmt.Fprintf(os.Stderr, "  vehiclecard -c car.toml -check      Validate a configuration\n")
		fmt.Fprintf(os.Stderr, "  vehiclecard -headless -metrics-addr :9100\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("vehiclecard %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level
	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts
}
