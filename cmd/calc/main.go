package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/calc/engine"
	"github.com/wippyai/calc/plugin"
)

type config struct {
	pluginDir string
	logFile   string
	script    string
	digits    int
	batch     bool
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if err := run(context.Background(), cfg, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("calc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.pluginDir, "plugins", "", "Directory of plugin .wasm/.wit pairs")
	fs.IntVar(&cfg.digits, "digits", engine.DefaultFractionDigits, "Fraction digits kept in results (0-15)")
	fs.StringVar(&cfg.logFile, "log", "", "Write debug logs to file")
	fs.StringVar(&cfg.script, "e", "", "Run a key script, print the display and exit")
	fs.BoolVar(&cfg.batch, "batch", false, "Read key scripts from stdin, one per line")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: calc [-plugins dir] [-digits n] [-log file]")
		fmt.Fprintln(stderr, "       calc -e \"12 + 3 =\"")
		fmt.Fprintln(stderr, "       calc -batch < script.txt")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument %q\n", fs.Arg(0))
		fs.Usage()
		return config{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return cfg, nil
}

// newLogger keeps logs off the terminal, which belongs to the TUI.
func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	return zc.Build()
}

func run(ctx context.Context, cfg config, stdin io.Reader, stdout io.Writer) error {
	logger, err := newLogger(cfg.logFile)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logger.Sync()
	engine.SetLogger(logger)
	plugin.SetLogger(logger)

	e, err := engine.New(engine.WithFractionDigits(cfg.digits), engine.WithLogger(logger))
	if err != nil {
		return err
	}

	var host *plugin.Host
	if cfg.pluginDir != "" {
		host, err = plugin.NewHost(ctx, plugin.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("plugin host: %w", err)
		}
		defer host.Close(ctx)
		if err := loadPlugins(ctx, host, e, cfg.pluginDir); err != nil {
			return err
		}
	}

	switch {
	case cfg.script != "":
		return runBatch(e, strings.NewReader(cfg.script), stdout)
	case cfg.batch || !isTerminal(stdin):
		return runBatch(e, stdin, stdout)
	default:
		return runInteractive(ctx, e, host, cfg.pluginDir)
	}
}

// loadPlugins loads dir and installs its plugins into e. When loading fails
// the engine is reset to the plugins the host still holds.
func loadPlugins(ctx context.Context, host *plugin.Host, e *engine.Engine, dir string) error {
	mods, err := host.LoadDir(ctx, dir)
	if err != nil {
		if ierr := plugin.Install(ctx, e, host.Modules()...); ierr != nil {
			plugin.Logger().Warn("reinstall loaded plugins", zap.Error(ierr))
		}
		return fmt.Errorf("load plugins: %w", err)
	}
	if err := plugin.Install(ctx, e, mods...); err != nil {
		return fmt.Errorf("install plugins: %w", err)
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
