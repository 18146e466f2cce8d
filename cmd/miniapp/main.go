package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/hanko-field/miniapp/internal/cart"
	"github.com/hanko-field/miniapp/internal/platform/config"
	"github.com/hanko-field/miniapp/internal/platform/observability"
	"github.com/hanko-field/miniapp/internal/storage"
	"github.com/hanko-field/miniapp/internal/storefront"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

// app carries the dependencies shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	cart    *cart.Store
	client  *storefront.Client
	printer *printer
	stderr  io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"products":   {usage: "products [-search s] [-category c] [-page n] [-per-page n]", run: runProducts},
	"product":    {usage: "product <id>", run: runProduct},
	"categories": {usage: "categories", run: runCategories},
	"cart":       {usage: "cart show|add|update|remove|clear", run: runCart},
	"checkout":   {usage: "checkout [-note s] [-init-data t]", run: runCheckout},
	"initdata":   {usage: "initdata inspect [-bot-token t] [token]", run: runInitData},
	"serve":      {usage: "serve [-addr host:port]", run: runServe},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, loadOpts ...config.Option) int {
	fs := flag.NewFlagSet("miniapp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		format  string
		envFile string
	)
	fs.StringVar(&format, "format", formatTable, "output format: table, json or yaml")
	fs.StringVar(&envFile, "env-file", ".env", "dotenv file with local overrides")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return exitUsage
	}
	p, err := newPrinter(stdout, format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	opts := append([]config.Option{config.WithEnvFile(envFile)}, loadOpts...)
	cfg, err := config.Load(ctx, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "load configuration: %v\n", err)
		return exitError
	}

	baseLogger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialise logger: %v\n", err)
		return exitError
	}
	defer func() { _ = baseLogger.Sync() }()
	logger := baseLogger.Named("miniapp")
	ctx = observability.WithLogger(ctx, logger)

	if err := config.Validate(cfg); err != nil {
		if config.MissingBaseURL(err) {
			logger.Error("storefront base URL is not configured; set MINIAPP_API_BASE_URL")
		}
		logger.Warn("configuration incomplete", zap.Error(err))
	}

	backend, err := storage.Open(ctx, cfg.Storage, observability.Named(logger, "storage"))
	if err != nil {
		logger.Error("failed to open cart storage", zap.Error(err))
		return exitError
	}
	store := cart.Open(ctx, backend, cart.WithLogger(observability.Named(logger, "cart")))
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("cart storage close error", zap.Error(err))
		}
	}()

	a := &app{
		cfg:    cfg,
		logger: logger,
		cart:   store,
		client: storefront.New(cfg.API.BaseURL,
			storefront.WithTimeout(cfg.API.Timeout),
			storefront.WithLogger(observability.Named(logger, "storefront")),
		),
		printer: p,
		stderr:  stderr,
	}

	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: miniapp %s\n", cmd.usage)
			return exitUsage
		}
		var sfErr *storefront.Error
		if errors.As(err, &sfErr) {
			fmt.Fprintln(stderr, sfErr.Message)
			return exitError
		}
		fmt.Fprintln(stderr, err)
		return exitError
	}
	return exitOK
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: miniapp [-format table|json|yaml] [-env-file path] <command> [args]")
	fmt.Fprintln(out, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(out, "\nflags:")
	fs.PrintDefaults()
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
