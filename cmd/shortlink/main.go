package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/sifan077/PowerLink/config"
	"github.com/sifan077/PowerLink/internal/app/repository"
	"github.com/sifan077/PowerLink/internal/app/service"
	"github.com/sifan077/PowerLink/internal/infra/linkapi"
	"github.com/sifan077/PowerLink/internal/infra/logger"
	"github.com/sifan077/PowerLink/internal/infra/storage"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const usage = `Usage:
  shortlink shorten <url>          create a short link
  shortlink list [--page N]        list live links
  shortlink list --watch           list live links with live click counts
  shortlink open <id>              resolve a short link and open it after a countdown

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFlagSet(out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("shortlink", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}

	fs.String("service-url", "", "base URL of the link service")
	fs.String("public-url", "", "base URL short links are shared under")
	fs.String("storage", "", "storage backend: memory, file, redis, postgres, nats")
	fs.String("storage-path", "", "file used by the file storage backend")
	fs.String("log-level", "", "log level (logs go to stderr)")
	fs.Int("page", 1, "page to list")
	fs.Bool("watch", false, "keep click counts live until interrupted")
	fs.Bool("print", false, "print the destination instead of opening a browser")
	return fs
}

// bindFlags maps CLI flags onto config keys so they override file and env.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"service.base_url": "service-url",
		"ui.public_url":    "public-url",
		"storage.backend":  "storage",
		"storage.path":     "storage-path",
		"app.log_level":    "log-level",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	v := viper.New()
	v.SetDefault("app.log_level", "warn")
	if err := bindFlags(v, fs); err != nil {
		return err
	}
	cfg, err := config.LoadWith(v)
	if err != nil {
		return err
	}

	log, err := logger.Init(logger.FromApp(cfg.App, "stderr"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer backend.Close()

	client, err := linkapi.New(cfg.Service, linkapi.WithLogger(log))
	if err != nil {
		return err
	}

	store := repository.NewLinkStore(repository.LinkStoreDeps{Slot: backend.Slot, Logger: log})
	printOnly, _ := fs.GetBool("print")

	c := &cli{
		out: stdout,
		links: service.NewLinkService(service.LinkServiceDeps{
			Creator:   client,
			Store:     store,
			PublicURL: cfg.UI.PublicURL,
			TTL:       cfg.Links.TTL,
			Logger:    log,
		}),
		poller: service.NewClickPoller(service.ClickPollerDeps{
			Counter:  client,
			Interval: cfg.Links.PollInterval,
			Logger:   log,
		}),
		redirector: service.NewRedirector(service.RedirectorDeps{
			Resolver:  client,
			Countdown: cfg.Links.CountdownSeconds,
			Logger:    log,
		}),
		nav:      navigator(stdout, printOnly, log),
		pageSize: cfg.UI.PageSize,
		now:      time.Now,
		redraw:   isTerminal(stdout),
	}

	page, _ := fs.GetInt("page")
	switch cmd := fs.Arg(0); cmd {
	case "shorten":
		if fs.NArg() != 2 {
			return errors.New("usage: shortlink shorten <url>")
		}
		return c.shorten(ctx, fs.Arg(1))
	case "list":
		if watch, _ := fs.GetBool("watch"); watch {
			return c.watch(ctx, page)
		}
		return c.list(ctx, page)
	case "open":
		if fs.NArg() != 2 {
			return errors.New("usage: shortlink open <id>")
		}
		return c.open(ctx, fs.Arg(1), stdin)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// navigator opens destinations in the default browser, or prints them when
// printOnly is set.
func navigator(out io.Writer, printOnly bool, log *zap.Logger) service.Navigator {
	if printOnly {
		return service.NavigatorFunc(func(_ context.Context, destination string) error {
			_, err := fmt.Fprintln(out, destination)
			return err
		})
	}
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return service.NavigatorFunc(func(_ context.Context, destination string) error {
		if err := browser.OpenURL(destination); err != nil {
			log.Warn("failed to open browser", zap.String("destination", destination), zap.Error(err))
			return err
		}
		return nil
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
