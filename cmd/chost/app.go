package main

import (
	"context"
	"fmt"
	"io"

	"github.com/joss/chost/internal/config"
	"github.com/joss/chost/internal/logging"
	"github.com/joss/chost/internal/render"
	"github.com/joss/chost/internal/runtime"
	"github.com/joss/chost/internal/storage"
	"github.com/joss/chost/pkg/cohost"
)

// app is the state shared by every command of one invocation.
type app struct {
	in     io.Reader
	out    *render.Writer
	errOut *render.Writer
	stderr io.Writer

	cfgFile string
	pretty  bool

	cfg      *config.Config
	log      *logging.Logger
	shutdown *runtime.ShutdownManager
	cache    *storage.Storage
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		in:     stdin,
		out:    render.NewWriter(stdout),
		errOut: render.NewWriter(stderr),
		stderr: stderr,
		pretty: true,
		log:    logging.New("chost").WithWriter(stderr).WithLevel(logging.LevelWarn),
	}
}

// setup loads configuration and starts signal handling.
func (a *app) setup() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New("chost").WithWriter(a.stderr).WithLevel(logging.LevelFromString(cfg.LogLevel))

	a.shutdown = runtime.NewShutdownManager(runtime.DefaultShutdownTimeout, a.log)
	a.shutdown.ListenForSignals()
	return nil
}

// close runs the registered cleanup. It is a no-op when no command ran.
func (a *app) close() error {
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown.Shutdown()
}

// ctx is cancelled on SIGINT/SIGTERM.
func (a *app) ctx() context.Context {
	return logging.WithRequestID(a.shutdown.Context(), logging.NewRequestID())
}

func (a *app) renderer() *render.Renderer {
	return render.New(a.pretty)
}

// client builds a Cohost client bound to the configured cookie file. The
// jar is saved when the command finishes.
func (a *app) client() (*cohost.Client, error) {
	c, err := cohost.NewClient(
		cohost.WithBaseURL(a.cfg.BaseURL),
		cohost.WithTimeout(a.cfg.Timeout),
		cohost.WithLogger(a.log),
		cohost.WithCookieJarPath(a.cfg.CookieFile),
	)
	if err != nil {
		return nil, err
	}
	a.shutdown.RegisterClose("client", c.Close)
	return c, nil
}

// resume restores the session saved by a previous login.
func (a *app) resume() (*cohost.Client, cohost.Session, error) {
	c, err := a.client()
	if err != nil {
		return nil, cohost.Session{}, err
	}
	sess, err := c.LoginWithCookieFile(a.ctx(), a.cfg.CookieFile)
	if err != nil {
		return nil, cohost.Session{}, err
	}
	return c, sess, nil
}

// openCache opens the local cache once per invocation.
func (a *app) openCache() (*storage.Storage, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	if err := config.EnsureDir(a.cfg.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s, err := storage.New(a.cfg.CacheDB())
	if err != nil {
		return nil, err
	}
	a.cache = s
	a.shutdown.RegisterClose("cache", s.Close)
	return s, nil
}
