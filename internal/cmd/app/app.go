// Package app wires configuration, logging, token storage and the API client
// shared by every subcommand.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/term"

	"jaildash/internal/config"
	"jaildash/internal/dashboard"
	"jaildash/internal/geoip"
	"jaildash/internal/jailapi"
	"jaildash/internal/logging"
	"jaildash/internal/session"
	"jaildash/internal/textview"
	"jaildash/internal/tui"
)

// ErrReported marks failures the operator has already been shown.
var ErrReported = errors.New("already reported")

// Options are the persistent root flags plus the filesystem holding the
// session token.
type Options struct {
	ConfigPath string
	Addr       string
	LogLevel   string

	Fs afero.Fs
}

// App holds everything a subcommand needs to talk to the server.
type App struct {
	Config config.Config
	Logger *slog.Logger
	Store  *session.Store
	Client *jailapi.Client
	Geo    *geoip.Locator

	closeLog func() error
}

// Open loads the config and builds the client. With logToFile set the logger
// writes to log.file instead of stderr.
func Open(opt *Options, stderr io.Writer, logToFile bool) (*App, error) {
	path, optional := opt.ConfigPath, false
	if path == "" {
		path, optional = config.DefaultPath(), true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if opt.Addr != "" {
		cfg.Server.Addr = strings.TrimRight(strings.TrimSpace(opt.Addr), "/")
	}
	if opt.LogLevel != "" {
		cfg.Log.Level = opt.LogLevel
	}

	lo := logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Writer: stderr}
	if logToFile {
		lo.File = cfg.Log.File
	}
	lg, closeLog, err := logging.New(lo)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	site, err := url.Parse(cfg.Server.Addr)
	if err != nil || site.Host == "" {
		_ = closeLog()
		return nil, fmt.Errorf("invalid server address %q", cfg.Server.Addr)
	}
	fs := opt.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	store, err := session.NewStore(fs, cfg.Session.TokenPath, site)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	client, err := jailapi.NewClient(jailapi.ClientOptions{
		Addr:      cfg.Server.Addr,
		Insecure:  cfg.Server.Insecure,
		Timeout:   cfg.Server.Timeout,
		UserAgent: "jaildash",
		Jar:       store.Jar(),
		Token:     store.Token,
		Logger:    lg,
	})
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	geo, err := geoip.Open(cfg.GeoIP.Database)
	if err != nil {
		lg.Warn("geoip disabled", "database", cfg.GeoIP.Database, "err", err)
		geo, _ = geoip.Open("")
	}

	return &App{
		Config:   cfg,
		Logger:   lg,
		Store:    store,
		Client:   client,
		Geo:      geo,
		closeLog: closeLog,
	}, nil
}

// Session builds a guard and a controller that render to view and nav.
func (a *App) Session(view dashboard.View, nav session.Navigator) (*session.Guard, *dashboard.Controller) {
	guard := session.New(session.Options{
		Store:             a.Store,
		Auth:              a.Client,
		Navigator:         nav,
		InactivityTimeout: a.Config.Session.InactivityTimeout,
		Logger:            a.Logger,
	})
	a.Client.SetUnauthorizedHandler(guard.Unauthorized)
	ctl := dashboard.New(dashboard.Options{
		API:             a.Client,
		View:            view,
		Locator:         a.Geo,
		Logger:          a.Logger,
		RefreshInterval: a.Config.Dashboard.RefreshInterval,
		TemplateTTL:     a.Config.Dashboard.TemplateTTL,
	})
	return guard, ctl
}

// Run verifies the stored session, then calls fn with a controller that
// prints data to out and alerts to errOut. Failures fn reports through the
// view come back wrapped in ErrReported.
func (a *App) Run(ctx context.Context, out, errOut io.Writer, fn func(context.Context, *dashboard.Controller, *textview.View) error) error {
	view := textview.New(out, errOut, TerminalWidth(out))
	guard, ctl := a.Session(view, view)
	defer guard.Stop()
	defer ctl.Stop()

	if err := guard.Check(ctx); err != nil {
		return Reported(err)
	}
	if err := fn(ctx, ctl, view); err != nil {
		return Reported(err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Geo != nil {
		errs = append(errs, a.Geo.Close())
	}
	if a.closeLog != nil {
		errs = append(errs, a.closeLog())
	}
	return errors.Join(errs...)
}

// Reported wraps err in ErrReported.
func Reported(err error) error {
	return fmt.Errorf("%w: %w", ErrReported, err)
}

// TerminalWidth is the pixel width the grids are laid out for, zero when
// out is not a terminal.
func TerminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w * tui.CellWidth
}
