// Package session guards access to the dashboard: it acquires and stores
// the bearer token, verifies it when a screen loads, and forces a logout
// after a period without operator input or on any 401.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Page is a top-level screen the guard can send the operator to.
type Page int

const (
	PageLogin Page = iota
	PageDashboard
)

func (p Page) String() string {
	switch p {
	case PageLogin:
		return "login"
	case PageDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// Reasons passed to the navigator when a session ends.
const (
	ReasonExpired      = "Session expired after inactivity"
	ReasonUnauthorized = "Session is no longer valid, please log in again"
	ReasonNoToken      = "Please log in"
	ReasonLoggedOut    = "Logged out"
)

// Navigator switches screens. Implementations must be safe to call from
// any goroutine.
type Navigator interface {
	Navigate(page Page, reason string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(page Page, reason string)

func (f NavigatorFunc) Navigate(page Page, reason string) { f(page, reason) }

// Authenticator is the part of the API the guard needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	VerifyToken(ctx context.Context) error
}

// ErrNoToken is returned by Check when nothing is stored.
var ErrNoToken = errors.New("no session token")

type Options struct {
	Store             *Store
	Auth              Authenticator
	Navigator         Navigator
	InactivityTimeout time.Duration
	Logger            *slog.Logger
}

// Guard owns the session lifecycle. All state lives on the guard; it is
// safe for concurrent use.
type Guard struct {
	store   *Store
	auth    Authenticator
	nav     Navigator
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	active   bool
	gen      uint64
	timer    *time.Timer
	deadline time.Time
}

func New(opt Options) *Guard {
	timeout := opt.InactivityTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}
	nav := opt.Navigator
	if nav == nil {
		nav = NavigatorFunc(func(Page, string) {})
	}
	return &Guard{store: opt.Store, auth: opt.Auth, nav: nav, timeout: timeout, logger: lg}
}

// Token returns the current bearer token; suitable as the API client's
// token source.
func (g *Guard) Token() string { return g.store.Token() }

// Active reports whether a verified session is running.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Check runs when the dashboard loads. Without a token, or when the server
// rejects it, the session is cleared and the operator sent to login.
func (g *Guard) Check(ctx context.Context) error {
	if g.store.Token() == "" {
		g.end(ReasonNoToken, true)
		return ErrNoToken
	}
	if err := g.auth.VerifyToken(ctx); err != nil {
		g.logger.Warn("token verification failed", "err", err)
		g.end(ReasonUnauthorized, true)
		return err
	}
	g.Start()
	return nil
}

// Login submits credentials. A failure is returned for inline display and
// leaves any stored session untouched.
func (g *Guard) Login(ctx context.Context, username, password string) error {
	tok, err := g.auth.Login(ctx, username, password)
	if err != nil {
		g.logger.Info("login failed", "username", username, "err", err)
		return err
	}
	if err := g.store.Save(tok); err != nil {
		return err
	}
	g.logger.Info("login succeeded", "username", username)
	g.Start()
	g.nav.Navigate(PageDashboard, "")
	return nil
}

// Logout clears the token and cookie and returns to the login screen.
func (g *Guard) Logout() {
	g.end(ReasonLoggedOut, true)
}

// Unauthorized is the API client's 401 hook.
func (g *Guard) Unauthorized() {
	g.end(ReasonUnauthorized, false)
}

// Touch records operator activity and restarts the inactivity countdown.
func (g *Guard) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return
	}
	g.armLocked()
}

// Remaining is the time left before an inactivity logout, zero when no
// session is running.
func (g *Guard) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return 0
	}
	if d := time.Until(g.deadline); d > 0 {
		return d
	}
	return 0
}

// Stop disarms the inactivity timer without touching the stored token.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	g.disarmLocked()
}

// Start marks the session running and arms the inactivity timer.
func (g *Guard) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = true
	g.armLocked()
}

// end clears the session. The navigator is called when force is set or a
// session was running, so a burst of 401s redirects once.
func (g *Guard) end(reason string, force bool) {
	g.mu.Lock()
	wasActive := g.active
	g.active = false
	g.disarmLocked()
	g.mu.Unlock()

	if err := g.store.Clear(); err != nil {
		g.logger.Error("clear token", "err", err)
	}
	if !wasActive && !force {
		return
	}
	g.logger.Info("session ended", "reason", reason)
	g.nav.Navigate(PageLogin, reason)
}

func (g *Guard) armLocked() {
	g.disarmLocked()
	g.gen++
	gen := g.gen
	g.deadline = time.Now().Add(g.timeout)
	g.timer = time.AfterFunc(g.timeout, func() { g.idle(gen) })
}

func (g *Guard) disarmLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.deadline = time.Time{}
}

// idle fires when a countdown completes; a countdown superseded by Touch
// carries a stale generation and is ignored.
func (g *Guard) idle(gen uint64) {
	g.mu.Lock()
	current := g.active && gen == g.gen
	g.mu.Unlock()
	if !current {
		return
	}
	g.end(ReasonExpired, false)
}
