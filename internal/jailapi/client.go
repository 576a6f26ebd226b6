// Package jailapi is a typed client for the jail management REST API.
// Every call returns either its payload or an error from the taxonomy in
// errors.go; a 401 on an authenticated call also fires the unauthorized hook.
package jailapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Client struct {
	baseURL *url.URL
	hc      *http.Client
	token   func() string
	ua      string
	logger  *slog.Logger

	mu             sync.RWMutex
	onUnauthorized func()
}

type ClientOptions struct {
	Addr      string
	Insecure  bool
	Timeout   time.Duration
	UserAgent string
	// Jar carries the "token" cookie alongside the bearer header.
	Jar http.CookieJar
	// Token supplies the bearer token for authenticated calls.
	Token  func() string
	Logger *slog.Logger
}

func NewClient(opt ClientOptions) (*Client, error) {
	if opt.Addr == "" {
		return nil, errors.New("addr is required")
	}
	u, err := url.Parse(opt.Addr)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return nil, errors.New("invalid addr")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawPath = ""

	t := http.DefaultTransport.(*http.Transport).Clone()
	if strings.EqualFold(u.Scheme, "https") {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: opt.Insecure} //nolint:gosec
	}

	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	token := opt.Token
	if token == nil {
		token = func() string { return "" }
	}
	ua := opt.UserAgent
	if ua == "" {
		ua = "jaildash"
	}
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}

	hc := &http.Client{Transport: t, Jar: opt.Jar, Timeout: timeout}
	return &Client{baseURL: u, hc: hc, token: token, ua: ua, logger: lg}, nil
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// SetUnauthorizedHandler installs fn to run whenever an authenticated call
// comes back with HTTP 401.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}
	var resp struct {
		reply
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, false, req, &resp, "api", "login"); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &Error{StatusCode: http.StatusOK, Message: resp.Error}
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

// VerifyToken succeeds when the server still accepts the current token.
func (c *Client) VerifyToken(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, true, nil, nil, "api", "verify-token")
}

// ListJails returns the names of the active jails.
func (c *Client) ListJails(ctx context.Context) ([]string, error) {
	var resp struct {
		reply
		Jails []string `json:"jails"`
	}
	if err := c.doJSON(ctx, http.MethodGet, true, nil, &resp, "api", "jails"); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	if resp.Jails == nil {
		resp.Jails = []string{}
	}
	return resp.Jails, nil
}

// ListJailConfigs returns every configured jail, active or not.
func (c *Client) ListJailConfigs(ctx context.Context) ([]JailConfig, error) {
	var resp struct {
		reply
		Jails []JailConfig `json:"jails"`
	}
	if err := c.doJSON(ctx, http.MethodGet, true, nil, &resp, "api", "jails", "config"); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	return resp.Jails, nil
}

// SaveJailConfig creates or replaces the configuration for jc.Name.
func (c *Client) SaveJailConfig(ctx context.Context, jc JailConfig) (SaveResult, error) {
	var resp struct {
		reply
		JailActive bool `json:"jail_active"`
	}
	if err := c.doJSON(ctx, http.MethodPost, true, jc, &resp, "api", "jails", "config"); err != nil {
		return SaveResult{}, err
	}
	if err := resp.check(StatusSuccess); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Status: resp.Status, Message: resp.Message, JailActive: resp.JailActive}, nil
}

// DeleteJailConfig stops the jail and removes its configuration.
func (c *Client) DeleteJailConfig(ctx context.Context, name string) error {
	var resp reply
	if err := c.doJSON(ctx, http.MethodDelete, true, nil, &resp, "api", "jails", "config", name); err != nil {
		return err
	}
	return resp.check(StatusSuccess)
}

// StartJail enables a configured jail.
func (c *Client) StartJail(ctx context.Context, name string) error {
	return c.jailAction(ctx, name, "start")
}

// StopJail disables a running jail.
func (c *Client) StopJail(ctx context.Context, name string) error {
	return c.jailAction(ctx, name, "stop")
}

func (c *Client) jailAction(ctx context.Context, name, action string) error {
	var resp reply
	if err := c.doJSON(ctx, http.MethodPost, true, nil, &resp, "api", "jails", name, action); err != nil {
		return err
	}
	return resp.check(StatusSuccess)
}

// ListTemplates returns the server's jail presets keyed by template name.
func (c *Client) ListTemplates(ctx context.Context) (map[string]Template, error) {
	var resp struct {
		reply
		Templates map[string]Template `json:"templates"`
	}
	if err := c.doJSON(ctx, http.MethodGet, true, nil, &resp, "api", "jails", "templates"); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	if resp.Templates == nil {
		resp.Templates = map[string]Template{}
	}
	return resp.Templates, nil
}

// GetFilter returns the definition text of a log filter.
func (c *Client) GetFilter(ctx context.Context, name string) (string, error) {
	var resp struct {
		reply
		Content string `json:"content"`
	}
	if err := c.doJSON(ctx, http.MethodGet, true, nil, &resp, "api", "filters", name); err != nil {
		return "", err
	}
	if err := resp.check(StatusSuccess); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GetIgnoreIPs returns the allow-list of addresses exempt from banning.
func (c *Client) GetIgnoreIPs(ctx context.Context) ([]string, error) {
	var resp struct {
		reply
		IgnoreIP []string `json:"ignoreip"`
	}
	if err := c.doJSON(ctx, http.MethodGet, true, nil, &resp, "api", "ignoreip"); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	if resp.IgnoreIP == nil {
		resp.IgnoreIP = []string{}
	}
	return resp.IgnoreIP, nil
}

// SaveIgnoreIPs replaces the whole allow-list with ips.
func (c *Client) SaveIgnoreIPs(ctx context.Context, ips []string) error {
	if ips == nil {
		ips = []string{}
	}
	req := struct {
		IgnoreIP []string `json:"ignoreip"`
	}{ips}
	var resp reply
	if err := c.doJSON(ctx, http.MethodPost, true, req, &resp, "api", "ignoreip"); err != nil {
		return err
	}
	return resp.check(StatusSuccess)
}

// JailStatus returns the raw status text of a jail, which embeds the
// "Banned IP list:" line.
func (c *Client) JailStatus(ctx context.Context, jail string) (string, error) {
	var resp struct {
		Status *string `json:"status"`
		Error  string  `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodGet, true, nil, &resp, "api", "banned", jail); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &Error{StatusCode: http.StatusOK, Message: resp.Error}
	}
	if resp.Status == nil {
		return "", &Error{StatusCode: http.StatusOK, Message: "Error loading banned IPs."}
	}
	return *resp.Status, nil
}

// Ban blocks ip in jail. A "warning" status is still a completed ban; its
// message is returned for display.
func (c *Client) Ban(ctx context.Context, jail, ip string) (BanResult, error) {
	req := banRequest{Jail: jail, IP: ip}
	var resp reply
	if err := c.doJSON(ctx, http.MethodPost, true, req, &resp, "api", "ban"); err != nil {
		return BanResult{}, err
	}
	if err := resp.check(StatusSuccess, StatusWarning); err != nil {
		return BanResult{}, err
	}
	return BanResult{Status: resp.Status, Message: resp.Message}, nil
}

// Unban lifts the ban on ip in jail.
func (c *Client) Unban(ctx context.Context, jail, ip string) error {
	req := banRequest{Jail: jail, IP: ip}
	var resp reply
	if err := c.doJSON(ctx, http.MethodPost, true, req, &resp, "api", "unban"); err != nil {
		return err
	}
	return resp.check(StatusSuccess)
}

type banRequest struct {
	Jail string `json:"jail"`
	IP   string `json:"ip"`
}

func (c *Client) doJSON(ctx context.Context, method string, auth bool, body any, out any, segments ...string) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.baseURL.JoinPath(escaped...)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", c.ua)
	rid := uuid.NewString()
	req.Header.Set("x-request-id", rid)
	if auth {
		if tok := c.token(); tok != "" {
			req.Header.Set("authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", u.Path, "request_id", rid, "err", err)
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request",
		"method", method,
		"path", u.Path,
		"status", resp.StatusCode,
		"request_id", rid,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusUnauthorized && auth {
		c.mu.RLock()
		fn := c.onUnauthorized
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Error != "" {
			return &Error{StatusCode: resp.StatusCode, Message: er.Error}
		}
		return &Error{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, u.Path, err)
	}
	return nil
}
