// Package apitest runs an in-memory implementation of the jail management
// REST API for tests. It keeps just enough state to answer every endpoint
// the dashboard consumes and lets tests inject faults and latency.
package apitest

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"jaildash/internal/jailapi"
)

// Default credentials accepted by a fresh server.
const (
	Username = "admin"
	Password = "secret"
)

// Request is one recorded call.
type Request struct {
	Method        string
	Path          string
	Authorization string
	Body          []byte
}

type fault struct {
	status int
	msg    string
	drop   bool
}

// Server is a fake jail API bound to an httptest listener.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	tokens    map[string]bool
	configs   map[string]jailapi.JailConfig
	active    map[string]bool
	banned    map[string][]string
	ignore    []string
	templates map[string]jailapi.Template
	filters   map[string]string
	faults    map[string]fault
	delays    map[string]time.Duration
	requests  []Request
	logger    *slog.Logger
}

// New starts a seeded server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		tokens: make(map[string]bool),
		configs: map[string]jailapi.JailConfig{
			"sshd":     {Name: "sshd", Filter: "sshd", Logpath: "%(syslog_authpriv)s", Maxretry: 3, Findtime: 3600, Bantime: 600, Enabled: true, Backend: jailapi.BackendSystemd},
			"nginx":    {Name: "nginx", Filter: "nginx-http-auth", Logpath: "/var/log/nginx/error.log", Maxretry: 5, Findtime: 600, Bantime: 3600, Enabled: true},
			"recidive": {Name: "recidive", Filter: "recidive", Logpath: "/var/log/fail2ban.log", Maxretry: 5, Findtime: 86400, Bantime: 604800, Enabled: false},
		},
		active: map[string]bool{"sshd": true, "nginx": true},
		banned: map[string][]string{
			"sshd":  {"10.0.0.1", "10.0.0.2"},
			"nginx": {"192.168.5.0/24"},
		},
		ignore: []string{"127.0.0.1/8"},
		templates: map[string]jailapi.Template{
			"sshd-template":  {Filter: "sshd", Logpath: "%(syslog_authpriv)s", Maxretry: 3, Findtime: 3600, Bantime: 600},
			"nginx-template": {Filter: "nginx-http-auth", Logpath: "/var/log/nginx/error.log", Maxretry: 5},
		},
		filters: map[string]string{
			"sshd":  "[Definition]\nfailregex = ^Failed password for .* from <HOST>\n",
			"nginx": "[Definition]\nfailregex = ^<HOST> .* \"(GET|POST) .*\" 401\n",
		},
		faults: make(map[string]fault),
		delays: make(map[string]time.Duration),
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(s.withRecover(), s.withRequestLog(), s.record(), s.inject())

	api := r.Group("/api")
	api.POST("/login", s.handleLogin)

	authed := api.Group("", s.withToken())
	authed.GET("/verify-token", s.handleVerify)
	authed.GET("/jails", s.handleJails)
	authed.GET("/jails/config", s.handleListConfigs)
	authed.POST("/jails/config", s.handleSaveConfig)
	authed.DELETE("/jails/config/:name", s.handleDeleteConfig)
	authed.GET("/jails/templates", s.handleTemplates)
	authed.POST("/jails/:name/:action", s.handleJailAction)
	authed.GET("/filters/:name", s.handleFilter)
	authed.GET("/ignoreip", s.handleGetIgnore)
	authed.POST("/ignoreip", s.handleSaveIgnore)
	authed.GET("/banned/:jail", s.handleBanned)
	authed.POST("/ban", s.handleBan)
	authed.POST("/unban", s.handleUnban)
	return r
}

// IssueToken mints a token the server accepts, as if a login happened.
func (s *Server) IssueToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	tok := base64.RawURLEncoding.EncodeToString(b)
	s.mu.Lock()
	s.tokens[tok] = true
	s.mu.Unlock()
	return tok
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]bool)
	s.mu.Unlock()
}

// Fail makes method+path answer with status and an {"error": msg} body.
func (s *Server) Fail(method, path string, status int, msg string) {
	s.mu.Lock()
	s.faults[method+" "+path] = fault{status: status, msg: msg}
	s.mu.Unlock()
}

// Drop makes method+path close the connection without a response.
func (s *Server) Drop(method, path string) {
	s.mu.Lock()
	s.faults[method+" "+path] = fault{drop: true}
	s.mu.Unlock()
}

// Heal removes an injected fault.
func (s *Server) Heal(method, path string) {
	s.mu.Lock()
	delete(s.faults, method+" "+path)
	s.mu.Unlock()
}

// Delay holds responses for method+path for d, or until the caller gives up.
func (s *Server) Delay(method, path string, d time.Duration) {
	s.mu.Lock()
	s.delays[method+" "+path] = d
	s.mu.Unlock()
}

// SetBanned replaces the banned list of a jail.
func (s *Server) SetBanned(jail string, ips ...string) {
	s.mu.Lock()
	s.banned[jail] = append([]string(nil), ips...)
	s.mu.Unlock()
}

// SetActive replaces the set of running jails.
func (s *Server) SetActive(jails ...string) {
	s.mu.Lock()
	s.active = make(map[string]bool, len(jails))
	for _, j := range jails {
		s.active[j] = true
	}
	s.mu.Unlock()
}

// Banned returns the current banned list of a jail.
func (s *Server) Banned(jail string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.banned[jail]...)
}

// IgnoreIPs returns the stored allow-list.
func (s *Server) IgnoreIPs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ignore...)
}

// Config returns a stored jail configuration.
func (s *Server) Config(name string) (jailapi.JailConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jc, ok := s.configs[name]
	return jc, ok
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many times method+path was called.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// LastBody returns the body of the latest call to method+path.
func (s *Server) LastBody(method, path string) []byte {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i].Body
		}
	}
	return nil
}

func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			Authorization: c.GetHeader("Authorization"),
			Body:          body,
		})
		s.mu.Unlock()
		c.Next()
	}
}

func (s *Server) inject() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.Request.URL.Path
		s.mu.Lock()
		f, failing := s.faults[key]
		d := s.delays[key]
		s.mu.Unlock()

		if d > 0 {
			select {
			case <-time.After(d):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if !failing {
			c.Next()
			return
		}
		if f.drop {
			if conn, _, err := c.Writer.Hijack(); err == nil {
				_ = conn.Close()
			}
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(f.status, gin.H{"error": f.msg})
	}
}

func (s *Server) withToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		s.mu.Lock()
		ok := s.tokens[tok]
		s.mu.Unlock()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is invalid or expired"})
			return
		}
		c.Next()
	}
}

func (s *Server) withRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("panic", "panic", v)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			}
		}()
		c.Next()
	}
}

func (s *Server) withRequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"request_id", c.GetHeader("X-Request-ID"),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Username != Username || req.Password != Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": s.IssueToken()})
}

func (s *Server) handleVerify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) handleJails(c *gin.Context) {
	s.mu.Lock()
	jails := make([]string, 0, len(s.active))
	for j, on := range s.active {
		if on {
			jails = append(jails, j)
		}
	}
	s.mu.Unlock()
	sort.Strings(jails)
	c.JSON(http.StatusOK, gin.H{"jails": jails})
}

func (s *Server) handleListConfigs(c *gin.Context) {
	s.mu.Lock()
	out := make([]jailapi.JailConfig, 0, len(s.configs))
	for _, jc := range s.configs {
		out = append(out, jc)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, gin.H{"jails": out})
}

func (s *Server) handleSaveConfig(c *gin.Context) {
	var jc jailapi.JailConfig
	if err := c.ShouldBindJSON(&jc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	required := []struct{ field, value string }{
		{"name", jc.Name},
		{"filter", jc.Filter},
		{"logpath", jc.Logpath},
	}
	for _, r := range required {
		if r.value == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: " + r.field})
			return
		}
	}
	s.mu.Lock()
	s.configs[jc.Name] = jc
	s.active[jc.Name] = jc.Enabled
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"status":      jailapi.StatusSuccess,
		"message":     fmt.Sprintf("Jail %s created and activated", jc.Name),
		"jail_active": jc.Enabled,
	})
}

func (s *Server) handleDeleteConfig(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	_, ok := s.configs[name]
	if ok {
		delete(s.configs, name)
		delete(s.active, name)
		delete(s.banned, name)
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Jail " + name + " not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": jailapi.StatusSuccess, "message": "Jail " + name + " deleted"})
}

func (s *Server) handleTemplates(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"templates": s.templates})
}

func (s *Server) handleJailAction(c *gin.Context) {
	name, action := c.Param("name"), c.Param("action")
	if action != "start" && action != "stop" {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown action " + action})
		return
	}
	s.mu.Lock()
	jc, ok := s.configs[name]
	if ok {
		jc.Enabled = action == "start"
		s.configs[name] = jc
		s.active[name] = jc.Enabled
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "error", "error": "Jail " + name + " not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": jailapi.StatusSuccess})
}

func (s *Server) handleFilter(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	content, ok := s.filters[name]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Filter " + name + " not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": jailapi.StatusSuccess, "content": content})
}

func (s *Server) handleGetIgnore(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ignoreip": s.IgnoreIPs()})
}

func (s *Server) handleSaveIgnore(c *gin.Context) {
	var req struct {
		IgnoreIP []string `json:"ignoreip"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.mu.Lock()
	s.ignore = append([]string(nil), req.IgnoreIP...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": jailapi.StatusSuccess})
}

func (s *Server) handleBanned(c *gin.Context) {
	jail := c.Param("jail")
	s.mu.Lock()
	_, known := s.configs[jail]
	ips := append([]string(nil), s.banned[jail]...)
	s.mu.Unlock()
	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sorry but the jail '" + jail + "' does not exist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusText(jail, ips)})
}

func (s *Server) handleBan(c *gin.Context) {
	var req struct {
		Jail string `json:"jail"`
		IP   string `json:"ip"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Jail == "" || req.IP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jail and ip are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ip := range s.banned[req.Jail] {
		if ip == req.IP {
			c.JSON(http.StatusOK, gin.H{"status": jailapi.StatusWarning, "message": fmt.Sprintf("IP %s is already banned in %s", req.IP, req.Jail)})
			return
		}
	}
	s.banned[req.Jail] = append(s.banned[req.Jail], req.IP)
	c.JSON(http.StatusOK, gin.H{"status": jailapi.StatusSuccess, "message": fmt.Sprintf("IP %s banned in %s", req.IP, req.Jail)})
}

func (s *Server) handleUnban(c *gin.Context) {
	var req struct {
		Jail string `json:"jail"`
		IP   string `json:"ip"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ips := s.banned[req.Jail]
	for i, ip := range ips {
		if ip == req.IP {
			s.banned[req.Jail] = append(ips[:i:i], ips[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"status": jailapi.StatusSuccess})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "error", "error": fmt.Sprintf("IP %s is not banned in %s", req.IP, req.Jail)})
}

// statusText renders a jail status the way fail2ban-client prints it.
func statusText(jail string, ips []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status for the jail: %s\n", jail)
	b.WriteString("|- Filter\n")
	b.WriteString("|  |- Currently failed:\t0\n")
	b.WriteString("|  `- Total failed:\t0\n")
	b.WriteString("`- Actions\n")
	fmt.Fprintf(&b, "   |- Currently banned:\t%d\n", len(ips))
	fmt.Fprintf(&b, "   |- Total banned:\t%d\n", len(ips))
	fmt.Fprintf(&b, "   `- Banned IP list:\t%s\n", strings.Join(ips, " "))
	return b.String()
}
