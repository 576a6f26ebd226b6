package tui

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jaildash/internal/apitest"
	"jaildash/internal/dashboard"
	"jaildash/internal/jailapi"
	"jaildash/internal/logging"
	"jaildash/internal/session"
)

// harness drives a Model the way a running program would: commands run in
// goroutines and their messages, like the bridge's, come back through msgs.
type harness struct {
	t     *testing.T
	srv   *apitest.Server
	store *session.Store
	guard *session.Guard
	ctl   *dashboard.Controller
	msgs  chan tea.Msg
	m     Model
}

func newHarness(t *testing.T, loggedIn bool) *harness {
	t.Helper()
	srv := apitest.New(t)
	site, err := url.Parse(srv.URL)
	require.NoError(t, err)
	store, err := session.NewStore(afero.NewMemMapFs(), "/state/jaildash/token", site)
	require.NoError(t, err)
	if loggedIn {
		require.NoError(t, store.Save(srv.IssueToken()))
	}

	client, err := jailapi.NewClient(jailapi.ClientOptions{
		Addr:   srv.URL,
		Jar:    store.Jar(),
		Token:  store.Token,
		Logger: logging.Discard(),
	})
	require.NoError(t, err)

	h := &harness{t: t, srv: srv, store: store, msgs: make(chan tea.Msg, 512)}
	bridge := NewBridge()
	bridge.attach(func(msg tea.Msg) { h.msgs <- msg })

	h.guard = session.New(session.Options{
		Store:             store,
		Auth:              client,
		Navigator:         bridge,
		InactivityTimeout: time.Minute,
		Logger:            logging.Discard(),
	})
	client.SetUnauthorizedHandler(h.guard.Unauthorized)
	h.ctl = dashboard.New(dashboard.Options{
		API:             client,
		View:            bridge,
		Logger:          logging.Discard(),
		RefreshInterval: time.Hour,
	})
	t.Cleanup(h.ctl.Stop)
	t.Cleanup(h.guard.Stop)

	h.m = New(Options{Context: context.Background(), Controller: h.ctl, Guard: h.guard, Bridge: bridge, Addr: srv.URL})
	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	h.dispatch(h.m.Init())
	return h
}

func (h *harness) send(msg tea.Msg) {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	h.dispatch(cmd)
}

func (h *harness) dispatch(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				h.dispatch(c)
			}
			return
		}
		switch msg.(type) {
		case nil, tickMsg, cursor.BlinkMsg:
			return
		}
		h.msgs <- msg
	}()
}

func (h *harness) key(s string) {
	switch s {
	case "enter":
		h.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "tab":
		h.send(tea.KeyMsg{Type: tea.KeyTab})
	case "esc":
		h.send(tea.KeyMsg{Type: tea.KeyEsc})
	case "right":
		h.send(tea.KeyMsg{Type: tea.KeyRight})
	case "ctrl+s":
		h.send(tea.KeyMsg{Type: tea.KeyCtrlS})
	default:
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	}
}

// waitFor applies incoming messages until cond holds.
func (h *harness) waitFor(what string, cond func(m Model) bool) {
	h.t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond(h.m) {
		select {
		case msg := <-h.msgs:
			h.send(msg)
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s; view:\n%s", what, h.m.View())
		}
	}
}

func (h *harness) dashboardLoaded() {
	h.t.Helper()
	h.waitFor("dashboard", func(m Model) bool {
		return m.st == stateJails && len(m.jails) == 2 && m.bannedJail == "nginx"
	})
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t, false)
	h.waitFor("login prompt", func(m Model) bool {
		return m.st == stateLogin && m.status == session.ReasonNoToken
	})

	h.key(apitest.Username)
	h.key("tab")
	h.key(apitest.Password)
	h.key("enter")
	h.dashboardLoaded()

	assert.Equal(t, []string{"nginx", "sshd"}, h.m.jails)
	assert.NotEmpty(t, h.store.Token())
	v := h.m.View()
	assert.Contains(t, v, "192.168.5.0/24")
	assert.Contains(t, v, "idle logout in")
}

func TestLoginFailureShowsError(t *testing.T) {
	h := newHarness(t, false)
	h.waitFor("login prompt", func(m Model) bool { return m.st == stateLogin && m.user.Focused() })

	h.key(apitest.Username)
	h.key("tab")
	h.key("wrong")
	h.key("enter")
	h.waitFor("login error", func(m Model) bool { return m.err != "" })

	assert.Equal(t, stateLogin, h.m.st)
	assert.Equal(t, "Invalid credentials", h.m.err)
	assert.Empty(t, h.m.pass.Value())
	assert.Contains(t, h.m.View(), "Error: Invalid credentials")
}

func TestRevokedTokenReturnsToLogin(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()

	h.srv.RevokeTokens()
	h.key("r")
	h.waitFor("login", func(m Model) bool { return m.st == stateLogin })

	assert.Equal(t, session.ReasonUnauthorized, h.m.status)
	assert.Empty(t, h.m.jails)
	assert.Empty(t, h.m.banned)
	assert.Empty(t, h.store.Token())
}

func TestLogoutKey(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()

	h.key("x")
	h.waitFor("login", func(m Model) bool { return m.st == stateLogin })
	assert.Equal(t, session.ReasonLoggedOut, h.m.status)
	assert.False(t, h.guard.Active())
}

func TestUnbanAndBanFromBannedList(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()

	h.key("l")
	h.key("enter")
	h.waitFor("sshd list", func(m Model) bool {
		return m.bannedJail == "sshd" && len(m.banned) == 2
	})
	assert.Equal(t, paneBanned, h.m.pane)
	assert.Equal(t, 3, h.m.bannedCols)
	assert.Contains(t, h.m.View(), "> 10.0.0.1")

	h.key("u")
	require.NotNil(t, h.m.pendingUnban)
	assert.Contains(t, h.m.View(), "Unban 10.0.0.1 from sshd?")
	h.key("y")
	h.waitFor("unban", func(m Model) bool {
		return m.status == dashboard.MsgUnbanned && len(m.banned) == 1
	})
	assert.Equal(t, []string{"10.0.0.2"}, h.srv.Banned("sshd"))

	h.key("b")
	require.True(t, h.m.banning)
	h.key("10.9.9.9")
	h.key("enter")
	h.waitFor("ban", func(m Model) bool { return len(m.banned) == 2 })
	assert.Contains(t, h.srv.Banned("sshd"), "10.9.9.9")
}

func TestUnbanCanceled(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()

	h.key("tab")
	h.key("u")
	require.NotNil(t, h.m.pendingUnban)
	h.key("n")
	assert.Nil(t, h.m.pendingUnban)
	assert.Equal(t, "Unban canceled", h.m.status)
	assert.Zero(t, h.srv.Count("POST", "/api/unban"))
}

func TestJailFormSubmit(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()

	h.key("c")
	h.waitFor("configs", func(m Model) bool { return len(m.configLst.Items()) == 3 })
	h.key("n")
	require.Equal(t, stateForm, h.m.st)

	h.key("tab")
	h.key("tab")
	require.Equal(t, fieldFilter, h.m.field)
	h.key("right")
	h.waitFor("sshd defaults", func(m Model) bool {
		return m.inputs[fieldName].Value() == "sshd" && m.filterContent != ""
	})
	assert.Contains(t, h.m.View(), "backend=systemd")

	h.key("ctrl+s")
	h.waitFor("saved", func(m Model) bool {
		return m.st == stateConfigs && strings.HasPrefix(m.status, dashboard.MsgJailSaved)
	})
	assert.Contains(t, string(h.srv.LastBody("POST", "/api/jails/config")), `"backend":"systemd"`)
}

func TestJailFormRejectsBadNumber(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()

	h.key("c")
	h.key("n")
	h.m.inputs[fieldName].SetValue("app")
	h.m.inputs[fieldMaxretry].SetValue("three")
	h.key("ctrl+s")

	assert.Equal(t, stateForm, h.m.st)
	assert.Equal(t, "Max retry must be a whole number", h.m.status)
	assert.Zero(t, h.srv.Count("POST", "/api/jails/config"))
}

func TestEditLoadsConfig(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()

	h.key("c")
	h.waitFor("configs", func(m Model) bool { return len(m.configLst.Items()) == 3 })
	sel := h.m.configLst.SelectedItem().(configItem)
	h.key("e")
	h.waitFor("form filled", func(m Model) bool { return m.inputs[fieldName].Value() == sel.Name })
	want := dashboard.FormFromConfig(jailapi.JailConfig(sel))
	assert.Equal(t, want.Filter, h.m.currentFilter())
	assert.Equal(t, want.CustomFilter, h.m.inputs[fieldCustom].Value())
	assert.Equal(t, sel.Enabled, h.m.enabled)
}

func TestIgnoreEditor(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()

	h.key("i")
	h.waitFor("ignore list", func(m Model) bool { return len(m.ignoreLst.Items()) == 1 })

	h.key("10.1.0.0/16")
	h.key("enter")
	h.waitFor("added", func(m Model) bool {
		return len(m.ignoreLst.Items()) == 2 && m.ignoreIn.Value() == ""
	})

	h.key("not-an-ip")
	h.key("enter")
	h.waitFor("rejected", func(m Model) bool { return m.status != "" })
	assert.Equal(t, "not-an-ip", h.m.ignoreIn.Value())
	assert.Len(t, h.m.ignoreLst.Items(), 2)

	h.key("ctrl+s")
	h.waitFor("saved", func(m Model) bool { return m.status == dashboard.MsgIgnoreSaved })
	assert.Equal(t, []string{"127.0.0.1/8", "10.1.0.0/16"}, h.srv.IgnoreIPs())
}

func TestGridLayout(t *testing.T) {
	m := New(Options{})
	m.st = stateJails
	m.jails = []string{"a", "b", "c"}
	m.columns = 2

	v := m.View()
	assert.Contains(t, v, "> a")
	assert.Contains(t, v, "  b\n")
	assert.Contains(t, v, "  c\n")
	assert.Contains(t, v, "No jails to display.")
}

func TestBannedGridLayout(t *testing.T) {
	m := New(Options{})
	m.st = stateJails
	m.pane = paneBanned
	m.bannedJail = "sshd"
	m.banned = []dashboard.BannedIP{
		{Addr: "10.0.0.1", Country: "DE"},
		{Addr: "10.0.0.2"},
		{Addr: "10.0.1.0/24", Subnet: true},
		{Addr: "10.0.0.4"},
		{Addr: "10.0.0.5"},
	}
	m.bannedCols = 2

	v := m.View()
	assert.Contains(t, v, "Banned IPs in sshd\n")
	assert.Regexp(t, `> 10\.0\.0\.1 \(DE\) +  10\.0\.0\.2\n`, v)
	assert.Regexp(t, `  10\.0\.1\.0/24 \[subnet\] +  10\.0\.0\.4\n`, v)
	assert.Contains(t, v, "\n  10.0.0.5\n")

	next, _ := m.updateJails(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = next.(Model)
	assert.Equal(t, 2, m.bannedCursor)
	next, _ = m.updateJails(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	m = next.(Model)
	next, _ = m.updateJails(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = next.(Model)
	assert.Equal(t, 3, m.bannedCursor, "no cell below the last row")

	next, _ = m.updateJails(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
	m = next.(Model)
	require.NotNil(t, m.pendingUnban)
	assert.Equal(t, "10.0.0.4", m.pendingUnban.Addr)
}

func TestBannedCursorResetsOnJailChange(t *testing.T) {
	m := New(Options{})
	ips := []dashboard.BannedIP{{Addr: "10.0.0.1"}, {Addr: "10.0.0.2"}, {Addr: "10.0.0.3"}}
	next, _ := m.Update(bannedMsg{jail: "sshd", ips: ips, columns: 3})
	m = next.(Model)
	m.bannedCursor = 2

	next, _ = m.Update(bannedMsg{jail: "sshd", ips: ips[:2], columns: 3})
	m = next.(Model)
	assert.Equal(t, 1, m.bannedCursor, "clamped to the shorter list")

	next, _ = m.Update(bannedMsg{jail: "nginx", ips: ips, columns: 1})
	m = next.(Model)
	assert.Zero(t, m.bannedCursor)
	assert.Equal(t, 1, m.bannedCols)
}

func TestInputResetsIdleTimer(t *testing.T) {
	h := newHarness(t, true)
	h.dashboardLoaded()
	require.True(t, h.guard.Active())

	time.Sleep(1100 * time.Millisecond)
	before := h.guard.Remaining()
	require.Less(t, before, 59*time.Second)
	h.send(tea.MouseMsg{X: 4, Y: 2, Action: tea.MouseActionMotion, Button: tea.MouseButtonNone})
	assert.Greater(t, h.guard.Remaining(), before+500*time.Millisecond)

	time.Sleep(1100 * time.Millisecond)
	before = h.guard.Remaining()
	h.send(tea.KeyMsg{Type: tea.KeyDown})
	assert.Greater(t, h.guard.Remaining(), before+500*time.Millisecond)
	assert.Contains(t, h.m.View(), "idle logout in 60s")
}

func TestBridge(t *testing.T) {
	b := NewBridge()
	b.Alert("dropped before attach")

	b.SetColumns(120)
	assert.Equal(t, 120*CellWidth, b.Width())
	assert.Equal(t, 3, dashboard.Columns(b.Width()))
	b.SetColumns(151)
	assert.Equal(t, 4, dashboard.Columns(b.Width()))
	b.SetColumns(60)
	assert.Equal(t, 1, dashboard.Columns(b.Width()))

	var got []tea.Msg
	b.attach(func(msg tea.Msg) { got = append(got, msg) })
	b.Navigate(session.PageLogin, session.ReasonExpired)
	b.ShowBannedIPs("nginx", nil, 2)
	b.ShowBannedIPsError("sshd", "boom")
	assert.Equal(t, []tea.Msg{
		navigateMsg{page: session.PageLogin, reason: session.ReasonExpired},
		bannedMsg{jail: "nginx", columns: 2},
		bannedErrMsg{jail: "sshd", msg: "boom"},
	}, got)
}

func TestRedactAddr(t *testing.T) {
	assert.Equal(t, "http://example.com:5000", redactAddr("http://op:pw@example.com:5000/api?x=1"))
	assert.Equal(t, "https://127.0.0.1:5000", redactAddr("https://127.0.0.1:5000"))
}
