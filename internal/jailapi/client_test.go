package jailapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jaildash/internal/apitest"
	"jaildash/internal/jailapi"
	"jaildash/internal/logging"
)

func newClient(t *testing.T, srv *apitest.Server, token string) *jailapi.Client {
	t.Helper()
	c, err := jailapi.NewClient(jailapi.ClientOptions{
		Addr:   srv.URL,
		Token:  func() string { return token },
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	return c
}

func TestLogin(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, "")
	ctx := context.Background()

	tok, err := c.Login(ctx, apitest.Username, apitest.Password)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	_, err = c.Login(ctx, apitest.Username, "wrong")
	var ae *jailapi.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.Equal(t, "Invalid credentials", ae.Message)
	assert.NotErrorIs(t, err, jailapi.ErrUnauthorized)
}

func TestLoginWithoutToken(t *testing.T) {
	srv := apitest.New(t)
	srv.Fail(http.MethodPost, "/api/login", http.StatusOK, "")
	c := newClient(t, srv, "")

	_, err := c.Login(context.Background(), apitest.Username, apitest.Password)
	assert.ErrorIs(t, err, jailapi.ErrNoToken)
}

func TestBearerHeader(t *testing.T) {
	srv := apitest.New(t)
	tok := srv.IssueToken()
	c := newClient(t, srv, tok)

	jails, err := c.ListJails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"nginx", "sshd"}, jails)

	reqs := srv.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "Bearer "+tok, reqs[len(reqs)-1].Authorization)
}

func TestUnauthorizedHook(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, "stale")
	var fired atomic.Int32
	c.SetUnauthorizedHandler(func() { fired.Add(1) })

	_, err := c.ListJails(context.Background())
	assert.ErrorIs(t, err, jailapi.ErrUnauthorized)
	assert.Equal(t, int32(1), fired.Load())

	err = c.VerifyToken(context.Background())
	assert.ErrorIs(t, err, jailapi.ErrUnauthorized)
	assert.Equal(t, int32(2), fired.Load())
}

func TestServerErrorMessage(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, srv.IssueToken())
	srv.Fail(http.MethodGet, "/api/jails", http.StatusInternalServerError, "fail2ban is not running")

	_, err := c.ListJails(context.Background())
	var ae *jailapi.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusInternalServerError, ae.StatusCode)
	assert.Equal(t, "fail2ban is not running", jailapi.Message(err))
}

func TestTransportError(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, srv.IssueToken())
	srv.Drop(http.MethodGet, "/api/jails")

	_, err := c.ListJails(context.Background())
	require.Error(t, err)
	var ae *jailapi.Error
	assert.False(t, errors.As(err, &ae))
}

func TestSaveJailConfig(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, srv.IssueToken())
	ctx := context.Background()

	res, err := c.SaveJailConfig(ctx, jailapi.JailConfig{
		Name: "postfix", Filter: "postfix", Logpath: "/var/log/mail.log",
		Maxretry: 5, Findtime: 600, Bantime: 1800, Enabled: true,
	})
	require.NoError(t, err)
	assert.True(t, res.JailActive)
	assert.Equal(t, jailapi.StatusSuccess, res.Status)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(srv.LastBody(http.MethodPost, "/api/jails/config"), &sent))
	assert.NotContains(t, sent, "backend")

	_, err = c.SaveJailConfig(ctx, jailapi.JailConfig{Name: "broken"})
	assert.EqualError(t, err, "Missing required field: filter")
}

func TestJailLifecycle(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, srv.IssueToken())
	ctx := context.Background()

	require.NoError(t, c.StopJail(ctx, "nginx"))
	jails, err := c.ListJails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sshd"}, jails)

	require.NoError(t, c.StartJail(ctx, "recidive"))
	jc, ok := srv.Config("recidive")
	require.True(t, ok)
	assert.True(t, jc.Enabled)

	require.NoError(t, c.DeleteJailConfig(ctx, "recidive"))
	_, ok = srv.Config("recidive")
	assert.False(t, ok)

	err = c.StartJail(ctx, "ghost")
	assert.EqualError(t, err, "Jail ghost not found")
}

func TestBanAndUnban(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, srv.IssueToken())
	ctx := context.Background()

	res, err := c.Ban(ctx, "sshd", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, jailapi.StatusSuccess, res.Status)

	res, err = c.Ban(ctx, "sshd", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, jailapi.StatusWarning, res.Status)
	assert.Contains(t, res.Message, "already banned")

	text, err := c.JailStatus(ctx, "sshd")
	require.NoError(t, err)
	assert.Contains(t, text, "Banned IP list:\t10.0.0.1 10.0.0.2 203.0.113.9")

	require.NoError(t, c.Unban(ctx, "sshd", "10.0.0.1"))
	assert.Equal(t, []string{"10.0.0.2", "203.0.113.9"}, srv.Banned("sshd"))

	err = c.Unban(ctx, "sshd", "10.0.0.1")
	assert.EqualError(t, err, "IP 10.0.0.1 is not banned in sshd")
}

func TestIgnoreIPsReplaceAll(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, srv.IssueToken())
	ctx := context.Background()

	ips, err := c.GetIgnoreIPs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1/8"}, ips)

	require.NoError(t, c.SaveIgnoreIPs(ctx, []string{"10.0.0.0/8", "192.168.1.1"}))
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, srv.IgnoreIPs())
}

func TestTemplatesAndFilters(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, srv.IssueToken())
	ctx := context.Background()

	tpls, err := c.ListTemplates(ctx)
	require.NoError(t, err)
	require.Contains(t, tpls, "sshd-template")
	assert.Equal(t, "sshd", tpls["sshd-template"].Filter)
	assert.Nil(t, tpls["nginx-template"].Enabled)

	content, err := c.GetFilter(ctx, "sshd")
	require.NoError(t, err)
	assert.Contains(t, content, "failregex")

	_, err = c.GetFilter(ctx, "nope")
	assert.EqualError(t, err, "Filter nope not found")
}
