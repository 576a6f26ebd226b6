package session

import (
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/publicsuffix"
)

// CookieName is the cookie that mirrors the persisted token.
const CookieName = "token"

// Store keeps the session token in a file and in a cookie scoped to the
// server. The file survives restarts; the cookie lives in the client jar.
type Store struct {
	fs   afero.Fs
	path string
	site *url.URL
	jar  http.CookieJar
}

// NewStore returns a store persisting to path on fs, with cookies scoped to site.
func NewStore(fs afero.Fs, path string, site *url.URL) (*Store, error) {
	if path == "" {
		return nil, errors.New("token path is required")
	}
	if site == nil || site.Host == "" {
		return nil, errors.New("server url is required")
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Store{fs: fs, path: path, site: site, jar: jar}, nil
}

// Jar is the cookie jar the API client must share.
func (s *Store) Jar() http.CookieJar { return s.jar }

// Token returns the stored token, preferring the file over the cookie.
// It is empty when no session exists.
func (s *Store) Token() string {
	if b, err := afero.ReadFile(s.fs, s.path); err == nil {
		if tok := strings.TrimSpace(string(b)); tok != "" {
			return tok
		}
	}
	for _, c := range s.jar.Cookies(s.site) {
		if c.Name == CookieName && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// Save persists tok to the file and the cookie.
func (s *Store) Save(tok string) error {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return errors.New("empty token")
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(tok+"\n"), 0o600); err != nil {
		return err
	}
	s.jar.SetCookies(s.site, []*http.Cookie{{Name: CookieName, Value: tok, Path: "/"}})
	return nil
}

// Clear removes the token from both places.
func (s *Store) Clear() error {
	s.jar.SetCookies(s.site, []*http.Cookie{{Name: CookieName, Value: "", Path: "/", MaxAge: -1}})
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
