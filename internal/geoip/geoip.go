// Package geoip resolves banned addresses to ISO country codes using a
// MaxMind country database.
package geoip

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/maxminddb-golang"
)

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Locator looks up countries. The zero value and a nil *Locator answer ""
// for every address.
type Locator struct {
	mu sync.RWMutex
	db *maxminddb.Reader
}

// Open loads the database at path. An empty path yields a locator that
// never resolves anything.
func Open(path string) (*Locator, error) {
	if strings.TrimSpace(path) == "" {
		return &Locator{}, nil
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Locator{db: db}, nil
}

// Country returns the ISO code for addr, which may be a host or a CIDR
// network. Unknown and unparsable addresses give "".
func (l *Locator) Country(addr string) string {
	if l == nil {
		return ""
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return ""
	}
	ip := parse(addr)
	if ip == nil {
		return ""
	}
	var rec countryRecord
	if err := l.db.Lookup(ip, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

// Enabled reports whether a database is loaded.
func (l *Locator) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.db != nil
}

func (l *Locator) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func parse(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "/") {
		ip, _, err := net.ParseCIDR(addr)
		if err != nil {
			return nil
		}
		return ip
	}
	return net.ParseIP(addr)
}
