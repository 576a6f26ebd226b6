// Package validate tests cover address and jail field checks.
package validate

import (
	"strings"
	"testing"
)

// TestIPOrCIDR accepts dotted quads and networks and rejects the rest.
func TestIPOrCIDR(t *testing.T) {
	good := []string{"192.168.1.1", "10.0.0.0/24", "0.0.0.0/0", " 8.8.8.8 ", "255.255.255.255/32"}
	for _, s := range good {
		if err := IPOrCIDR(s); err != nil {
			t.Fatalf("IPOrCIDR(%q): %v", s, err)
		}
	}
	bad := []string{"", "999.1.1.1", "10.0.0", "10.0.0.0/33", "::1", "example.com", "1.2.3.4/"}
	for _, s := range bad {
		err := IPOrCIDR(s)
		if err == nil {
			t.Fatalf("IPOrCIDR(%q): expected error", s)
		}
		if !IsValidation(err) {
			t.Fatalf("IPOrCIDR(%q): expected validation error, got %T", s, err)
		}
	}
}

// TestRequired flags any blank mandatory jail field.
func TestRequired(t *testing.T) {
	if err := Required("sshd", "sshd", "/var/log/auth.log"); err != nil {
		t.Fatalf("Required: %v", err)
	}
	if err := Required("sshd", " ", "/var/log/auth.log"); err == nil {
		t.Fatalf("expected blank filter to fail")
	}
	if err := Required("", "sshd", "x"); err == nil {
		t.Fatalf("expected blank name to fail")
	}
}

// TestJailName rejects names that cannot be a jail section.
func TestJailName(t *testing.T) {
	long := strings.Repeat("nginx-", 20)
	for _, s := range []string{"apache-auth", "my jail", "-lead", "web@eu_1", long} {
		if err := JailName(s); err != nil {
			t.Fatalf("JailName(%q): %v", s, err)
		}
	}
	for _, s := range []string{"[sshd]", "a]b", "two\nlines", "tab\tname"} {
		if err := JailName(s); err == nil {
			t.Fatalf("JailName(%q): expected error", s)
		}
	}
}
