// Package validate contains simple input validation helpers.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Error is a validation failure. The request it guards is never sent.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

const octet = `(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)`

var (
	ipv4Re = regexp.MustCompile(`^` + octet + `\.` + octet + `\.` + octet + `\.` + octet + `$`)
	cidrRe = regexp.MustCompile(`^` + octet + `\.` + octet + `\.` + octet + `\.` + octet + `/([0-2]?[0-9]|3[0-2])$`)
)

// IPv4 reports whether s is a dotted-quad IPv4 address.
func IPv4(s string) bool {
	return ipv4Re.MatchString(s)
}

// CIDR reports whether s is an IPv4 network in a.b.c.d/n form.
func CIDR(s string) bool {
	return cidrRe.MatchString(s)
}

// IPOrCIDR validates an address entered by the operator.
func IPOrCIDR(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return &Error{Msg: "Please enter an IP address or CIDR range"}
	}
	if !IPv4(s) && !CIDR(s) {
		return &Error{Msg: "Invalid IP or CIDR format. Please use format like 192.168.1.1 or 10.0.0.0/24"}
	}
	return nil
}

// JailName rejects names that cannot be written as an INI section header:
// brackets and control characters would break the jail.d file.
func JailName(s string) error {
	if strings.ContainsFunc(s, func(r rune) bool { return r == '[' || r == ']' || unicode.IsControl(r) }) {
		return &Error{Msg: "Jail name cannot contain brackets or line breaks"}
	}
	return nil
}

// Required fails when any of the jail's mandatory fields is blank.
func Required(name, filter, logpath string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(filter) == "" || strings.TrimSpace(logpath) == "" {
		return &Error{Msg: "Please fill in all required fields: Name, Filter, and Log Path"}
	}
	return nil
}
