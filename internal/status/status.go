// Package status extracts data from the free-text jail status the server
// relays from fail2ban-client.
package status

import "strings"

// BannedMarker prefixes the banned address line of a jail status.
const BannedMarker = "Banned IP list:"

// BannedIPs returns the addresses listed on the "Banned IP list:" line.
// A status without that line yields an empty, non-nil slice.
func BannedIPs(text string) []string {
	ips := []string{}
	for _, line := range strings.Split(text, "\n") {
		i := strings.Index(line, BannedMarker)
		if i < 0 {
			continue
		}
		ips = append(ips, strings.Fields(line[i+len(BannedMarker):])...)
		break
	}
	return ips
}

// IsSubnet reports whether a banned entry is a network rather than a host.
func IsSubnet(entry string) bool {
	return strings.Contains(entry, "/")
}

// Filter keeps the entries containing term, case-insensitively.
func Filter(entries []string, term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return entries
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e), term) {
			out = append(out, e)
		}
	}
	return out
}
