package dashboard

import "jaildash/internal/jailapi"

// View receives everything the controller renders. Calls may arrive from
// any goroutine; implementations marshal them onto their own loop.
type View interface {
	// Width is the current drawable width in pixels.
	Width() int

	ShowJails(jails []string, columns int)
	ShowJailsError(msg string)
	ShowBannedIPs(jail string, ips []BannedIP, columns int)
	ShowBannedIPsError(jail, msg string)
	ShowJailConfigs(configs []jailapi.JailConfig)
	ShowIgnoreIPs(ips []string)
	ShowTemplates(templates []TemplateOption)
	FillJailForm(form JailForm)
	ResetJailForm(form JailForm)
	ShowFilterContent(filter, content string)
	Alert(msg string)
}

// BannedIP is one row of a jail's banned list.
type BannedIP struct {
	Addr    string
	Subnet  bool
	Country string
}

// String renders the entry as one grid cell: the address, a subnet marker
// and the country code when known.
func (b BannedIP) String() string {
	s := b.Addr
	if b.Subnet {
		s += " [subnet]"
	}
	if b.Country != "" {
		s += " (" + b.Country + ")"
	}
	return s
}

// Columns maps a width in pixels to the column count of the jail and
// banned grids.
func Columns(width int) int {
	switch {
	case width > 1200:
		return 4
	case width > 768:
		return 3
	case width > 480:
		return 2
	default:
		return 1
	}
}
