// Package textview renders dashboard output as plain lines for one-shot
// subcommands. It implements dashboard.View and session.Navigator.
package textview

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"jaildash/internal/dashboard"
	"jaildash/internal/jailapi"
	"jaildash/internal/session"
)

// View writes data to out, and alerts and error lines to errOut.
type View struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	width  int
	quiet  bool

	alerts    []string
	navigated []string
}

// New returns a view for a terminal that is width pixels wide. Zero lays
// the grids out in a single column.
func New(out, errOut io.Writer, width int) *View {
	return &View{out: out, errOut: errOut, width: width}
}

func (v *View) Width() int { return v.width }

// SetQuiet suppresses list renders. Alerts and errors are still printed.
func (v *View) SetQuiet(quiet bool) {
	v.mu.Lock()
	v.quiet = quiet
	v.mu.Unlock()
}

func (v *View) ShowJails(jails []string, columns int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.quiet {
		return
	}
	if len(jails) == 0 {
		fmt.Fprintln(v.out, "No active jails found")
		return
	}
	v.grid(jails, columns)
}

func (v *View) ShowJailsError(msg string) { v.errLine(msg) }

func (v *View) ShowBannedIPs(jail string, ips []dashboard.BannedIP, columns int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.quiet {
		return
	}
	switch {
	case jail == "":
		fmt.Fprintln(v.out, "No jails to display.")
		return
	case len(ips) == 0:
		fmt.Fprintf(v.out, "No banned IPs in %s.\n", jail)
		return
	}
	cells := make([]string, len(ips))
	for i, ip := range ips {
		cells[i] = ip.String()
	}
	v.grid(cells, columns)
}

func (v *View) ShowBannedIPsError(_ string, msg string) { v.errLine(msg) }

func (v *View) ShowJailConfigs(configs []jailapi.JailConfig) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.quiet {
		return
	}
	if len(configs) == 0 {
		fmt.Fprintln(v.out, "No jail configurations found.")
		return
	}
	tw := tabwriter.NewWriter(v.out, 0, 4, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tFILTER\tMAXRETRY\tFINDTIME\tBANTIME\tLOGPATH")
	for _, c := range configs {
		st := "disabled"
		if c.Enabled {
			st = "enabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", c.Name, st, c.Filter, c.Maxretry, c.Findtime, c.Bantime, c.Logpath)
	}
	_ = tw.Flush()
}

func (v *View) ShowIgnoreIPs(ips []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.quiet {
		return
	}
	if len(ips) == 0 {
		fmt.Fprintln(v.out, "No ignoreIP entries found.")
		return
	}
	for _, ip := range ips {
		fmt.Fprintln(v.out, ip)
	}
}

func (v *View) ShowTemplates(opts []dashboard.TemplateOption) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.quiet {
		return
	}
	for _, o := range opts {
		fmt.Fprintf(v.out, "%s (%s)\n", o.Label, o.Name)
	}
}

func (v *View) FillJailForm(f dashboard.JailForm) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.quiet {
		return
	}
	filter := f.Filter
	if filter == dashboard.FilterCustom {
		filter = f.CustomFilter
	}
	fmt.Fprintf(v.out, "name: %s\nfilter: %s\nlogpath: %s\nmaxretry: %d\nfindtime: %d\nbantime: %d\naction: %s\nenabled: %t\n",
		f.Name, filter, f.Logpath, f.Maxretry, f.Findtime, f.Bantime, f.Action, f.Enabled)
}

// ResetJailForm has nothing to clear on a line-oriented output.
func (v *View) ResetJailForm(dashboard.JailForm) {}

func (v *View) ShowFilterContent(_ string, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, strings.TrimRight(content, "\n"))
}

// Alert is printed even when quiet.
func (v *View) Alert(msg string) {
	v.mu.Lock()
	v.alerts = append(v.alerts, msg)
	v.mu.Unlock()
	v.errLine(msg)
}

// Navigate prints why the session ended. There is no dashboard to switch to.
func (v *View) Navigate(page session.Page, reason string) {
	v.mu.Lock()
	v.navigated = append(v.navigated, page.String())
	v.mu.Unlock()
	if page == session.PageLogin && reason != "" {
		v.errLine(reason)
	}
}

// Alerts returns the messages shown through Alert so far.
func (v *View) Alerts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.alerts...)
}

// Navigated lists the pages the session guard switched to.
func (v *View) Navigated() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.navigated...)
}

// grid writes cells row by row in columns aligned columns. The caller
// holds mu.
func (v *View) grid(cells []string, columns int) {
	columns = max(columns, 1)
	tw := tabwriter.NewWriter(v.out, 0, 4, 3, ' ', 0)
	for i, c := range cells {
		if (i+1)%columns == 0 || i == len(cells)-1 {
			fmt.Fprintln(tw, c)
		} else {
			fmt.Fprint(tw, c+"\t")
		}
	}
	_ = tw.Flush()
}

func (v *View) errLine(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.errOut, s)
}
