// Package tui implements the interactive operator console using Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"jaildash/internal/dashboard"
	"jaildash/internal/jailapi"
	"jaildash/internal/session"
	"jaildash/internal/validate"
)

// state represents the current screen.
type state int

const (
	stateLogin state = iota
	stateJails
	stateConfigs
	stateForm
	stateIgnore
)

// pane is the focused half of the jails screen.
type pane int

const (
	paneGrid pane = iota
	paneBanned
)

type formField int

const (
	fieldTemplate formField = iota
	fieldName
	fieldFilter
	fieldCustom
	fieldLogpath
	fieldMaxretry
	fieldFindtime
	fieldBantime
	fieldAction
	fieldEnabled
	numFields
)

// maxFilterLines bounds the filter definition preview in the jail form.
const maxFilterLines = 8

type Options struct {
	Context    context.Context
	Controller *dashboard.Controller
	Guard      *session.Guard
	Bridge     *Bridge
	Addr       string
}

// Model holds all UI state for the console.
type Model struct {
	ctx    context.Context
	ctl    *dashboard.Controller
	guard  *session.Guard
	bridge *Bridge
	addr   string

	st     state
	status string
	err    string
	width  int
	height int

	user textinput.Model
	pass textinput.Model

	jails    []string
	columns  int
	jailsErr string
	cursor   int
	pane     pane

	bannedJail   string
	bannedErr    string
	banned       []dashboard.BannedIP
	bannedCols   int
	bannedCursor int
	search       textinput.Model
	searching    bool
	banIP        textinput.Model
	banning      bool
	pendingUnban *dashboard.BannedIP

	configLst     list.Model
	pendingDelete string

	inputs        [numFields]textinput.Model
	field         formField
	filterIdx     int
	templates     []dashboard.TemplateOption
	templateIdx   int
	template      string
	enabled       bool
	filterContent string

	ignoreLst list.Model
	ignoreIn  textinput.Model
}

func newInput(prompt, placeholder string) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	return in
}

// New constructs the model with the login screen focused.
func New(opt Options) Model {
	ctx := opt.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := Model{
		ctx:       ctx,
		ctl:       opt.Controller,
		guard:     opt.Guard,
		bridge:    opt.Bridge,
		addr:      redactAddr(opt.Addr),
		st:        stateLogin,
		configLst: newList("Jail configurations"),
		ignoreLst: newList("ignoreIP"),
		enabled:   true,
	}

	m.user = newInput("Username: ", "admin")
	m.user.Focus()
	m.pass = newInput("Password: ", "password")
	m.pass.EchoMode = textinput.EchoPassword

	m.search = newInput("Search: ", "ip or country")
	m.banIP = newInput("Ban IP: ", "192.168.1.1 or 10.0.0.0/24")
	m.ignoreIn = newInput("Add IP/CIDR: ", "127.0.0.1 or 10.0.0.0/8")

	m.inputs[fieldName] = newInput("Name: ", "jail name")
	m.inputs[fieldCustom] = newInput("Custom filter: ", "filter name")
	m.inputs[fieldLogpath] = newInput("Log path: ", "/var/log/...")
	m.inputs[fieldMaxretry] = newInput("Max retry: ", "3")
	m.inputs[fieldFindtime] = newInput("Find time (s): ", "3600")
	m.inputs[fieldBantime] = newInput("Ban time (s): ", "600")
	m.inputs[fieldAction] = newInput("Action: ", "optional")
	m.setForm(dashboard.NewJailForm())
	return m
}

// Init verifies a stored session and starts the header clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, checkCmd(m.ctx, m.guard), tick())
}

type tickMsg time.Time
type loginErrMsg string
type ignoreAddedMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update routes messages based on UI state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bridge.SetColumns(msg.Width)
		m.configLst.SetSize(msg.Width-4, max(msg.Height-8, 5))
		m.ignoreLst.SetSize(msg.Width-4, max(msg.Height-12, 5))
		return m, nil
	case tickMsg:
		return m, tick()
	case navigateMsg:
		return m.navigate(msg)
	case loginErrMsg:
		m.err = string(msg)
		return m, nil
	case alertMsg:
		m.status = string(msg)
		return m, nil
	case jailsMsg:
		m.jails = msg.jails
		m.columns = msg.columns
		m.jailsErr = ""
		if m.cursor >= len(m.jails) {
			m.cursor = max(len(m.jails)-1, 0)
		}
		return m, nil
	case jailsErrMsg:
		m.jailsErr = string(msg)
		return m, nil
	case bannedMsg:
		if msg.jail != m.bannedJail {
			m.bannedCursor = 0
		}
		m.bannedJail = msg.jail
		m.bannedErr = ""
		m.banned = msg.ips
		m.bannedCols = msg.columns
		m.bannedCursor = min(m.bannedCursor, max(len(m.banned)-1, 0))
		return m, nil
	case bannedErrMsg:
		m.bannedJail = msg.jail
		m.bannedErr = msg.msg
		m.banned, m.bannedCursor = nil, 0
		return m, nil
	case configsMsg:
		cmd := m.configLst.SetItems(configItems(msg))
		return m, cmd
	case ignoreMsg:
		cmd := m.ignoreLst.SetItems(ignoreItems(msg))
		return m, cmd
	case ignoreAddedMsg:
		m.ignoreIn.SetValue("")
		return m, nil
	case templatesMsg:
		m.templates = msg
		m.templateIdx = m.templateIndex(m.template)
		return m, nil
	case fillFormMsg:
		m.setForm(dashboard.JailForm(msg))
		return m, nil
	case resetFormMsg:
		m.setForm(dashboard.JailForm(msg))
		m.filterContent = ""
		if m.st == stateForm {
			m.blurFields()
			m.st = stateConfigs
		}
		return m, nil
	case filterMsg:
		if msg.filter == m.currentFilter() {
			m.filterContent = msg.content
		}
		return m, nil
	case tea.MouseMsg:
		m.guard.Touch()
		return m, nil
	case tea.KeyMsg:
		m.guard.Touch()
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	switch m.st {
	case stateLogin:
		return m.updateLogin(msg)
	case stateJails:
		return m.updateJails(msg)
	case stateConfigs:
		return m.updateConfigs(msg)
	case stateForm:
		return m.updateForm(msg)
	case stateIgnore:
		return m.updateIgnore(msg)
	default:
		return m, nil
	}
}

func (m Model) navigate(msg navigateMsg) (tea.Model, tea.Cmd) {
	if msg.page == session.PageDashboard {
		m.st = stateJails
		m.pane = paneGrid
		m.err = ""
		m.status = msg.reason
		m.user.Blur()
		m.pass.Blur()
		return m, tea.Batch(m.run(m.ctl.Load), m.run(m.ctl.Start))
	}
	m = m.cleared()
	m.st = stateLogin
	m.status = msg.reason
	m.pass.Blur()
	m.user.Focus()
	return m, stopCmd(m.ctl)
}

// cleared drops everything fetched during the session.
func (m Model) cleared() Model {
	m.jails, m.jailsErr, m.cursor = nil, "", 0
	m.bannedJail, m.bannedErr = "", ""
	m.banned, m.bannedCursor = nil, 0
	m.configLst.SetItems(nil)
	m.ignoreLst.SetItems(nil)
	m.searching, m.banning = false, false
	m.pendingUnban, m.pendingDelete = nil, ""
	m.search.SetValue("")
	m.ignoreIn.SetValue("")
	m.blurFields()
	m.setForm(dashboard.NewJailForm())
	m.filterContent = ""
	m.pass.SetValue("")
	return m
}

// View renders the current screen as a string.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString("jaildash")
	if m.addr != "" {
		b.WriteString(" (" + m.addr + ")")
	}
	if m.st != stateLogin && m.guard != nil {
		if r := m.guard.Remaining(); r > 0 {
			fmt.Fprintf(&b, "  idle logout in %ds", int(r.Round(time.Second)/time.Second))
		}
	}
	b.WriteString("\n\n")

	switch m.st {
	case stateLogin:
		b.WriteString("Login\n")
		b.WriteString(m.user.View() + "\n")
		b.WriteString(m.pass.View() + "\n\n")
		b.WriteString("Enter to login. tab to switch field. esc to quit.\n")
		if m.err != "" {
			b.WriteString("\nError: " + m.err + "\n")
		}
	case stateJails:
		m.viewJails(&b)
	case stateConfigs:
		b.WriteString(m.configLst.View())
		b.WriteString("\n")
		if m.pendingDelete != "" {
			fmt.Fprintf(&b, "Delete jail %q? This stops the jail and removes its configuration. (y/n)\n", m.pendingDelete)
		}
		b.WriteString("Keys: n=new e=edit s=start/stop d=delete r=reload esc=back q=quit\n")
	case stateForm:
		m.viewForm(&b)
	case stateIgnore:
		if len(m.ignoreLst.Items()) == 0 {
			b.WriteString("No ignoreIP entries found.\n")
		} else {
			b.WriteString(m.ignoreLst.View())
			b.WriteString("\n")
		}
		b.WriteString("\n" + m.ignoreIn.View() + "\n\n")
		b.WriteString("Enter=add  ctrl+d=remove selected  ctrl+s=save  ctrl+r=reload  esc=back\n")
	}

	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}
	return b.String()
}

func (m Model) viewJails(b *strings.Builder) {
	b.WriteString("Active jails\n")
	switch {
	case m.jailsErr != "":
		b.WriteString(m.jailsErr + "\n")
	case len(m.jails) == 0:
		b.WriteString("No active jails found\n")
	default:
		cells := make([]string, len(m.jails))
		for i, j := range m.jails {
			mark := "  "
			switch {
			case i == m.cursor && m.pane == paneGrid:
				mark = "> "
			case j == m.bannedJail:
				mark = "* "
			}
			cells[i] = mark + j
		}
		m.writeGrid(b, cells, m.columns)
	}
	b.WriteString("\n")

	switch {
	case m.bannedErr != "":
		b.WriteString(m.bannedErr + "\n")
	case m.bannedJail == "" && len(m.banned) == 0:
		b.WriteString("No jails to display.\n")
	case len(m.banned) == 0:
		fmt.Fprintf(b, "No banned IPs in %s.\n", m.bannedJail)
	default:
		fmt.Fprintf(b, "Banned IPs in %s\n", m.bannedJail)
		cells := make([]string, len(m.banned))
		for i, ip := range m.banned {
			mark := "  "
			if i == m.bannedCursor && m.pane == paneBanned {
				mark = "> "
			}
			cells[i] = mark + ip.String()
		}
		m.writeGrid(b, cells, m.bannedCols)
	}

	switch {
	case m.pendingUnban != nil:
		fmt.Fprintf(b, "\nUnban %s from %s? (y/n)\n", m.pendingUnban.Addr, m.bannedJail)
	case m.searching:
		b.WriteString("\n" + m.search.View() + "\n")
	case m.banning:
		b.WriteString("\n" + m.banIP.View() + "\n")
	}
	b.WriteString("\nKeys: enter=view banned tab=switch pane /=search b=ban u=unban c=configs i=ignoreip r=refresh x=logout q=quit\n")
}

// writeGrid lays cells out row by row in cols columns. Without a known
// terminal width each column is as wide as the widest cell.
func (m Model) writeGrid(b *strings.Builder, cells []string, cols int) {
	cols = max(cols, 1)
	cell := 0
	if m.width > 0 {
		cell = max(m.width/cols, 1)
	} else {
		for _, c := range cells {
			cell = max(cell, len(c)+2)
		}
	}
	for i, c := range cells {
		if (i+1)%cols == 0 || i == len(cells)-1 {
			b.WriteString(c + "\n")
		} else {
			fmt.Fprintf(b, "%-*s", cell, c)
		}
	}
}

func (m Model) viewForm(b *strings.Builder) {
	b.WriteString("Jail configuration\n\n")
	tpl := "none"
	if m.templateIdx > 0 {
		tpl = m.templates[m.templateIdx-1].Label
	}
	b.WriteString(m.selector(fieldTemplate, "Template: ", tpl) + "\n")
	b.WriteString(m.inputs[fieldName].View() + "\n")
	filter := "none"
	if m.filterIdx > 0 {
		filter = dashboard.Filters[m.filterIdx-1].Label
	}
	b.WriteString(m.selector(fieldFilter, "Filter: ", filter) + "\n")
	if m.currentFilter() == dashboard.FilterCustom {
		b.WriteString(m.inputs[fieldCustom].View() + "\n")
	}
	for _, f := range []formField{fieldLogpath, fieldMaxretry, fieldFindtime, fieldBantime, fieldAction} {
		b.WriteString(m.inputs[f].View() + "\n")
	}
	check := "[ ]"
	if m.enabled {
		check = "[x]"
	}
	b.WriteString(m.selector(fieldEnabled, "Enabled: ", check) + "\n")

	if dashboard.ForcesSystemd(m.currentFilter()) {
		b.WriteString("\nThis jail will use backend=systemd.\n")
	}
	if m.filterContent != "" {
		b.WriteString("\nFilter definition:\n")
		lines := strings.Split(strings.TrimRight(m.filterContent, "\n"), "\n")
		if len(lines) > maxFilterLines {
			lines = append(lines[:maxFilterLines], "...")
		}
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
	}
	b.WriteString("\ntab=next field  left/right=choose  space=toggle  ctrl+s=save  esc=back\n")
}

func (m Model) selector(f formField, label, value string) string {
	if m.field == f && m.st == stateForm {
		return "> " + label + "< " + value + " >"
	}
	return "  " + label + value
}

func (m Model) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			return m, tea.Quit
		case "tab", "shift+tab", "up", "down":
			if m.user.Focused() {
				m.user.Blur()
				m.pass.Focus()
				return m, nil
			}
			m.pass.Blur()
			m.user.Focus()
			return m, nil
		case "enter":
			user := strings.TrimSpace(m.user.Value())
			pw := m.pass.Value()
			m.pass.SetValue("")
			m.err = ""
			return m, loginCmd(m.ctx, m.guard, user, pw)
		}
	}
	var cmd tea.Cmd
	if m.user.Focused() {
		m.user, cmd = m.user.Update(msg)
	} else {
		m.pass, cmd = m.pass.Update(msg)
	}
	return m, cmd
}

// updateJails handles the active jail grid and the banned list.
func (m Model) updateJails(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, isKey := msg.(tea.KeyMsg)
	ctl := m.ctl
	if m.pendingUnban != nil && isKey {
		ip, jail := m.pendingUnban.Addr, m.bannedJail
		m.pendingUnban = nil
		if k.String() != "y" {
			m.status = "Unban canceled"
			return m, nil
		}
		m.status = ""
		return m, m.run(func(ctx context.Context) error { return ctl.Unban(ctx, jail, ip) })
	}
	if m.searching {
		return m.updateSearch(msg)
	}
	if m.banning {
		return m.updateBan(msg)
	}
	if !isKey {
		return m, nil
	}

	switch k.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		if m.pane == paneGrid {
			m.pane = paneBanned
		} else {
			m.pane = paneGrid
		}
		return m, nil
	case "/":
		m.searching = true
		m.search.Focus()
		return m, nil
	case "b":
		m.banning = true
		m.banIP.SetValue("")
		m.banIP.Focus()
		return m, nil
	case "c":
		m.st = stateConfigs
		m.status = ""
		return m, m.run(func(ctx context.Context) error {
			_, err := ctl.LoadJailConfigs(ctx)
			return err
		})
	case "i":
		m.st = stateIgnore
		m.status = ""
		m.ignoreIn.SetValue("")
		m.ignoreIn.Focus()
		return m, m.run(ctl.LoadIgnoreIPs)
	case "r":
		return m, m.run(ctl.Load)
	case "x":
		return m, logoutCmd(m.guard)
	}

	if m.pane == paneGrid {
		return m.moveCursor(k)
	}
	switch k.String() {
	case "u", "delete":
		if m.bannedCursor < len(m.banned) {
			ip := m.banned[m.bannedCursor]
			m.pendingUnban = &ip
		}
		return m, nil
	}
	m.bannedCursor = gridStep(m.bannedCursor, len(m.banned), m.bannedCols, k.String())
	return m, nil
}

func (m Model) moveCursor(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.jails) == 0 {
		return m, nil
	}
	switch k.String() {
	case "enter", " ":
		jail, ctl := m.jails[m.cursor], m.ctl
		m.pane = paneBanned
		return m, m.run(func(ctx context.Context) error { return ctl.ViewBannedIPs(ctx, jail) })
	}
	m.cursor = gridStep(m.cursor, len(m.jails), m.columns, k.String())
	return m, nil
}

// gridStep moves a cursor over n cells laid out in cols columns.
func gridStep(cursor, n, cols int, key string) int {
	cols = max(cols, 1)
	switch key {
	case "left", "h":
		if cursor > 0 {
			cursor--
		}
	case "right", "l":
		if cursor < n-1 {
			cursor++
		}
	case "up", "k":
		if cursor-cols >= 0 {
			cursor -= cols
		}
	case "down", "j":
		if cursor+cols < n {
			cursor += cols
		}
	}
	return cursor
}

func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.searching = false
			m.search.SetValue("")
			m.search.Blur()
			return m, filterCmd(m.ctl, "")
		case "enter":
			m.searching = false
			m.search.Blur()
			return m, nil
		}
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		return m, tea.Batch(cmd, filterCmd(m.ctl, v))
	}
	return m, cmd
}

func (m Model) updateBan(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.banning = false
			m.banIP.Blur()
			return m, nil
		case "enter":
			ip, jail, ctl := m.banIP.Value(), m.bannedJail, m.ctl
			m.banning = false
			m.banIP.Blur()
			m.banIP.SetValue("")
			return m, m.run(func(ctx context.Context) error { return ctl.Ban(ctx, jail, ip) })
		}
	}
	var cmd tea.Cmd
	m.banIP, cmd = m.banIP.Update(msg)
	return m, cmd
}

// updateConfigs handles the jail configuration list.
func (m Model) updateConfigs(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, isKey := msg.(tea.KeyMsg)
	ctl := m.ctl
	if m.pendingDelete != "" && isKey {
		name := m.pendingDelete
		m.pendingDelete = ""
		if k.String() != "y" {
			m.status = "Delete canceled"
			return m, nil
		}
		m.status = ""
		return m, m.run(func(ctx context.Context) error { return ctl.DeleteJail(ctx, name) })
	}
	if isKey {
		sel, hasSel := m.configLst.SelectedItem().(configItem)
		switch k.String() {
		case "q":
			return m, tea.Quit
		case "esc":
			m.st = stateJails
			return m, nil
		case "r":
			return m, m.run(func(ctx context.Context) error {
				_, err := ctl.LoadJailConfigs(ctx)
				return err
			})
		case "n":
			m.setForm(dashboard.NewJailForm())
			return m.openForm()
		case "e":
			if !hasSel {
				return m, nil
			}
			name := sel.Name
			m.setForm(dashboard.NewJailForm())
			m2, cmd := m.openForm()
			return m2, tea.Batch(cmd, m.run(func(ctx context.Context) error { return ctl.EditJail(ctx, name) }))
		case "s":
			if !hasSel {
				return m, nil
			}
			name, enabled := sel.Name, sel.Enabled
			return m, m.run(func(ctx context.Context) error { return ctl.ToggleJail(ctx, name, enabled) })
		case "d":
			if hasSel {
				m.pendingDelete = sel.Name
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.configLst, cmd = m.configLst.Update(msg)
	return m, cmd
}

func (m Model) openForm() (tea.Model, tea.Cmd) {
	m.st = stateForm
	m.status = ""
	m.filterContent = ""
	m.blurFields()
	m.field = fieldTemplate
	return m, m.run(m.ctl.LoadTemplates)
}

// updateForm handles input while creating or editing a jail.
func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.blurFields()
			m.st = stateConfigs
			return m, nil
		case "tab", "down":
			return m.moveField(1)
		case "shift+tab", "up":
			return m.moveField(-1)
		case "ctrl+s":
			f, err := m.readForm()
			if err != nil {
				m.status = err.Error()
				return m, nil
			}
			ctl := m.ctl
			return m, m.run(func(ctx context.Context) error { return ctl.SubmitJailForm(ctx, f) })
		}
		switch m.field {
		case fieldTemplate:
			switch k.String() {
			case "left", "h":
				return m.cycleTemplate(-1)
			case "right", "l", " ", "enter":
				return m.cycleTemplate(1)
			}
			return m, nil
		case fieldFilter:
			switch k.String() {
			case "left", "h":
				return m.cycleFilter(-1)
			case "right", "l", " ", "enter":
				return m.cycleFilter(1)
			}
			return m, nil
		case fieldEnabled:
			switch k.String() {
			case " ", "enter", "left", "right":
				m.enabled = !m.enabled
			}
			return m, nil
		}
	}
	if hasInput(m.field) {
		var cmd tea.Cmd
		m.inputs[m.field], cmd = m.inputs[m.field].Update(msg)
		return m, cmd
	}
	return m, nil
}

func hasInput(f formField) bool {
	switch f {
	case fieldTemplate, fieldFilter, fieldEnabled:
		return false
	default:
		return f < numFields
	}
}

func (m Model) moveField(delta int) (tea.Model, tea.Cmd) {
	m.blurFields()
	f := m.field
	for {
		f = formField((int(f) + delta + int(numFields)) % int(numFields))
		if f != fieldCustom || m.currentFilter() == dashboard.FilterCustom {
			break
		}
	}
	m.field = f
	if hasInput(f) {
		m.inputs[f].Focus()
	}
	return m, nil
}

func (m *Model) blurFields() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m Model) cycleFilter(delta int) (tea.Model, tea.Cmd) {
	n := len(dashboard.Filters) + 1
	m.filterIdx = (m.filterIdx + delta + n) % n
	m.filterContent = ""
	filter, ctl := m.currentFilter(), m.ctl
	form, _ := m.readForm()
	return m, m.run(func(ctx context.Context) error { return ctl.ChangeFilter(ctx, form, filter) })
}

func (m Model) cycleTemplate(delta int) (tea.Model, tea.Cmd) {
	n := len(m.templates) + 1
	m.templateIdx = (m.templateIdx + delta + n) % n
	if m.templateIdx == 0 {
		m.template = ""
		return m, nil
	}
	name, ctl := m.templates[m.templateIdx-1].Name, m.ctl
	form, _ := m.readForm()
	return m, m.run(func(ctx context.Context) error { return ctl.ApplyTemplate(ctx, name, form) })
}

func (m Model) currentFilter() string {
	if m.filterIdx <= 0 || m.filterIdx > len(dashboard.Filters) {
		return ""
	}
	return dashboard.Filters[m.filterIdx-1].Value
}

func filterIndex(filter string) int {
	if filter == "" {
		return 0
	}
	for i, f := range dashboard.Filters {
		if f.Value == filter {
			return i + 1
		}
	}
	return filterIndex(dashboard.FilterCustom)
}

func (m Model) templateIndex(name string) int {
	for i, t := range m.templates {
		if t.Name == name {
			return i + 1
		}
	}
	return 0
}

func (m *Model) setForm(f dashboard.JailForm) {
	m.inputs[fieldName].SetValue(f.Name)
	m.inputs[fieldCustom].SetValue(f.CustomFilter)
	m.inputs[fieldLogpath].SetValue(f.Logpath)
	m.inputs[fieldMaxretry].SetValue(strconv.Itoa(f.Maxretry))
	m.inputs[fieldFindtime].SetValue(strconv.Itoa(f.Findtime))
	m.inputs[fieldBantime].SetValue(strconv.Itoa(f.Bantime))
	m.inputs[fieldAction].SetValue(f.Action)
	m.enabled = f.Enabled
	m.filterIdx = filterIndex(f.Filter)
	if f.Filter == dashboard.FilterCustom && f.CustomFilter == "" {
		m.filterIdx = filterIndex(dashboard.FilterCustom)
	}
	m.template = f.Template
	m.templateIdx = m.templateIndex(f.Template)
}

// readForm collects the inputs. Numbers that do not parse are reported as
// validation failures.
func (m Model) readForm() (dashboard.JailForm, error) {
	f := dashboard.JailForm{
		Template:     m.template,
		Name:         m.inputs[fieldName].Value(),
		Filter:       m.currentFilter(),
		CustomFilter: m.inputs[fieldCustom].Value(),
		Logpath:      strings.TrimSpace(m.inputs[fieldLogpath].Value()),
		Action:       strings.TrimSpace(m.inputs[fieldAction].Value()),
		Enabled:      m.enabled,
	}
	var err error
	if f.Maxretry, err = number("Max retry", m.inputs[fieldMaxretry].Value()); err != nil {
		return f, err
	}
	if f.Findtime, err = number("Find time", m.inputs[fieldFindtime].Value()); err != nil {
		return f, err
	}
	if f.Bantime, err = number("Ban time", m.inputs[fieldBantime].Value()); err != nil {
		return f, err
	}
	return f, nil
}

func number(label, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &validate.Error{Msg: label + " must be a whole number"}
	}
	return n, nil
}

// updateIgnore handles the ignoreIP editor.
func (m Model) updateIgnore(msg tea.Msg) (tea.Model, tea.Cmd) {
	ctl := m.ctl
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.ignoreIn.Blur()
			m.st = stateJails
			return m, nil
		case "enter":
			return m, addIgnoreCmd(ctl, m.ignoreIn.Value())
		case "ctrl+d", "delete":
			if it, ok := m.ignoreLst.SelectedItem().(ignoreItem); ok {
				ip := string(it)
				return m, func() tea.Msg {
					ctl.RemoveIgnoreIP(ip)
					return nil
				}
			}
			return m, nil
		case "ctrl+s":
			return m, m.run(ctl.SaveIgnoreIPs)
		case "ctrl+r":
			return m, m.run(ctl.LoadIgnoreIPs)
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.ignoreLst, cmd = m.ignoreLst.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.ignoreIn, cmd = m.ignoreIn.Update(msg)
	return m, cmd
}

// run wraps a controller call. Results reach the model through the bridge,
// so the command itself yields no message.
func (m Model) run(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_ = fn(ctx)
		return nil
	}
}

func checkCmd(ctx context.Context, g *session.Guard) tea.Cmd {
	return func() tea.Msg {
		if err := g.Check(ctx); err != nil {
			return nil
		}
		return navigateMsg{page: session.PageDashboard}
	}
}

func loginCmd(ctx context.Context, g *session.Guard, user, password string) tea.Cmd {
	return func() tea.Msg {
		if err := g.Login(ctx, user, password); err != nil {
			return loginErrMsg(jailapi.Message(err))
		}
		return nil
	}
}

func logoutCmd(g *session.Guard) tea.Cmd {
	return func() tea.Msg {
		g.Logout()
		return nil
	}
}

func stopCmd(ctl *dashboard.Controller) tea.Cmd {
	return func() tea.Msg {
		ctl.Stop()
		return nil
	}
}

func filterCmd(ctl *dashboard.Controller, term string) tea.Cmd {
	return func() tea.Msg {
		ctl.FilterBannedIPs(term)
		return nil
	}
}

func addIgnoreCmd(ctl *dashboard.Controller, ip string) tea.Cmd {
	return func() tea.Msg {
		if err := ctl.AddIgnoreIP(ip); err != nil {
			return nil
		}
		return ignoreAddedMsg{}
	}
}

func redactAddr(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.Scheme + "://" + u.Host
}
