package tui

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"jaildash/internal/dashboard"
	"jaildash/internal/jailapi"
	"jaildash/internal/session"
)

// CellWidth is the pixel width one terminal column counts for when the
// jail grid is sized.
const CellWidth = 8

type (
	jailsMsg struct {
		jails   []string
		columns int
	}
	jailsErrMsg string
	bannedMsg   struct {
		jail    string
		ips     []dashboard.BannedIP
		columns int
	}
	bannedErrMsg struct {
		jail string
		msg  string
	}
	configsMsg   []jailapi.JailConfig
	ignoreMsg    []string
	templatesMsg []dashboard.TemplateOption
	fillFormMsg  dashboard.JailForm
	resetFormMsg dashboard.JailForm
	filterMsg    struct {
		filter  string
		content string
	}
	alertMsg    string
	navigateMsg struct {
		page   session.Page
		reason string
	}
)

// Bridge turns controller and guard callbacks into program messages. It
// implements dashboard.View and session.Navigator; messages emitted before
// Attach are dropped.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)

	cols atomic.Int64
}

func NewBridge() *Bridge { return &Bridge{} }

// Attach routes messages to p.
func (b *Bridge) Attach(p *tea.Program) { b.attach(p.Send) }

func (b *Bridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *Bridge) emit(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// SetColumns records the terminal width in cells.
func (b *Bridge) SetColumns(n int) { b.cols.Store(int64(n)) }

func (b *Bridge) Width() int { return int(b.cols.Load()) * CellWidth }

func (b *Bridge) ShowJails(jails []string, columns int) {
	b.emit(jailsMsg{jails: jails, columns: columns})
}

func (b *Bridge) ShowJailsError(msg string) { b.emit(jailsErrMsg(msg)) }

func (b *Bridge) ShowBannedIPs(jail string, ips []dashboard.BannedIP, columns int) {
	b.emit(bannedMsg{jail: jail, ips: ips, columns: columns})
}

func (b *Bridge) ShowBannedIPsError(jail, msg string) {
	b.emit(bannedErrMsg{jail: jail, msg: msg})
}

func (b *Bridge) ShowJailConfigs(configs []jailapi.JailConfig) { b.emit(configsMsg(configs)) }

func (b *Bridge) ShowIgnoreIPs(ips []string) { b.emit(ignoreMsg(ips)) }

func (b *Bridge) ShowTemplates(t []dashboard.TemplateOption) { b.emit(templatesMsg(t)) }

func (b *Bridge) FillJailForm(f dashboard.JailForm) { b.emit(fillFormMsg(f)) }

func (b *Bridge) ResetJailForm(f dashboard.JailForm) { b.emit(resetFormMsg(f)) }

func (b *Bridge) ShowFilterContent(filter, content string) {
	b.emit(filterMsg{filter: filter, content: content})
}

func (b *Bridge) Alert(msg string) { b.emit(alertMsg(msg)) }

func (b *Bridge) Navigate(page session.Page, reason string) {
	b.emit(navigateMsg{page: page, reason: reason})
}
