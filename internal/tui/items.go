package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"jaildash/internal/jailapi"
)

type configItem jailapi.JailConfig

func (c configItem) Title() string {
	if c.Enabled {
		return c.Name + " [enabled]"
	}
	return c.Name + " [disabled]"
}
func (c configItem) Description() string {
	s := fmt.Sprintf("filter=%s logpath=%s maxretry=%d findtime=%ds bantime=%ds",
		c.Filter, c.Logpath, c.Maxretry, c.Findtime, c.Bantime)
	if c.Action != "" {
		s += " action=" + c.Action
	}
	return s
}
func (c configItem) FilterValue() string { return c.Name }

type ignoreItem string

func (i ignoreItem) Title() string       { return string(i) }
func (i ignoreItem) Description() string { return "" }
func (i ignoreItem) FilterValue() string { return string(i) }

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	return l
}

func configItems(configs []jailapi.JailConfig) []list.Item {
	items := make([]list.Item, 0, len(configs))
	for _, c := range configs {
		items = append(items, configItem(c))
	}
	return items
}

func ignoreItems(ips []string) []list.Item {
	items := make([]list.Item, 0, len(ips))
	for _, ip := range ips {
		items = append(items, ignoreItem(ip))
	}
	return items
}
