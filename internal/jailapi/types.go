package jailapi

// Status values the server uses in mutation replies.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

// BackendSystemd is forced for SSH-family filters, whose log lines only
// reach the journal on most hosts.
const BackendSystemd = "systemd"

// JailConfig is one jail definition as stored by the server.
type JailConfig struct {
	Name     string `json:"name"`
	Filter   string `json:"filter"`
	Logpath  string `json:"logpath"`
	Maxretry int    `json:"maxretry"`
	Findtime int    `json:"findtime"`
	Bantime  int    `json:"bantime"`
	Action   string `json:"action"`
	Enabled  bool   `json:"enabled"`
	Backend  string `json:"backend,omitempty"`
}

// Template is a read-only jail preset. Zero numeric fields and a nil
// Enabled mean "not set by the preset".
type Template struct {
	Filter   string `json:"filter"`
	Logpath  string `json:"logpath"`
	Maxretry int    `json:"maxretry"`
	Findtime int    `json:"findtime"`
	Bantime  int    `json:"bantime"`
	Action   string `json:"action"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// SaveResult is the server's answer to a jail create/update.
type SaveResult struct {
	Status     string
	Message    string
	JailActive bool
}

// BanResult is the server's answer to a ban request.
type BanResult struct {
	Status  string
	Message string
}
