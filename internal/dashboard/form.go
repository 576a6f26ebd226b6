package dashboard

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"jaildash/internal/jailapi"
	"jaildash/internal/validate"
)

// FilterCustom selects a filter name typed by the operator.
const FilterCustom = "custom"

// Values the form resets to.
const (
	DefaultMaxretry = 3
	DefaultFindtime = 3600
	DefaultBantime  = 600
)

// FilterOption is one entry of the filter picker.
type FilterOption struct {
	Value string
	Label string
}

// Filters lists the stock fail2ban filters offered in the jail form, in
// display order. The last entry lets the operator name any other filter.
var Filters = []FilterOption{
	{"sshd", "SSH (sshd)"},
	{"nginx", "Nginx (nginx)"},
	{"sshd2", "SSH Enhanced (sshd2)"},
	{"apache-auth", "Apache Auth (apache-auth)"},
	{"apache-badbots", "Apache Bad Bots (apache-badbots)"},
	{"apache-botsearch", "Apache Bot Search (apache-botsearch)"},
	{"apache-common", "Apache Common (apache-common)"},
	{"apache-fakegooglebot", "Apache Fake Googlebot (apache-fakegooglebot)"},
	{"apache-modsecurity", "Apache ModSecurity (apache-modsecurity)"},
	{"apache-nohome", "Apache No Home (apache-nohome)"},
	{"apache-noscript", "Apache No Script (apache-noscript)"},
	{"apache-overflows", "Apache Overflows (apache-overflows)"},
	{"apache-pass", "Apache Pass (apache-pass)"},
	{"apache-shellshock", "Apache Shellshock (apache-shellshock)"},
	{"vsftpd", "VSFTPD (vsftpd)"},
	{"proftpd", "ProFTPD (proftpd)"},
	{"pure-ftpd", "Pure-FTPd (pure-ftpd)"},
	{"wuftpd", "WU-FTPd (wuftpd)"},
	{"postfix", "Postfix (postfix)"},
	{"sendmail-auth", "Sendmail Auth (sendmail-auth)"},
	{"sendmail-reject", "Sendmail Reject (sendmail-reject)"},
	{"exim", "Exim (exim)"},
	{"dovecot", "Dovecot (dovecot)"},
	{"sieve", "Sieve (sieve)"},
	{"solid-pop3d", "Solid POP3d (solid-pop3d)"},
	{"courier-auth", "Courier Auth (courier-auth)"},
	{"courier-smtp", "Courier SMTP (courier-smtp)"},
	{"named", "BIND9 (named)"},
	{"recidive", "Recidive (recidive)"},
	{"murmur", "Mumble (murmur)"},
	{"asterisk", "Asterisk (asterisk)"},
	{"freeswitch", "FreeSWITCH (freeswitch)"},
	{"mysqld", "MySQL (mysqld)"},
	{"mysqld-auth", "MySQL Auth (mysqld-auth)"},
	{"oracle", "Oracle (oracle)"},
	{"php-url-fopen", "PHP URL Fopen (php-url-fopen)"},
	{"roundcube-auth", "Roundcube Auth (roundcube-auth)"},
	{"openwebmail", "OpenWebMail (openwebmail)"},
	{"horde", "Horde (horde)"},
	{"groupoffice", "GroupOffice (groupoffice)"},
	{"sogo", "SOGo (sogo)"},
	{"tomcat", "Tomcat (tomcat)"},
	{"monit", "Monit (monit)"},
	{"webmin", "Webmin (webmin)"},
	{"drupal-auth", "Drupal Auth (drupal-auth)"},
	{"magento", "Magento (magento)"},
	{"wordpress", "WordPress (wordpress)"},
	{"phpmyadmin", "phpMyAdmin (phpmyadmin)"},
	{"guacamole", "Guacamole (guacamole)"},
	{"slapd", "OpenLDAP (slapd)"},
	{"directadmin", "DirectAdmin (directadmin)"},
	{"iptables", "iptables (iptables)"},
	{"nginx-http-auth", "Nginx HTTP Auth (nginx-http-auth)"},
	{"nginx-limit-req", "Nginx Limit Requests (nginx-limit-req)"},
	{"nginx-botsearch", "Nginx Bot Search (nginx-botsearch)"},
	{FilterCustom, "Custom (specify below)"},
}

// KnownFilter reports whether name is in the picker.
func KnownFilter(name string) bool {
	for _, f := range Filters {
		if f.Value == name {
			return true
		}
	}
	return false
}

// FilterDefaults are the values prefilled when a filter is picked.
type FilterDefaults struct {
	Name     string
	Logpath  string
	Maxretry int
	Findtime int
	Bantime  int
}

var filterDefaults = map[string]FilterDefaults{
	"sshd":        {"sshd", "%(syslog_authpriv)s", 3, 3600, 600},
	"sshd2":       {"sshd2", "%(syslog_authpriv)s", 3, 1800, 3600},
	"nginx":       {"nginx", "/var/log/nginx/access.log", 5, 600, 3600},
	"apache-auth": {"apache-auth", "/var/log/apache2/error.log", 3, 600, 1200},
	"postfix":     {"postfix", "/var/log/mail.log", 5, 600, 1800},
	"dovecot":     {"dovecot", "/var/log/dovecot.log", 5, 300, 900},
	"vsftpd":      {"vsftpd", "/var/log/vsftpd.log", 3, 600, 1800},
	"mysqld":      {"mysqld", "/var/log/mysql/error.log", 3, 600, 1200},
}

// DefaultsFor returns the prefill for filter. Filters without a tuned entry
// get a log under /var/log named after the filter and the reset values.
func DefaultsFor(filter string) FilterDefaults {
	if d, ok := filterDefaults[filter]; ok {
		return d
	}
	return FilterDefaults{
		Name:     filter,
		Logpath:  "/var/log/" + filter + ".log",
		Maxretry: DefaultMaxretry,
		Findtime: DefaultFindtime,
		Bantime:  DefaultBantime,
	}
}

// ForcesSystemd reports whether a filter reads from the journal.
func ForcesSystemd(filter string) bool {
	return filter == "sshd" || filter == "sshd2"
}

// JailForm is the editable state of the jail create/edit form.
type JailForm struct {
	Template     string
	Name         string
	Filter       string
	CustomFilter string
	Logpath      string
	Maxretry     int
	Findtime     int
	Bantime      int
	Action       string
	Enabled      bool
}

// NewJailForm returns a cleared form.
func NewJailForm() JailForm {
	return JailForm{
		Maxretry: DefaultMaxretry,
		Findtime: DefaultFindtime,
		Bantime:  DefaultBantime,
		Enabled:  true,
	}
}

// WithFilter returns the form after picking filter. A stock filter fills
// its defaults; "custom" and the empty choice clear name and log path.
func (f JailForm) WithFilter(filter string) JailForm {
	f.Filter = filter
	if filter == "" || filter == FilterCustom {
		f.Name = ""
		f.Logpath = ""
		f.Maxretry = DefaultMaxretry
		f.Findtime = DefaultFindtime
		f.Bantime = DefaultBantime
		f.Action = ""
		f.Enabled = true
		return f
	}
	f.CustomFilter = ""
	d := DefaultsFor(filter)
	f.Name = d.Name
	f.Logpath = d.Logpath
	f.Maxretry = d.Maxretry
	f.Findtime = d.Findtime
	f.Bantime = d.Bantime
	return f
}

// WithTemplate returns the form prefilled from preset t. The jail name is
// left as typed.
func (f JailForm) WithTemplate(name string, t jailapi.Template) JailForm {
	f.Template = name
	f.Maxretry = orDefault(t.Maxretry, DefaultMaxretry)
	f.Findtime = orDefault(t.Findtime, DefaultFindtime)
	f.Bantime = orDefault(t.Bantime, DefaultBantime)
	f.Action = t.Action
	f.Logpath = t.Logpath
	f.Filter = t.Filter
	f.CustomFilter = ""
	if t.Filter == "" {
		f.Filter = FilterCustom
	}
	f.Enabled = t.Enabled == nil || *t.Enabled
	return f
}

// FormFromConfig loads an existing jail for editing.
func FormFromConfig(jc jailapi.JailConfig) JailForm {
	f := JailForm{
		Name:     jc.Name,
		Filter:   jc.Filter,
		Logpath:  jc.Logpath,
		Maxretry: jc.Maxretry,
		Findtime: jc.Findtime,
		Bantime:  jc.Bantime,
		Action:   jc.Action,
		Enabled:  jc.Enabled,
	}
	if jc.Filter != "" && !KnownFilter(jc.Filter) {
		f.Filter = FilterCustom
		f.CustomFilter = jc.Filter
	}
	return f
}

// Payload builds the request body for the form, or a validation error.
func (f JailForm) Payload() (jailapi.JailConfig, error) {
	filter := f.Filter
	if filter == FilterCustom {
		filter = strings.TrimSpace(f.CustomFilter)
		if filter == "" {
			return jailapi.JailConfig{}, &validate.Error{Msg: "Please specify a custom filter name"}
		}
	}
	jc := jailapi.JailConfig{
		Name:     strings.TrimSpace(f.Name),
		Filter:   filter,
		Logpath:  f.Logpath,
		Maxretry: f.Maxretry,
		Findtime: f.Findtime,
		Bantime:  f.Bantime,
		Action:   f.Action,
		Enabled:  f.Enabled,
	}
	if ForcesSystemd(jc.Filter) {
		jc.Backend = jailapi.BackendSystemd
	}
	if err := validate.Required(jc.Name, jc.Filter, jc.Logpath); err != nil {
		return jailapi.JailConfig{}, err
	}
	if err := validate.JailName(jc.Name); err != nil {
		return jailapi.JailConfig{}, err
	}
	return jc, nil
}

// TemplateOption is one entry of the template picker.
type TemplateOption struct {
	Name  string
	Label string
}

// TemplateLabel turns "nginx-template" into "Nginx".
func TemplateLabel(name string) string {
	s := strings.Replace(name, "-template", "", 1)
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
