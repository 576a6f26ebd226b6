package dashboard

import (
	"context"
	"strings"
	"testing"

	"jaildash/internal/jailapi"
	"jaildash/internal/validate"
)

func TestBannedIPString(t *testing.T) {
	cases := []struct {
		ip   BannedIP
		want string
	}{
		{BannedIP{Addr: "10.0.0.1"}, "10.0.0.1"},
		{BannedIP{Addr: "10.0.0.1", Country: "DE"}, "10.0.0.1 (DE)"},
		{BannedIP{Addr: "10.0.0.0/24", Subnet: true}, "10.0.0.0/24 [subnet]"},
	}
	for _, c := range cases {
		if got := c.ip.String(); got != c.want {
			t.Fatalf("%+v: got %q, want %q", c.ip, got, c.want)
		}
	}
}

func TestColumns(t *testing.T) {
	cases := []struct {
		width int
		want  int
	}{
		{0, 1}, {480, 1}, {481, 2}, {768, 2}, {769, 3}, {1200, 3}, {1201, 4}, {2560, 4},
	}
	for _, tc := range cases {
		if got := Columns(tc.width); got != tc.want {
			t.Fatalf("Columns(%d) = %d, want %d", tc.width, got, tc.want)
		}
	}
}

func TestDefaultsFor(t *testing.T) {
	d := DefaultsFor("dovecot")
	if d.Logpath != "/var/log/dovecot.log" || d.Maxretry != 5 || d.Findtime != 300 || d.Bantime != 900 {
		t.Fatalf("unexpected dovecot defaults: %+v", d)
	}
	d = DefaultsFor("exim")
	want := FilterDefaults{Name: "exim", Logpath: "/var/log/exim.log", Maxretry: 3, Findtime: 3600, Bantime: 600}
	if d != want {
		t.Fatalf("DefaultsFor(exim) = %+v, want %+v", d, want)
	}
}

func TestPayloadBackend(t *testing.T) {
	for _, filter := range []string{"sshd", "sshd2"} {
		jc, err := NewJailForm().WithFilter(filter).Payload()
		if err != nil {
			t.Fatalf("%s: %v", filter, err)
		}
		if jc.Backend != jailapi.BackendSystemd {
			t.Fatalf("%s: backend = %q", filter, jc.Backend)
		}
	}
	jc, err := NewJailForm().WithFilter("nginx").Payload()
	if err != nil {
		t.Fatalf("nginx: %v", err)
	}
	if jc.Backend != "" {
		t.Fatalf("nginx: backend = %q, want empty", jc.Backend)
	}
}

func TestPayloadCustomFilter(t *testing.T) {
	f := NewJailForm().WithFilter(FilterCustom)
	f.Name = "app"
	f.Logpath = "/srv/app/auth.log"
	f.CustomFilter = "  sshd  "
	jc, err := f.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if jc.Filter != "sshd" || jc.Backend != jailapi.BackendSystemd {
		t.Fatalf("unexpected payload: %+v", jc)
	}

	f.Name = "my app.local-" + strings.Repeat("x", 80)
	if jc, err := f.Payload(); err != nil || jc.Name != f.Name {
		t.Fatalf("Payload(%q) = %+v, %v", f.Name, jc, err)
	}

	f.Name = "app]\n[sshd"
	_, err = f.Payload()
	if !validate.IsValidation(err) || err.Error() != "Jail name cannot contain brackets or line breaks" {
		t.Fatalf("expected validation error for %q, got %v", f.Name, err)
	}
}

func TestWithFilterResets(t *testing.T) {
	f := NewJailForm().WithFilter("nginx")
	f.Action = "iptables-allports"
	f.Enabled = false
	f = f.WithFilter("")
	if f.Name != "" || f.Logpath != "" || f.Action != "" || !f.Enabled || f.Maxretry != DefaultMaxretry {
		t.Fatalf("form not reset: %+v", f)
	}
}

func TestWithTemplateFallbacks(t *testing.T) {
	off := false
	f := NewJailForm().WithTemplate("bare-template", jailapi.Template{Enabled: &off})
	if f.Filter != FilterCustom || f.Maxretry != 3 || f.Findtime != 3600 || f.Bantime != 600 || f.Enabled {
		t.Fatalf("unexpected form: %+v", f)
	}
	if f.Template != "bare-template" {
		t.Fatalf("template = %q", f.Template)
	}
}

func TestFormFromConfig(t *testing.T) {
	f := FormFromConfig(jailapi.JailConfig{Name: "app", Filter: "my-app", Logpath: "/x.log", Maxretry: 7})
	if f.Filter != FilterCustom || f.CustomFilter != "my-app" || f.Maxretry != 7 {
		t.Fatalf("unexpected form: %+v", f)
	}
	f = FormFromConfig(jailapi.JailConfig{Name: "sshd", Filter: "sshd", Enabled: true})
	if f.Filter != "sshd" || f.CustomFilter != "" || !f.Enabled {
		t.Fatalf("unexpected form: %+v", f)
	}
}

func TestTemplateLabel(t *testing.T) {
	cases := map[string]string{
		"sshd-template":    "Sshd",
		"nginx-template":   "Nginx",
		"postfix":          "Postfix",
		"":                 "",
		"x-template-extra": "X-extra",
	}
	for in, want := range cases {
		if got := TemplateLabel(in); got != want {
			t.Fatalf("TemplateLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSequencerDropsSuperseded(t *testing.T) {
	var q sequencer
	ctx := context.Background()

	old := q.start(ctx, sectionBanned)
	cur := q.start(ctx, sectionBanned)
	if old.ctx.Err() == nil {
		t.Fatalf("older ticket must be canceled")
	}

	var applied []uint64
	if !q.commit(cur, func() { applied = append(applied, cur.n) }) {
		t.Fatalf("current ticket rejected")
	}
	if q.commit(old, func() { applied = append(applied, old.n) }) {
		t.Fatalf("stale ticket accepted")
	}
	q.finish(old)
	q.finish(cur)

	if len(applied) != 1 || applied[0] != cur.n {
		t.Fatalf("applied = %v", applied)
	}

	other := q.start(ctx, sectionJails)
	defer q.finish(other)
	if cur.ctx.Err() == nil {
		t.Fatalf("finished ticket context should be released")
	}
	if !q.commit(other, func() {}) {
		t.Fatalf("sections are independent")
	}
}
