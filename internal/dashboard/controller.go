// Package dashboard holds the operator console's view-model: it fetches
// from the jail API, keeps the little local state the screens need, and
// pushes results to a View.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"

	"jaildash/internal/jailapi"
	"jaildash/internal/status"
	"jaildash/internal/validate"
)

// API is the subset of the jail API the controller drives.
type API interface {
	ListJails(ctx context.Context) ([]string, error)
	JailStatus(ctx context.Context, jail string) (string, error)
	Ban(ctx context.Context, jail, ip string) (jailapi.BanResult, error)
	Unban(ctx context.Context, jail, ip string) error
	GetIgnoreIPs(ctx context.Context) ([]string, error)
	SaveIgnoreIPs(ctx context.Context, ips []string) error
	ListJailConfigs(ctx context.Context) ([]jailapi.JailConfig, error)
	SaveJailConfig(ctx context.Context, jc jailapi.JailConfig) (jailapi.SaveResult, error)
	StartJail(ctx context.Context, name string) error
	StopJail(ctx context.Context, name string) error
	DeleteJailConfig(ctx context.Context, name string) error
	ListTemplates(ctx context.Context) (map[string]jailapi.Template, error)
	GetFilter(ctx context.Context, name string) (string, error)
}

// Locator annotates addresses with a country code. Empty means unknown.
type Locator interface {
	Country(addr string) string
}

// Alert texts shown after successful mutations.
const (
	MsgIgnoreSaved   = "ignoreIP configuration saved successfully!"
	MsgUnbanned      = "IP unbanned successfully"
	MsgJailDeleted   = "Jail deleted successfully"
	MsgJailSaved     = "Jail configuration saved successfully!"
	MsgJailActive    = "Jail started and is now active!"
	MsgJailOnReload  = "Config saved. Jail will activate on next reload."
	MsgDuplicateIP   = "This IP is already in the ignore list"
	MsgBanIPRequired = "Please enter an IP address to ban"
	MsgNoActiveJails = "No active jails to ban in"
)

const templatesKey = "templates"

type Options struct {
	API     API
	View    View
	Locator Locator
	Logger  *slog.Logger
	// RefreshInterval is how often the active jail list is re-fetched.
	RefreshInterval time.Duration
	// TemplateTTL bounds how long fetched templates are reused.
	TemplateTTL time.Duration
}

// Controller is safe for concurrent use.
type Controller struct {
	api     API
	view    View
	geo     Locator
	logger  *slog.Logger
	refresh time.Duration

	seq       sequencer
	templates *cache.Cache

	cronMu sync.Mutex
	cron   *cron.Cron

	mu         sync.Mutex
	jails      []string
	bannedJail string
	banned     []BannedIP
	search     string
	ignore     []string
}

func New(opt Options) *Controller {
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}
	refresh := opt.RefreshInterval
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	ttl := opt.TemplateTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Controller{
		api:       opt.API,
		view:      opt.View,
		geo:       opt.Locator,
		logger:    lg,
		refresh:   refresh,
		templates: cache.New(ttl, 2*ttl),
	}
}

// Start schedules the periodic refresh of the active jail list. It runs
// until Stop or until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.cron != nil {
		return errors.New("refresh already running")
	}
	cr := cron.New()
	_, err := cr.AddFunc("@every "+c.refresh.String(), func() {
		if ctx.Err() != nil {
			return
		}
		c.logger.Debug("periodic jail refresh")
		_, _ = c.RefreshJails(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	cr.Start()
	c.cron = cr
	return nil
}

// Stop halts the periodic refresh and waits for a running one to finish.
func (c *Controller) Stop() {
	c.cronMu.Lock()
	cr := c.cron
	c.cron = nil
	c.cronMu.Unlock()
	if cr != nil {
		<-cr.Stop().Done()
	}
}

// Load renders the dashboard: active jails, the first jail's banned list,
// jail configurations, the ignore list and the templates. A failed section
// does not keep the others from loading.
func (c *Controller) Load(ctx context.Context) error {
	var errs []error
	jails, fresh, err := c.refreshJails(ctx)
	switch {
	case errors.Is(err, jailapi.ErrUnauthorized):
		return err
	case err != nil:
		errs = append(errs, err)
	case !fresh:
		// A newer refresh owns the jail list and whatever it implies for
		// the banned section.
	case len(jails) > 0:
		errs = append(errs, c.ViewBannedIPs(ctx, jails[0]))
	default:
		c.clearBanned(ctx)
	}
	_, err = c.LoadJailConfigs(ctx)
	errs = append(errs, err)
	errs = append(errs, c.LoadIgnoreIPs(ctx))
	errs = append(errs, c.LoadTemplates(ctx))
	return errors.Join(errs...)
}

// RefreshJails fetches the active jails and renders them in a grid sized
// to the view. A refresh superseded by a newer one returns nil, nil.
func (c *Controller) RefreshJails(ctx context.Context) ([]string, error) {
	jails, _, err := c.refreshJails(ctx)
	return jails, err
}

// refreshJails reports fresh=false when a newer refresh took over before
// this one could render.
func (c *Controller) refreshJails(ctx context.Context) ([]string, bool, error) {
	t := c.seq.start(ctx, sectionJails)
	defer c.seq.finish(t)

	jails, err := c.api.ListJails(t.ctx)
	var out error
	ok := c.seq.commit(t, func() {
		if err != nil {
			out = err
			if !errors.Is(err, jailapi.ErrUnauthorized) {
				c.logger.Error("load jails", "err", err)
				c.view.ShowJailsError("Error: " + jailapi.Message(err))
			}
			return
		}
		c.mu.Lock()
		c.jails = slices.Clone(jails)
		c.mu.Unlock()
		c.view.ShowJails(jails, Columns(c.view.Width()))
	})
	if !ok {
		c.stale(t)
		return nil, false, nil
	}
	return jails, true, out
}

// clearBanned shows the empty banned section. It goes through the banned
// sequence so it cannot land over a newer list.
func (c *Controller) clearBanned(ctx context.Context) {
	t := c.seq.start(ctx, sectionBanned)
	defer c.seq.finish(t)
	ok := c.seq.commit(t, func() {
		c.mu.Lock()
		c.bannedJail = ""
		c.banned = nil
		c.mu.Unlock()
		c.view.ShowBannedIPs("", []BannedIP{}, Columns(c.view.Width()))
	})
	if !ok {
		c.stale(t)
	}
}

// Jails returns the active jails from the last successful refresh.
func (c *Controller) Jails() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.jails)
}

// ViewBannedIPs fetches and renders the banned list of jail.
func (c *Controller) ViewBannedIPs(ctx context.Context, jail string) error {
	t := c.seq.start(ctx, sectionBanned)
	defer c.seq.finish(t)

	text, err := c.api.JailStatus(t.ctx, jail)
	var out error
	ok := c.seq.commit(t, func() {
		if err != nil {
			out = err
			if !errors.Is(err, jailapi.ErrUnauthorized) {
				c.logger.Error("load banned ips", "jail", jail, "err", err)
				c.view.ShowBannedIPsError(jail, "Error loading banned IPs: "+jailapi.Message(err))
			}
			return
		}
		entries := c.annotate(status.BannedIPs(text))
		c.mu.Lock()
		c.bannedJail = jail
		c.banned = entries
		shown := filterBanned(entries, c.search)
		c.mu.Unlock()
		c.view.ShowBannedIPs(jail, shown, Columns(c.view.Width()))
	})
	if !ok {
		c.stale(t)
		return nil
	}
	return out
}

// FilterBannedIPs narrows the displayed banned list to entries containing
// term. The term sticks across reloads of the list.
func (c *Controller) FilterBannedIPs(term string) {
	c.mu.Lock()
	c.search = term
	jail := c.bannedJail
	shown := filterBanned(c.banned, term)
	c.mu.Unlock()
	c.view.ShowBannedIPs(jail, shown, Columns(c.view.Width()))
}

// SetSearch sets the banned list filter term without rendering.
func (c *Controller) SetSearch(term string) {
	c.mu.Lock()
	c.search = term
	c.mu.Unlock()
}

// BannedJail is the jail whose banned list is on screen.
func (c *Controller) BannedJail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bannedJail
}

func (c *Controller) annotate(addrs []string) []BannedIP {
	out := make([]BannedIP, 0, len(addrs))
	for _, a := range addrs {
		b := BannedIP{Addr: a, Subnet: status.IsSubnet(a)}
		if c.geo != nil {
			b.Country = c.geo.Country(a)
		}
		out = append(out, b)
	}
	return out
}

func filterBanned(entries []BannedIP, term string) []BannedIP {
	out := make([]BannedIP, 0, len(entries))
	for _, e := range entries {
		if len(status.Filter([]string{e.Addr, e.Country}, term)) > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Ban blocks ip in jail, or in the first active jail when jail is empty,
// then reloads that jail's banned list.
func (c *Controller) Ban(ctx context.Context, jail, ip string) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return c.report("ban", "", &validate.Error{Msg: MsgBanIPRequired})
	}
	if err := validate.IPOrCIDR(ip); err != nil {
		return c.report("ban", "", err)
	}
	if jail == "" {
		jails, err := c.api.ListJails(ctx)
		if err != nil {
			return c.report("ban", "Error banning IP: ", err)
		}
		if len(jails) == 0 {
			return c.report("ban", "", &validate.Error{Msg: MsgNoActiveJails})
		}
		jail = jails[0]
	}
	res, err := c.api.Ban(ctx, jail, ip)
	if err != nil {
		return c.report("ban", "Error: ", err)
	}
	c.logger.Info("ip banned", "jail", jail, "ip", ip, "status", res.Status)
	msg := res.Message
	if msg == "" {
		msg = fmt.Sprintf("IP %s banned in %s", ip, jail)
	}
	c.view.Alert(msg)
	return c.ViewBannedIPs(ctx, jail)
}

// Unban lifts the ban on ip in jail and reloads that jail's list.
func (c *Controller) Unban(ctx context.Context, jail, ip string) error {
	if err := c.api.Unban(ctx, jail, ip); err != nil {
		return c.report("unban", "Failed to unban IP: ", err)
	}
	c.logger.Info("ip unbanned", "jail", jail, "ip", ip)
	c.view.Alert(MsgUnbanned)
	return c.ViewBannedIPs(ctx, jail)
}

// LoadIgnoreIPs replaces the local ignore list with the server's.
func (c *Controller) LoadIgnoreIPs(ctx context.Context) error {
	t := c.seq.start(ctx, sectionIgnore)
	defer c.seq.finish(t)

	ips, err := c.api.GetIgnoreIPs(t.ctx)
	var out error
	ok := c.seq.commit(t, func() {
		if err != nil {
			out = c.report("load ignoreip", "Error loading ignoreIP: ", err)
			return
		}
		c.mu.Lock()
		c.ignore = slices.Clone(ips)
		c.mu.Unlock()
		c.view.ShowIgnoreIPs(slices.Clone(ips))
	})
	if !ok {
		c.stale(t)
		return nil
	}
	return out
}

// IgnoreIPs returns the locally edited ignore list.
func (c *Controller) IgnoreIPs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.ignore)
}

// AddIgnoreIP appends ip to the local list. Blank, malformed and duplicate
// entries are rejected and leave the list unchanged.
func (c *Controller) AddIgnoreIP(ip string) error {
	ip = strings.TrimSpace(ip)
	if err := validate.IPOrCIDR(ip); err != nil {
		return c.report("add ignoreip", "", err)
	}
	c.mu.Lock()
	if slices.Contains(c.ignore, ip) {
		c.mu.Unlock()
		return c.report("add ignoreip", "", &validate.Error{Msg: MsgDuplicateIP})
	}
	c.ignore = append(c.ignore, ip)
	ips := slices.Clone(c.ignore)
	c.mu.Unlock()
	c.view.ShowIgnoreIPs(ips)
	return nil
}

// RemoveIgnoreIP drops ip from the local list.
func (c *Controller) RemoveIgnoreIP(ip string) {
	c.mu.Lock()
	c.ignore = slices.DeleteFunc(c.ignore, func(s string) bool { return s == ip })
	ips := slices.Clone(c.ignore)
	c.mu.Unlock()
	c.view.ShowIgnoreIPs(ips)
}

// SaveIgnoreIPs sends the whole local list to the server.
func (c *Controller) SaveIgnoreIPs(ctx context.Context) error {
	ips := c.IgnoreIPs()
	if err := c.api.SaveIgnoreIPs(ctx, ips); err != nil {
		return c.report("save ignoreip", "Error: ", err)
	}
	c.logger.Info("ignoreip saved", "count", len(ips))
	c.view.Alert(MsgIgnoreSaved)
	return nil
}

// LoadJailConfigs renders every configured jail.
func (c *Controller) LoadJailConfigs(ctx context.Context) ([]jailapi.JailConfig, error) {
	t := c.seq.start(ctx, sectionConfigs)
	defer c.seq.finish(t)

	configs, err := c.api.ListJailConfigs(t.ctx)
	var out error
	ok := c.seq.commit(t, func() {
		if err != nil {
			out = c.report("load jail configs", "Error loading jail configurations: ", err)
			return
		}
		c.view.ShowJailConfigs(configs)
	})
	if !ok {
		c.stale(t)
		return nil, nil
	}
	return configs, out
}

// EditJail loads the named jail into the form.
func (c *Controller) EditJail(ctx context.Context, name string) error {
	t := c.seq.start(ctx, sectionForm)
	defer c.seq.finish(t)

	configs, err := c.api.ListJailConfigs(t.ctx)
	var out error
	ok := c.seq.commit(t, func() {
		if err != nil {
			out = c.report("edit jail", "Error loading jail: ", err)
			return
		}
		for _, jc := range configs {
			if jc.Name == name {
				c.view.FillJailForm(FormFromConfig(jc))
				return
			}
		}
		out = c.report("edit jail", "", &jailapi.Error{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("Jail %s not found", name)})
	})
	if !ok {
		c.stale(t)
		return nil
	}
	return out
}

// SubmitJailForm validates and saves the form, then clears it and reloads
// the configuration and active jail lists.
func (c *Controller) SubmitJailForm(ctx context.Context, form JailForm) error {
	jc, err := form.Payload()
	if err != nil {
		return c.report("save jail", "", err)
	}
	res, err := c.api.SaveJailConfig(ctx, jc)
	if err != nil {
		return c.report("save jail", "Error saving jail: ", err)
	}
	c.logger.Info("jail saved", "jail", jc.Name, "active", res.JailActive)
	next := MsgJailOnReload
	if res.JailActive {
		next = MsgJailActive
	}
	c.view.Alert(MsgJailSaved + "\n\n" + next)
	c.view.ResetJailForm(NewJailForm())
	return c.reloadJails(ctx)
}

// ToggleJail stops an enabled jail or starts a disabled one.
func (c *Controller) ToggleJail(ctx context.Context, name string, enabled bool) error {
	action, call := "start", c.api.StartJail
	if enabled {
		action, call = "stop", c.api.StopJail
	}
	if err := call(ctx, name); err != nil {
		return c.report(action+" jail", "Error: ", err)
	}
	c.logger.Info("jail toggled", "jail", name, "action", action)
	return c.reloadJails(ctx)
}

// DeleteJail stops the jail and removes its configuration.
func (c *Controller) DeleteJail(ctx context.Context, name string) error {
	if err := c.api.DeleteJailConfig(ctx, name); err != nil {
		return c.report("delete jail", "Error deleting jail: ", err)
	}
	c.logger.Info("jail deleted", "jail", name)
	c.view.Alert(MsgJailDeleted)
	return c.reloadJails(ctx)
}

func (c *Controller) reloadJails(ctx context.Context) error {
	_, err1 := c.LoadJailConfigs(ctx)
	_, err2 := c.RefreshJails(ctx)
	return errors.Join(err1, err2)
}

// LoadTemplates renders the template picker, reusing a cached copy while
// it is fresh.
func (c *Controller) LoadTemplates(ctx context.Context) error {
	if v, ok := c.templates.Get(templatesKey); ok {
		c.view.ShowTemplates(templateOptions(v.(map[string]jailapi.Template)))
		return nil
	}
	t := c.seq.start(ctx, sectionTemplates)
	defer c.seq.finish(t)

	tpls, err := c.api.ListTemplates(t.ctx)
	var out error
	ok := c.seq.commit(t, func() {
		if err != nil {
			out = err
			if !errors.Is(err, jailapi.ErrUnauthorized) {
				c.logger.Error("load templates", "err", err)
			}
			return
		}
		c.templates.SetDefault(templatesKey, tpls)
		c.view.ShowTemplates(templateOptions(tpls))
	})
	if !ok {
		c.stale(t)
		return nil
	}
	return out
}

// ApplyTemplate prefills form from the named preset.
func (c *Controller) ApplyTemplate(ctx context.Context, name string, form JailForm) error {
	tpls, err := c.templateMap(ctx)
	if err != nil {
		return c.report("apply template", "Error loading templates: ", err)
	}
	t, ok := tpls[name]
	if !ok {
		return c.report("apply template", "", &validate.Error{Msg: fmt.Sprintf("Unknown template %q", name)})
	}
	c.view.FillJailForm(form.WithTemplate(name, t))
	return nil
}

func (c *Controller) templateMap(ctx context.Context) (map[string]jailapi.Template, error) {
	if v, ok := c.templates.Get(templatesKey); ok {
		return v.(map[string]jailapi.Template), nil
	}
	tpls, err := c.api.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	c.templates.SetDefault(templatesKey, tpls)
	return tpls, nil
}

func templateOptions(tpls map[string]jailapi.Template) []TemplateOption {
	out := make([]TemplateOption, 0, len(tpls))
	for name := range tpls {
		out = append(out, TemplateOption{Name: name, Label: TemplateLabel(name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ChangeFilter applies the picked filter's defaults to form and shows the
// filter definition. A failed definition fetch is only logged.
func (c *Controller) ChangeFilter(ctx context.Context, form JailForm, filter string) error {
	c.view.FillJailForm(form.WithFilter(filter))
	if filter == "" || filter == FilterCustom {
		return nil
	}
	if ForcesSystemd(filter) {
		c.logger.Debug("filter uses the systemd backend", "filter", filter)
	}

	t := c.seq.start(ctx, sectionFilter)
	defer c.seq.finish(t)

	content, err := c.api.GetFilter(t.ctx, filter)
	var out error
	ok := c.seq.commit(t, func() {
		if err != nil {
			out = err
			c.logger.Warn("load filter content", "filter", filter, "err", err)
			return
		}
		c.view.ShowFilterContent(filter, content)
	})
	if !ok {
		c.stale(t)
		return nil
	}
	return out
}

// report is the single failure path: it logs err and alerts the operator
// with prefix and the error's message. Session failures stay silent since
// the session guard already redirected.
func (c *Controller) report(op, prefix string, err error) error {
	if errors.Is(err, jailapi.ErrUnauthorized) {
		c.logger.Debug(op+" unauthorized", "err", err)
		return err
	}
	if errors.Is(err, context.Canceled) {
		c.logger.Debug(op+" canceled", "err", err)
		return err
	}
	if validate.IsValidation(err) {
		c.logger.Info(op+" rejected", "reason", err)
		c.view.Alert(err.Error())
		return err
	}
	c.logger.Error(op+" failed", "err", err)
	c.view.Alert(prefix + jailapi.Message(err))
	return err
}

func (c *Controller) stale(t *ticket) {
	c.logger.Debug("dropped stale response", "section", t.s.String(), "seq", t.n)
}
