package dashboard

import (
	"context"
	"sync"
)

// section is an independently refreshed part of the screen.
type section int

const (
	sectionJails section = iota
	sectionBanned
	sectionConfigs
	sectionIgnore
	sectionTemplates
	sectionForm
	sectionFilter
	numSections
)

var sectionNames = [numSections]string{"jails", "banned", "configs", "ignoreip", "templates", "form", "filter"}

func (s section) String() string { return sectionNames[s] }

// sequencer orders fetches per section. Starting a fetch cancels the one in
// flight for the same section, and only the newest ticket may render.
type sequencer struct {
	mu     sync.Mutex
	latest [numSections]uint64
	cancel [numSections]context.CancelFunc

	render [numSections]sync.Mutex
}

type ticket struct {
	ctx    context.Context
	cancel context.CancelFunc
	s      section
	n      uint64
}

func (q *sequencer) start(ctx context.Context, s section) *ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	if prev := q.cancel[s]; prev != nil {
		prev()
	}
	cctx, cancel := context.WithCancel(ctx)
	q.latest[s]++
	q.cancel[s] = cancel
	return &ticket{ctx: cctx, cancel: cancel, s: s, n: q.latest[s]}
}

func (q *sequencer) finish(t *ticket) {
	t.cancel()
	q.mu.Lock()
	if q.latest[t.s] == t.n {
		q.cancel[t.s] = nil
	}
	q.mu.Unlock()
}

// commit runs fn if t is still the newest ticket of its section. Renders of
// one section are serialized so an older ticket cannot land after a newer one.
func (q *sequencer) commit(t *ticket, fn func()) bool {
	q.render[t.s].Lock()
	defer q.render[t.s].Unlock()
	q.mu.Lock()
	current := q.latest[t.s] == t.n
	q.mu.Unlock()
	if !current {
		return false
	}
	fn()
	return true
}
