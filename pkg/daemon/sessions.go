package daemon

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ot2lab/liquidtrack/pkg/api"
	"github.com/ot2lab/liquidtrack/pkg/tracker"
)

var (
	errSessionExists   = errors.New("tracker already exists")
	errSessionNotFound = errors.New("tracker not found")
)

// session is one tracked tube. Steps on the same tube are serialized by mu.
type session struct {
	mu         sync.Mutex
	id         string
	tracker    *tracker.Tracker
	createdAt  time.Time
	lastUsedAt time.Time
}

// step applies one pipetting step and reports whether this step moved the
// tube into the exhausted phase.
func (s *session) step(deltaVolumeUL float64, now time.Time) (tracker.Result, bool, api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.tracker.Phase()
	res, err := s.tracker.Step(deltaVolumeUL)
	if err != nil {
		return tracker.Result{}, false, s.viewLocked(), err
	}
	s.lastUsedAt = now

	exhaustedNow := before != tracker.PhaseExhausted && s.tracker.Phase() == tracker.PhaseExhausted
	return res, exhaustedNow, s.viewLocked(), nil
}

func (s *session) view() api.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *session) viewLocked() api.Session {
	return api.Session{
		ID:         s.id,
		CreatedAt:  s.createdAt,
		LastUsedAt: s.lastUsedAt,
		Status:     s.tracker.Snapshot(),
	}
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

// registry holds the tracker sessions of the daemon.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

func (r *registry) add(id string, t *tracker.Tracker, now time.Time) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		return nil, errSessionExists
	}
	s := &session{
		id:         id,
		tracker:    t,
		createdAt:  now,
		lastUsedAt: now,
	}
	r.sessions[id] = s
	return s, nil
}

func (r *registry) get(id string) (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return s, nil
}

func (r *registry) remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return errSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// list returns all sessions ordered by id.
func (r *registry) list() []api.Session {
	r.mu.RLock()
	all := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	ret := make([]api.Session, 0, len(all))
	for _, s := range all {
		ret = append(ret, s.view())
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret
}

// sweep removes sessions idle for longer than ttl and returns their ids.
func (r *registry) sweep(ttl time.Duration, now time.Time) []string {
	if ttl <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) > ttl {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}
