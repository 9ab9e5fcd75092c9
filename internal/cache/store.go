// Package cache is the session-scoped entity cache shared by the query layer
// and the mutation dispatcher.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Entry struct {
	Value     any
	Stale     bool
	FetchedAt time.Time
}

type EventKind int

const (
	EventPut EventKind = iota + 1
	EventInvalidate
)

func (k EventKind) String() string {
	switch k {
	case EventPut:
		return "put"
	case EventInvalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Key  Key
}

type Listener func(Event)

type record struct {
	key   Key
	entry Entry
}

type subscription struct {
	key    Key
	fn     Listener
	active atomic.Bool
}

// Store holds the last fetched value of every key. All methods are safe for
// concurrent use. Listeners run on the calling goroutine after the store lock
// is released, so they may call back into the store.
type Store struct {
	mu      sync.Mutex
	entries map[string]*record
	subs    map[string]map[uint64]*subscription
	nextSub uint64
	closed  bool

	observers   map[uint64]func(prefixes []Key)
	nextObserve uint64

	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Client
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

func WithMetrics(m *metrics.Client) Option { return func(s *Store) { s.metrics = m } }

func New(opts ...Option) *Store {
	s := &Store{
		entries:   make(map[string]*record),
		subs:      make(map[string]map[uint64]*subscription),
		observers: make(map[uint64]func([]Key)),
		now:       time.Now,
		log:       logging.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[key.ID()]
	if !ok {
		return Entry{}, false
	}
	return r.entry, true
}

// Put replaces the value of key and clears its staleness.
func (s *Store) Put(key Key, value any) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.entries[key.ID()] = &record{
		key:   key,
		entry: Entry{Value: value, FetchedAt: s.now()},
	}
	subs := s.listenersLocked(key)
	s.mu.Unlock()

	notify(subs, Event{Kind: EventPut, Key: key})
}

// PutIf runs cond under the store lock and stores value only when it
// reports true. cond runs exactly once, even on a closed store, and must
// not call back into the store. Invalidate observers run under the same
// lock, so cond never races an invalidation.
func (s *Store) PutIf(key Key, value any, cond func() bool) bool {
	s.mu.Lock()
	ok := cond()
	if !ok || s.closed {
		s.mu.Unlock()
		return false
	}
	s.entries[key.ID()] = &record{
		key:   key,
		entry: Entry{Value: value, FetchedAt: s.now()},
	}
	subs := s.listenersLocked(key)
	s.mu.Unlock()

	notify(subs, Event{Kind: EventPut, Key: key})
	return true
}

// Invalidate marks every key matching one of the prefixes as stale and
// returns the matched keys. Keys that only have subscribers are reported too.
// Invalidate never fetches.
func (s *Store) Invalidate(prefixes ...Key) []Key {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	seen := make(map[string]Key)
	for id, r := range s.entries {
		if matchesAny(r.key, prefixes) {
			r.entry.Stale = true
			seen[id] = r.key
		}
	}
	for id, m := range s.subs {
		if _, ok := seen[id]; ok {
			continue
		}
		for _, sub := range m {
			if matchesAny(sub.key, prefixes) {
				seen[id] = sub.key
			}
			break
		}
	}
	matched := make([]Key, 0, len(seen))
	var pending []func()
	for _, k := range seen {
		matched = append(matched, k)
		subs := s.listenersLocked(k)
		ev := Event{Kind: EventInvalidate, Key: k}
		pending = append(pending, func() { notify(subs, ev) })
	}
	for _, fn := range s.observers {
		fn(prefixes)
	}
	s.mu.Unlock()

	for _, k := range matched {
		s.metrics.Invalidated(k.Kind())
	}
	s.log.Debug("cache_invalidate", "prefixes", len(prefixes), "matched", len(matched))
	for _, fn := range pending {
		fn()
	}
	return matched
}

// Subscribe registers fn for events on key. After the returned function is
// called fn is not invoked again, except for a delivery already running.
func (s *Store) Subscribe(key Key, fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	sub := &subscription{key: key, fn: fn}
	sub.active.Store(true)
	s.nextSub++
	id, sid := key.ID(), s.nextSub
	if s.subs[id] == nil {
		s.subs[id] = make(map[uint64]*subscription)
	}
	s.subs[id][sid] = sub

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			defer s.mu.Unlock()
			if m := s.subs[id]; m != nil {
				delete(m, sid)
				if len(m) == 0 {
					delete(s.subs, id)
				}
			}
		})
	}
}

// OnInvalidate registers fn to run on every Invalidate call, before key
// subscribers are notified. fn runs while the store lock is held and must
// not call back into the store.
func (s *Store) OnInvalidate(fn func(prefixes []Key)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextObserve++
	id := s.nextObserve
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Keys returns every key that currently holds a value.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.entries))
	for _, r := range s.entries {
		out = append(out, r.key)
	}
	return out
}

// Close ends the session: entries and subscribers are dropped and further
// writes are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, m := range s.subs {
		for _, sub := range m {
			sub.active.Store(false)
		}
	}
	s.entries = make(map[string]*record)
	s.subs = make(map[string]map[uint64]*subscription)
	s.observers = make(map[uint64]func([]Key))
}

func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) listenersLocked(key Key) []*subscription {
	m := s.subs[key.ID()]
	if len(m) == 0 {
		return nil
	}
	out := make([]*subscription, 0, len(m))
	for _, sub := range m {
		out = append(out, sub)
	}
	return out
}

func notify(subs []*subscription, ev Event) {
	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(ev)
		}
	}
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}
