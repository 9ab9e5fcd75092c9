// Package query turns gateway reads into cached, de-duplicated results.
//
// Every key has one fetch in flight at most per freshness epoch. The epoch
// advances when the key is invalidated, so reads after a mutation never join
// a fetch that started before it. Results are applied last-request-wins: a
// fetch that is no longer the most recently started one for its key is
// dropped instead of overwriting newer data.
package query

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Status int

const (
	Idle Status = iota
	Loading
	Error
	Success
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Error:
		return "error"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

// Result is a snapshot of one key. On Error, Data still holds the last good
// value when HasData is true.
type Result[T any] struct {
	Status    Status
	Data      T
	HasData   bool
	Err       error
	Stale     bool
	FetchedAt time.Time
}

// Options describe one query. A disabled query never calls Fetch and
// reports Idle with Default.
type Options[T any] struct {
	Key     cache.Key
	Fetch   func(ctx context.Context) (T, error)
	Enabled bool
	Default T
}

type keyState struct {
	key     cache.Key
	epoch   uint64
	started uint64
	// running is the number of fetches in flight for the key.
	running int
	// err is the failure of the last applied fetch in the current epoch.
	err error

	watchers map[uint64]func()
}

// Client is the query layer of one session.
type Client struct {
	store *cache.Store
	group singleflight.Group

	mu        sync.Mutex
	keys      map[string]*keyState
	nextWatch uint64

	ctx           context.Context
	cancel        context.CancelFunc
	stopObserving func()

	log     *slog.Logger
	metrics *metrics.Client
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

func WithMetrics(m *metrics.Client) Option { return func(c *Client) { c.metrics = m } }

func New(store *cache.Store, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		store:  store,
		keys:   make(map[string]*keyState),
		ctx:    ctx,
		cancel: cancel,
		log:    logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	c.stopObserving = store.OnInvalidate(c.onInvalidate)
	return c
}

// Close cancels background fetches. Results still arriving are dropped by
// the closed store.
func (c *Client) Close() {
	c.stopObserving()
	c.cancel()
}

func (c *Client) Store() *cache.Store { return c.store }

func (c *Client) stateLocked(key cache.Key) *keyState {
	id := key.ID()
	ks, ok := c.keys[id]
	if !ok {
		ks = &keyState{key: key, watchers: make(map[uint64]func())}
		c.keys[id] = ks
	}
	return ks
}

// onInvalidate opens a new epoch for every matching key and supersedes any
// fetch already in flight for it. It runs under the store lock.
func (c *Client) onInvalidate(prefixes []cache.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ks := range c.keys {
		for _, p := range prefixes {
			if ks.key.HasPrefix(p) {
				ks.epoch++
				ks.started++
				ks.err = nil
				break
			}
		}
	}
}

// start joins or starts the fetch of key for the current epoch. The fetch
// runs on its own goroutine.
func (c *Client) start(key cache.Key, fetch func(context.Context) (any, error)) <-chan singleflight.Result {
	c.mu.Lock()
	ks := c.stateLocked(key)
	flight := key.ID() + "@" + strconv.FormatUint(ks.epoch, 10)
	if ks.running > 0 {
		c.metrics.Dedup(key.Kind())
	}
	c.mu.Unlock()

	return c.group.DoChan(flight, func() (any, error) {
		c.mu.Lock()
		ks.started++
		seq := ks.started
		ks.running++
		c.mu.Unlock()

		start := time.Now()
		v, err := fetch(c.ctx)

		var (
			latest   bool
			watchers []func()
		)
		settle := func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			ks.running--
			latest = seq == ks.started
			if latest {
				ks.err = err
			}
			watchers = make([]func(), 0, len(ks.watchers))
			for _, w := range ks.watchers {
				watchers = append(watchers, w)
			}
		}
		if err == nil {
			// The latest check and the write are one step under the store
			// lock, so an invalidation either supersedes this fetch or marks
			// its value stale.
			c.store.PutIf(key, v, func() bool {
				settle()
				return latest
			})
		} else {
			settle()
		}

		switch {
		case !latest:
			c.metrics.Discarded(key.Kind())
			c.log.Debug("query_result_discarded", "key", key.String())
		case err != nil:
			c.metrics.Fetch(key.Kind(), "error")
			c.log.Warn("query_fetch_error", "key", key.String(), "error", err)
			// Successful puts reach watchers through the store subscription.
			for _, w := range watchers {
				w()
			}
		default:
			c.metrics.Fetch(key.Kind(), "ok")
			c.log.Debug("query_fetch", "key", key.String(), "latency_ms", time.Since(start).Milliseconds())
		}
		return v, err
	})
}

// peek builds the current result of key without starting anything.
func peek[T any](c *Client, opts Options[T]) Result[T] {
	r := Result[T]{Data: opts.Default}
	if !opts.Enabled {
		return r
	}

	c.mu.Lock()
	var (
		running int
		lastErr error
	)
	if ks, ok := c.keys[opts.Key.ID()]; ok {
		running, lastErr = ks.running, ks.err
	}
	c.mu.Unlock()

	if e, ok := c.store.Get(opts.Key); ok {
		if v, ok := e.Value.(T); ok {
			r.Data, r.HasData, r.Stale, r.FetchedAt = v, true, e.Stale, e.FetchedAt
		}
	}

	switch {
	case running > 0:
		r.Status = Loading
	case lastErr != nil:
		r.Status, r.Err = Error, lastErr
	case r.HasData:
		r.Status = Success
	}
	return r
}

func needsFetch[T any](c *Client, opts Options[T]) bool {
	e, ok := c.store.Get(opts.Key)
	if !ok || e.Stale {
		return true
	}
	_, typed := e.Value.(T)
	return !typed
}

// failed reports whether the last fetch of key in the current epoch failed
// and nothing is retrying it.
func (c *Client) failed(key cache.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ks, ok := c.keys[key.ID()]
	return ok && ks.err != nil && ks.running == 0
}

func erase[T any](fetch func(context.Context) (T, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) { return fetch(ctx) }
}

// Read returns the current snapshot of the query and never blocks on the
// gateway. An absent or stale key starts a background fetch and reports
// Loading, keeping any previous data. A key whose fetch failed reports Error
// and is not retried until it is invalidated or fetched with Fetch.
func Read[T any](_ context.Context, c *Client, opts Options[T]) Result[T] {
	if !opts.Enabled {
		return peek(c, opts)
	}
	if needsFetch(c, opts) && !c.failed(opts.Key) {
		c.start(opts.Key, erase(opts.Fetch))
		r := peek(c, opts)
		r.Status, r.Err = Loading, nil
		return r
	}
	return peek(c, opts)
}

// Fetch blocks until the key holds a fresh value or its fetch fails. When ctx
// ends first the result is Loading with ctx's error.
func Fetch[T any](ctx context.Context, c *Client, opts Options[T]) Result[T] {
	if !opts.Enabled || !needsFetch(c, opts) {
		return peek(c, opts)
	}

	ch := c.start(opts.Key, erase(opts.Fetch))
	select {
	case res := <-ch:
		if res.Err != nil {
			r := peek(c, opts)
			r.Status, r.Err = Error, res.Err
			return r
		}
		// A superseded fetch still answers its own waiters.
		v, _ := res.Val.(T)
		r := peek(c, opts)
		r.Status, r.Data, r.HasData, r.Err, r.Stale = Success, v, true, nil, false
		if r.FetchedAt.IsZero() {
			r.FetchedAt = time.Now()
		}
		return r
	case <-ctx.Done():
		r := peek(c, opts)
		r.Status, r.Err = Loading, ctx.Err()
		return r
	}
}

// Watch calls fn with the current result and again after every put or
// failed fetch of the key. Invalidating a watched key refetches it in the
// background. After stop returns fn is not called again, except for a
// delivery already running.
func Watch[T any](c *Client, opts Options[T], fn func(Result[T])) (stop func()) {
	if !opts.Enabled {
		fn(peek(c, opts))
		return func() {}
	}

	var stopped atomic.Bool
	deliver := func() {
		if !stopped.Load() {
			fn(peek(c, opts))
		}
	}

	c.mu.Lock()
	ks := c.stateLocked(opts.Key)
	c.nextWatch++
	id := c.nextWatch
	ks.watchers[id] = deliver
	c.mu.Unlock()

	unsubscribe := c.store.Subscribe(opts.Key, func(ev cache.Event) {
		switch ev.Kind {
		case cache.EventPut:
			deliver()
		case cache.EventInvalidate:
			c.start(opts.Key, erase(opts.Fetch))
		}
	})

	if needsFetch(c, opts) && !c.failed(opts.Key) {
		r := peek(c, opts)
		r.Status, r.Err = Loading, nil
		fn(r)
		c.start(opts.Key, erase(opts.Fetch))
	} else {
		deliver()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			unsubscribe()
			c.mu.Lock()
			delete(ks.watchers, id)
			c.mu.Unlock()
		})
	}
}
