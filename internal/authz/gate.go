// Package authz decides whether admin-only views may render.
package authz

import (
	"context"
	"sync"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
)

type State int

const (
	// Unresolved: the role is loading or failed before any value arrived.
	// Neither the restricted content nor the denial screen renders.
	Unresolved State = iota
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unresolved"
	}
}

type Decision struct {
	State State
	Role  models.UserRole
	// Err is the last role lookup failure, if any.
	Err error
}

func (d Decision) CanRender() bool  { return d.State == Granted }
func (d Decision) ShowDenial() bool { return d.State == Denied }

type Gate struct {
	c *query.Client
	q *query.Queries
}

func New(c *query.Client, q *query.Queries) *Gate {
	return &Gate{c: c, q: q}
}

// Admin decides from what the cache holds now, starting role lookups in the
// background when needed.
func (g *Gate) Admin(ctx context.Context) Decision {
	return decide(
		query.Read(ctx, g.c, g.q.IsCallerAdmin()),
		query.Read(ctx, g.c, g.q.CallerRole()),
	)
}

// ResolveAdmin waits for the role lookups. It still returns Unresolved when
// ctx ends first or the lookup fails with nothing cached.
func (g *Gate) ResolveAdmin(ctx context.Context) Decision {
	return decide(
		query.Fetch(ctx, g.c, g.q.IsCallerAdmin()),
		query.Fetch(ctx, g.c, g.q.CallerRole()),
	)
}

// Watch calls fn with a new decision whenever the admin flag or the caller
// role changes. Deliveries are serialized.
func (g *Gate) Watch(_ context.Context, fn func(Decision)) (stop func()) {
	var (
		mu    sync.Mutex
		admin query.Result[bool]
		role  query.Result[models.UserRole]
		live  bool
	)
	emit := func() {
		if live {
			fn(decide(admin, role))
		}
	}
	stopRole := query.Watch(g.c, g.q.CallerRole(), func(r query.Result[models.UserRole]) {
		mu.Lock()
		defer mu.Unlock()
		role = r
		emit()
	})

	mu.Lock()
	live = true
	mu.Unlock()

	// The admin watch delivers a decision before Watch returns.
	stopAdmin := query.Watch(g.c, g.q.IsCallerAdmin(), func(r query.Result[bool]) {
		mu.Lock()
		defer mu.Unlock()
		admin = r
		emit()
	})

	return func() {
		stopAdmin()
		stopRole()
	}
}

func decide(admin query.Result[bool], role query.Result[models.UserRole]) Decision {
	if !admin.HasData {
		return Decision{State: Unresolved, Err: admin.Err}
	}
	d := Decision{Err: admin.Err}
	if role.HasData {
		d.Role = role.Data
	}
	if admin.Data {
		d.State, d.Role = Granted, models.RoleAdmin
		return d
	}
	d.State = Denied
	return d
}
