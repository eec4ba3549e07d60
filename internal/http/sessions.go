package http

import (
	"context"
	"sync"
	"time"

	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/workflow"
)

// WorkflowFactory builds a fresh booking workflow for a client session key.
type WorkflowFactory func(ctx context.Context, sessionKey string, start workflow.Step) (*workflow.Controller, error)

type entry struct {
	ctl      *workflow.Controller
	owner    string
	lastSeen time.Time
}

// Registry holds the live booking workflow of each client session.
type Registry struct {
	factory WorkflowFactory
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(factory WorkflowFactory) *Registry {
	return &Registry{factory: factory, now: time.Now, sessions: map[string]*entry{}}
}

// Start replaces any workflow the session had with a new one. A session
// owned by another caller is refused, including one claimed while the new
// workflow was being built.
func (r *Registry) Start(ctx context.Context, sessionKey, owner string, start workflow.Step) (*workflow.Controller, error) {
	r.mu.Lock()
	err := r.checkOwnerLocked(sessionKey, owner)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ctl, err := r.factory(ctx, sessionKey, start)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOwnerLocked(sessionKey, owner); err != nil {
		return nil, err
	}
	r.sessions[sessionKey] = &entry{ctl: ctl, owner: owner, lastSeen: r.now()}
	return ctl, nil
}

func (r *Registry) checkOwnerLocked(sessionKey, owner string) error {
	if e, ok := r.sessions[sessionKey]; ok && e.owner != "" && e.owner != owner {
		return domain.ErrConflict
	}
	return nil
}

// Get returns the session's workflow. A workflow started by an identified
// caller is invisible to everyone else.
func (r *Registry) Get(sessionKey, caller string) (*workflow.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionKey]
	if !ok || (e.owner != "" && e.owner != caller) {
		return nil, domain.ErrNotFound
	}
	e.lastSeen = r.now()
	return e.ctl, nil
}

// Sweep drops workflows idle for longer than maxIdle and returns how many
// were dropped.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxIdle)
	n := 0
	for k, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, k)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
