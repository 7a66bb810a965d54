// Package improve implements the two LLM-driven workflows: creating a pull
// request from a natural-language prompt, and iterating on a bot-owned PR
// from reviewer feedback. Both run against the single shared working tree and
// must hold its lease for the duration of a run.
package improve

import "sync"

// Workspace guards exclusive access to the fixed local working tree. A run
// acquires the lease before its first git operation and releases it after its
// last; overlapping workflow runs execute one at a time.
type Workspace struct {
	mu   sync.Mutex
	repo string
}

// NewWorkspace creates a workspace for the working tree at repo.
func NewWorkspace(repo string) *Workspace {
	return &Workspace{repo: repo}
}

// Acquire blocks until the workspace is free and returns the lease.
func (w *Workspace) Acquire() *Lease {
	w.mu.Lock()
	return &Lease{ws: w}
}

// Lease represents exclusive ownership of the working tree. Release must be
// called exactly once.
type Lease struct {
	ws   *Workspace
	once sync.Once
}

// Repo returns the working tree path.
func (l *Lease) Repo() string {
	return l.ws.repo
}

// Release returns the workspace to the pool. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.ws.mu.Unlock()
	})
}
