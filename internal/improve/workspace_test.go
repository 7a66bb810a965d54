package improve

import (
	"sync"
	"testing"
)

func TestWorkspaceLeaseSerializesAccess(t *testing.T) {
	ws := NewWorkspace("/repo")

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease := ws.Acquire()
			defer lease.Release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("Expected at most 1 concurrent holder, observed %d", maxActive)
	}
}

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	ws := NewWorkspace("/repo")

	lease := ws.Acquire()
	if lease.Repo() != "/repo" {
		t.Errorf("Repo = %q", lease.Repo())
	}
	lease.Release()
	lease.Release()

	// The workspace must be acquirable again after release.
	next := ws.Acquire()
	next.Release()
}
