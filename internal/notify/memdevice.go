package notify

import (
	"context"
	"sort"
	"sync"
)

// MemoryDevice is a Device that records registrations without arming real
// timers. It backs the degraded "scheduling disabled" mode when no delivery
// sink is configured, and the fakes in tests.
type MemoryDevice struct {
	mu   sync.Mutex
	live map[string]Notification

	// Cancelled accumulates every identifier passed to Cancel, including
	// unknown ones. Tests assert on it.
	Cancelled []string
}

func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{live: make(map[string]Notification)}
}

func (d *MemoryDevice) Register(ctx context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[n.Identifier] = n
	return nil
}

func (d *MemoryDevice) Cancel(ctx context.Context, identifier string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Cancelled = append(d.Cancelled, identifier)
	delete(d.live, identifier)
	return nil
}

func (d *MemoryDevice) ListLive(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.live))
	for id := range d.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (d *MemoryDevice) GetAllLive(ctx context.Context) ([]Notification, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ns := make([]Notification, 0, len(d.live))
	for _, n := range d.live {
		ns = append(ns, n)
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].Identifier < ns[j].Identifier })
	return ns, nil
}

// Get returns the live notification registered under identifier, if any.
func (d *MemoryDevice) Get(identifier string) (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.live[identifier]
	return n, ok
}

// Drop removes a live entry without recording a cancellation, simulating
// OS-level eviction of a timer.
func (d *MemoryDevice) Drop(identifier string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, identifier)
}
