// Package cache implements the invalidation protocol for resolved permission
// sets. One authoritative version counter exists per principal, plus a global
// epoch; every cache consumer stores the version it computed against and
// treats a mismatch as a miss. Mutations bump counters and fan out across
// server processes with PostgreSQL NOTIFY.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

const notifyChannel = "tobira_authz_changed"

// Invalidator tracks per-principal permission-set versions.
type Invalidator struct {
	mu       sync.RWMutex
	versions map[string]uint64
	epoch    uint64

	db       *sql.DB // nil in local-only mode (tests)
	connStr  string
	listener *pq.Listener
	stopCh   chan struct{}
	stopped  bool
}

// NewInvalidator creates an Invalidator. db and connStr may be nil/empty for
// local-only operation without cross-process fan-out.
func NewInvalidator(db *sql.DB, connStr string) *Invalidator {
	return &Invalidator{
		versions: make(map[string]uint64),
		db:       db,
		connStr:  connStr,
		stopCh:   make(chan struct{}),
	}
}

// Start begins listening for invalidation notifications from other processes.
func (i *Invalidator) Start(ctx context.Context) error {
	if i.connStr == "" {
		return nil
	}

	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			// The TTL on cached entries bounds the staleness window if the
			// listener drops; log and keep going.
			log.Printf("invalidation listener error: %v", err)
		}
	}

	i.listener = pq.NewListener(i.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := i.listener.Listen(notifyChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	go i.listenLoop()
	return nil
}

// Stop stops the listener.
func (i *Invalidator) Stop() error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return nil
	}
	i.stopped = true
	close(i.stopCh)
	i.mu.Unlock()

	if i.listener != nil {
		return i.listener.Close()
	}
	return nil
}

// Version returns the authoritative (version, epoch) pair for a principal.
// A consumer holding a cached set computed at an older pair must recompute.
func (i *Invalidator) Version(principalID string) (uint64, uint64) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.versions[principalID], i.epoch
}

// InvalidatePrincipal bumps the principal's version counter and notifies
// other processes. Called when the principal's role assignment changes.
func (i *Invalidator) InvalidatePrincipal(ctx context.Context, principalID string) error {
	i.mu.Lock()
	i.versions[principalID]++
	i.mu.Unlock()

	return i.notify(ctx, "principal:"+principalID)
}

// InvalidateAll bumps the global epoch, invalidating every cached set at
// once. Called when role grants or permission definitions change.
func (i *Invalidator) InvalidateAll(ctx context.Context) error {
	i.mu.Lock()
	i.epoch++
	i.mu.Unlock()

	return i.notify(ctx, "all")
}

func (i *Invalidator) notify(ctx context.Context, payload string) error {
	if i.db == nil {
		return nil
	}
	if _, err := i.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, payload); err != nil {
		return fmt.Errorf("failed to notify %s: %w", notifyChannel, err)
	}
	return nil
}

func (i *Invalidator) listenLoop() {
	for {
		select {
		case <-i.stopCh:
			return
		case n := <-i.listener.Notify:
			if n == nil {
				// Reconnect event; other processes may have invalidated while
				// we were away, so treat it as a full invalidation.
				i.mu.Lock()
				i.epoch++
				i.mu.Unlock()
				continue
			}
			i.apply(n.Extra)
		}
	}
}

// apply merges a remote invalidation into the local counters.
func (i *Invalidator) apply(payload string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if payload == "all" {
		i.epoch++
		return
	}
	if id, ok := strings.CutPrefix(payload, "principal:"); ok {
		i.versions[id]++
		return
	}
	log.Printf("ignoring malformed invalidation payload: %q", payload)
}
