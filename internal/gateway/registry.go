package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"groupgate/internal/telegram"
)

// PendingLogin is an in-flight phone verification attempt. It owns the
// connection that requested the code so sign-in can reuse it.
type PendingLogin struct {
	Handle  string
	Phone   string
	Conn    telegram.Conn
	Created time.Time
}

type pendingEntry struct {
	login *PendingLogin
	timer *time.Timer
}

// Registry holds pending logins keyed by an opaque handle. Entries are
// evicted (and their connections closed) after the configured TTL unless
// taken first. Take deletes under the lock, so a verify racing the eviction
// timer yields at most one winner; the loser observes "not found".
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	logger  *zap.Logger
	entries map[string]*pendingEntry
}

// NewRegistry creates a registry with the given entry TTL.
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]*pendingEntry),
	}
}

// Put registers a pending login and returns its freshly generated handle.
// Handles are never reused.
func (r *Registry) Put(phone string, conn telegram.Conn) string {
	handle := uuid.NewString()
	login := &PendingLogin{
		Handle:  handle,
		Phone:   phone,
		Conn:    conn,
		Created: time.Now(),
	}

	r.mu.Lock()
	entry := &pendingEntry{login: login}
	entry.timer = time.AfterFunc(r.ttl, func() { r.expire(handle) })
	r.entries[handle] = entry
	r.mu.Unlock()

	return handle
}

// Take removes and returns the pending login for handle. The caller becomes
// the owner of the login's connection.
func (r *Registry) Take(handle string) (*PendingLogin, bool) {
	r.mu.Lock()
	entry, ok := r.entries[handle]
	if ok {
		delete(r.entries, handle)
		entry.timer.Stop()
	}
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	return entry.login, true
}

// Restore puts a taken pending login back under its original handle, keeping
// the original deadline: the eviction timer is re-armed with whatever time
// the login had left. A login whose deadline has already passed is closed
// instead.
func (r *Registry) Restore(login *PendingLogin) {
	remaining := r.ttl - time.Since(login.Created)
	if remaining <= 0 {
		r.logger.Warn("pending login expired",
			zap.String("phone", login.Phone),
			zap.Duration("age", time.Since(login.Created)))
		r.closeConn(login)
		return
	}

	r.mu.Lock()
	entry := &pendingEntry{login: login}
	entry.timer = time.AfterFunc(remaining, func() { r.expire(login.Handle) })
	r.entries[login.Handle] = entry
	r.mu.Unlock()
}

// Len reports the number of pending logins.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close evicts every pending login and closes its connection.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*pendingEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		entry.timer.Stop()
		r.closeConn(entry.login)
	}
}

func (r *Registry) expire(handle string) {
	r.mu.Lock()
	entry, ok := r.entries[handle]
	if ok {
		delete(r.entries, handle)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.logger.Warn("pending login expired",
		zap.String("phone", entry.login.Phone),
		zap.Duration("age", time.Since(entry.login.Created)))
	r.closeConn(entry.login)
}

func (r *Registry) closeConn(login *PendingLogin) {
	if err := login.Conn.Close(); err != nil {
		r.logger.Warn("closing pending connection",
			zap.String("phone", login.Phone), zap.Error(err))
	}
}
