package metrics

import "sync/atomic"

// Snapshot captures current in-memory counters.
type Snapshot struct {
	LoginSuccesses  uint64
	LoginFailures   uint64
	UsersRegistered uint64
	AuthCacheHits   uint64
	AuthCacheMisses uint64
	ItemsCreated    uint64
	AuditPublished  uint64
	AuditDropped    uint64
	AuditProcessed  uint64
	AuditFailed     uint64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	loginSuccesses  uint64
	loginFailures   uint64
	usersRegistered uint64
	authCacheHits   uint64
	authCacheMisses uint64
	itemsCreated    uint64
	auditPublished  uint64
	auditDropped    uint64
	auditProcessed  uint64
	auditFailed     uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		LoginSuccesses:  atomic.LoadUint64(&m.loginSuccesses),
		LoginFailures:   atomic.LoadUint64(&m.loginFailures),
		UsersRegistered: atomic.LoadUint64(&m.usersRegistered),
		AuthCacheHits:   atomic.LoadUint64(&m.authCacheHits),
		AuthCacheMisses: atomic.LoadUint64(&m.authCacheMisses),
		ItemsCreated:    atomic.LoadUint64(&m.itemsCreated),
		AuditPublished:  atomic.LoadUint64(&m.auditPublished),
		AuditDropped:    atomic.LoadUint64(&m.auditDropped),
		AuditProcessed:  atomic.LoadUint64(&m.auditProcessed),
		AuditFailed:     atomic.LoadUint64(&m.auditFailed),
	}
}

// IncLoginSuccess increments the successful login counter.
func (m *InMemoryRecorder) IncLoginSuccess() {
	atomic.AddUint64(&m.loginSuccesses, 1)
}

// IncLoginFailure increments the failed login counter.
func (m *InMemoryRecorder) IncLoginFailure() {
	atomic.AddUint64(&m.loginFailures, 1)
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	atomic.AddUint64(&m.usersRegistered, 1)
}

// IncAuthCacheHit increments the auth cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() {
	atomic.AddUint64(&m.authCacheHits, 1)
}

// IncAuthCacheMiss increments the auth cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() {
	atomic.AddUint64(&m.authCacheMisses, 1)
}

// IncItemCreated increments the item created counter.
func (m *InMemoryRecorder) IncItemCreated() {
	atomic.AddUint64(&m.itemsCreated, 1)
}

// IncAuditEventPublished records an audit publish outcome.
func (m *InMemoryRecorder) IncAuditEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.auditPublished, 1)
		return
	}
	atomic.AddUint64(&m.auditDropped, 1)
}

// IncAuditEventProcessed records an audit processing outcome.
func (m *InMemoryRecorder) IncAuditEventProcessed(status string) {
	if status == "success" {
		atomic.AddUint64(&m.auditProcessed, 1)
		return
	}
	atomic.AddUint64(&m.auditFailed, 1)
}

// ObserveAuditBatchSize is a no-op for the in-memory recorder.
func (m *InMemoryRecorder) ObserveAuditBatchSize(size int) {}
