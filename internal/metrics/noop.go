package metrics

// NoopRecorder discards all metric events.
type NoopRecorder struct{}

// NewNoop returns a Recorder that does nothing.
func NewNoop() *NoopRecorder {
	return &NoopRecorder{}
}

func (NoopRecorder) IncLoginSuccess()                      {}
func (NoopRecorder) IncLoginFailure()                      {}
func (NoopRecorder) IncUserRegistered()                    {}
func (NoopRecorder) IncAuthCacheHit()                      {}
func (NoopRecorder) IncAuthCacheMiss()                     {}
func (NoopRecorder) IncItemCreated()                       {}
func (NoopRecorder) IncAuditEventPublished(status string)  {}
func (NoopRecorder) IncAuditEventProcessed(status string)  {}
func (NoopRecorder) ObserveAuditBatchSize(size int)        {}
