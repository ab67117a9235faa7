package handlers

// Metrics receives handler-level outcomes that the generic HTTP middleware
// cannot see.
type Metrics interface {
	ObserveAuth(op, result string)
	ObserveListCache(hit bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAuth(string, string) {}
func (noopMetrics) ObserveListCache(bool) {}
