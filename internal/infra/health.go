package infra

import (
	"context"
	"time"
)

// Probe checks one backing service. A nil Ping means the service is not
// configured in this environment.
type Probe struct {
	Name string
	Ping func(ctx context.Context) error
}

const (
	StatusOK       = "ok"
	StatusDisabled = "disabled"
)

// CheckAll pings every probe in turn under a shared deadline. The status map
// holds "ok", "disabled" or the error text, keyed by probe name.
func CheckAll(ctx context.Context, timeout time.Duration, probes ...Probe) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status := make(map[string]string, len(probes))
	healthy := true
	for _, p := range probes {
		if p.Ping == nil {
			status[p.Name] = StatusDisabled
			continue
		}
		if err := p.Ping(ctx); err != nil {
			status[p.Name] = err.Error()
			healthy = false
			continue
		}
		status[p.Name] = StatusOK
	}
	return status, healthy
}
