package health

import (
	"context"
	"sync/atomic"
	"time"
)

// ProbeManager adds liveness and readiness state on top of Manager.
type ProbeManager struct {
	*Manager

	startTime  time.Time
	ready      atomic.Bool
	inShutdown atomic.Bool
	version    string
}

// NewProbeManager creates a probe manager reporting the given version.
func NewProbeManager(version string) *ProbeManager {
	return &ProbeManager{
		Manager:   NewManager(),
		startTime: time.Now(),
		version:   version,
	}
}

// MarkReady lets the readiness probe run its checks.
func (pm *ProbeManager) MarkReady() { pm.ready.Store(true) }

// MarkShutdown makes the readiness probe fail from now on.
func (pm *ProbeManager) MarkShutdown() { pm.inShutdown.Store(true) }

// ProbeResult is the body of a probe response.
type ProbeResult struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (pm *ProbeManager) result(status Status, checks map[string]*Result) *ProbeResult {
	return &ProbeResult{
		Status:    status,
		Version:   pm.version,
		Uptime:    time.Since(pm.startTime).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now(),
	}
}

// CheckLiveness only reports that the process responds. It is degraded
// while shutting down.
func (pm *ProbeManager) CheckLiveness(context.Context) *ProbeResult {
	if pm.inShutdown.Load() {
		return pm.result(StatusDegraded, nil)
	}
	return pm.result(StatusHealthy, nil)
}

// CheckReadiness runs the registered checks. It is unhealthy before
// MarkReady and after MarkShutdown.
func (pm *ProbeManager) CheckReadiness(ctx context.Context) *ProbeResult {
	if pm.inShutdown.Load() || !pm.ready.Load() {
		return pm.result(StatusUnhealthy, nil)
	}
	checks := pm.Check(ctx)
	return pm.result(OverallStatus(checks), checks)
}
