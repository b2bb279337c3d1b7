package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"crmsync/internal/models"
	"crmsync/internal/registry"
	"crmsync/internal/remote"
	"crmsync/internal/repository"
)

const (
	HealthStatusHealthy = "healthy"
	HealthStatusWarning = "warning"
	HealthStatusError   = "error"
	HealthStatusUnknown = "unknown"

	defaultHealthInterval = 5 * time.Minute
	slowResponseThreshold = 10 * time.Second
)

// HealthMetrics is the measurement snapshot behind one health evaluation.
type HealthMetrics struct {
	Connected      bool       `json:"connected"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	HealthScore    int        `json:"health_score"`
	SuccessRate    float64    `json:"success_rate"`
	RecentSyncs    int64      `json:"recent_syncs"`
	Failed24h      int64      `json:"failed_24h"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty"`
}

// HealthStatus is the evaluated health of one integration. Entries live in
// the monitor's in-memory map and are rebuilt on every tick.
type HealthStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	CheckedAt time.Time     `json:"checked_at"`
	Metrics   HealthMetrics `json:"metrics"`
}

type HealthSummary struct {
	Total            int     `json:"total"`
	Healthy          int     `json:"healthy"`
	Warning          int     `json:"warning"`
	Error            int     `json:"error"`
	HealthPercentage float64 `json:"health_percentage"`
}

type HealthReport struct {
	Timestamp time.Time               `json:"timestamp"`
	Summary   HealthSummary           `json:"summary"`
	Details   map[string]HealthStatus `json:"details"`
}

// HealthMonitor periodically probes every integration and scores its health.
// One long-lived instance is constructed at process start; Start launches the
// tick loop and Stop tears it down.
type HealthMonitor struct {
	Store    repository.Store
	Registry *registry.Registry
	Logger   *zap.Logger
	Interval time.Duration

	mu       sync.Mutex
	statuses map[string]HealthStatus

	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

func NewHealthMonitor(store repository.Store, reg *registry.Registry, logger *zap.Logger, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthMonitor{
		Store:    store,
		Registry: reg,
		Logger:   logger,
		Interval: interval,
		statuses: map[string]HealthStatus{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs an immediate check and then ticks on the configured period.
func (m *HealthMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		m.CheckAll(ctx)
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckAll(ctx)
			}
		}
	}()
	if m.Logger != nil {
		m.Logger.Info("health monitor started", zap.Duration("interval", m.Interval))
	}
}

func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	if m.Logger != nil {
		m.Logger.Info("health monitor stopped")
	}
}

// CheckAll probes every integration concurrently with all-settled semantics:
// one integration's failure never aborts the others.
func (m *HealthMonitor) CheckAll(ctx context.Context) HealthReport {
	now := m.now()
	report := HealthReport{Timestamp: now, Details: map[string]HealthStatus{}}

	integrations, err := m.Store.ListIntegrations(ctx)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("health check could not list integrations", zap.Error(err))
		}
		return report
	}

	type keyed struct {
		id     string
		status HealthStatus
	}
	results := make(chan keyed, len(integrations))
	var wg sync.WaitGroup
	for i := range integrations {
		integration := integrations[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results <- keyed{id: integration.ID, status: HealthStatus{
						Status:    HealthStatusError,
						Message:   fmt.Sprintf("health check panicked: %v", r),
						CheckedAt: m.now(),
					}}
				}
			}()
			results <- keyed{id: integration.ID, status: m.CheckOne(ctx, &integration)}
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		report.Details[r.id] = r.status
		report.Summary.Total++
		switch r.status.Status {
		case HealthStatusHealthy:
			report.Summary.Healthy++
		case HealthStatusWarning:
			report.Summary.Warning++
		case HealthStatusError:
			report.Summary.Error++
		}
	}
	if report.Summary.Total > 0 {
		report.Summary.HealthPercentage = float64(report.Summary.Healthy) / float64(report.Summary.Total) * 100
	}

	m.mu.Lock()
	m.statuses = report.Details
	m.mu.Unlock()

	if report.Summary.Warning > 0 || report.Summary.Error > 0 {
		if m.Logger != nil {
			m.Logger.Warn("integration health degraded",
				zap.Int("total", report.Summary.Total),
				zap.Int("warning", report.Summary.Warning),
				zap.Int("error", report.Summary.Error),
			)
		}
	}
	return report
}

// CheckOne probes one integration's connectivity, folds in rolling sync
// statistics, and derives a scored status. Status transitions that enter or
// leave warning/error are written back to the integration.
func (m *HealthMonitor) CheckOne(ctx context.Context, integration *models.Integration) HealthStatus {
	now := m.now()
	metrics := HealthMetrics{}

	client, err := m.Registry.Create(integration.Platform, clientConfig(integration))
	if err != nil {
		status := HealthStatus{
			Status:    HealthStatusError,
			Message:   err.Error(),
			CheckedAt: now,
			Metrics:   metrics,
		}
		m.persistTransition(ctx, integration, status)
		return status
	}

	probeStart := m.now()
	probeErr := client.TestConnection(ctx)
	responseTime := m.now().Sub(probeStart)
	metrics.Connected = probeErr == nil
	metrics.ResponseTimeMs = responseTime.Milliseconds()

	stats, err := m.Store.RollingSyncStats(ctx, integration.ID, now)
	if err != nil && m.Logger != nil {
		m.Logger.Warn("rolling sync stats unavailable",
			zap.String("integration_id", integration.ID),
			zap.Error(err),
		)
	}
	metrics.RecentSyncs = stats.RecentCount
	metrics.Failed24h = stats.Failed24h
	metrics.LastSuccessAt = stats.LastSuccessAt
	metrics.SuccessRate = successRate(stats.RecentCount, stats.Failed24h)
	metrics.HealthScore = healthScore(metrics.Connected, responseTime, metrics.SuccessRate, stats.LastSuccessAt, now)

	status := HealthStatus{CheckedAt: now, Metrics: metrics}
	switch {
	case !metrics.Connected:
		status.Status = HealthStatusError
		status.Message = "connectivity probe failed"
		if probeErr != nil {
			status.Message = remote.Classify(probeErr).Message
		}
	case metrics.HealthScore < 50:
		status.Status = HealthStatusWarning
		status.Message = fmt.Sprintf("health score %d below threshold", metrics.HealthScore)
	case responseTime > slowResponseThreshold:
		status.Status = HealthStatusWarning
		status.Message = fmt.Sprintf("slow response: %dms", metrics.ResponseTimeMs)
	default:
		status.Status = HealthStatusHealthy
		status.Message = "ok"
	}

	m.persistTransition(ctx, integration, status)
	return status
}

// Snapshot returns a copy of the in-memory status map.
func (m *HealthMonitor) Snapshot() map[string]HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]HealthStatus, len(m.statuses))
	for k, v := range m.statuses {
		out[k] = v
	}
	return out
}

// persistTransition writes the integration status back only when the check
// meaningfully changes it: entering or leaving warning/error. Recovery
// restores active and clears the message.
func (m *HealthMonitor) persistTransition(ctx context.Context, integration *models.Integration, status HealthStatus) {
	var target string
	switch status.Status {
	case HealthStatusError:
		target = models.IntegrationStatusError
	case HealthStatusWarning:
		target = models.IntegrationStatusWarning
	default:
		target = models.IntegrationStatusActive
	}
	if integration.Status == target {
		return
	}
	wasDegraded := integration.Status == models.IntegrationStatusError || integration.Status == models.IntegrationStatusWarning
	nowDegraded := target == models.IntegrationStatusError || target == models.IntegrationStatusWarning
	if !wasDegraded && !nowDegraded {
		return
	}

	var message *string
	if nowDegraded {
		message = &status.Message
	}
	if err := m.Store.UpdateIntegrationStatus(ctx, integration.ID, target, message); err != nil {
		if m.Logger != nil {
			m.Logger.Warn("status transition write failed",
				zap.String("integration_id", integration.ID),
				zap.String("status", target),
				zap.Error(err),
			)
		}
		return
	}
	if m.Logger != nil {
		m.Logger.Info("integration status changed",
			zap.String("integration_id", integration.ID),
			zap.String("from", integration.Status),
			zap.String("to", target),
		)
	}
}

// successRate is 100 when there are no recent syncs: an idle integration is
// not penalized for never having run.
func successRate(recent, failed int64) float64 {
	if recent <= 0 {
		return 100
	}
	rate := float64(recent-failed) / float64(recent) * 100
	if rate < 0 {
		return 0
	}
	return rate
}

// healthScore is the 0-100 weighted composite: connectivity 40, latency up
// to 20, success rate up to 25, sync recency up to 15.
func healthScore(connected bool, responseTime time.Duration, rate float64, lastSuccess *time.Time, now time.Time) int {
	score := 0
	if connected {
		score += 40
	}

	switch {
	case responseTime < time.Second:
		score += 20
	case responseTime < 5*time.Second:
		score += 15
	case responseTime < 10*time.Second:
		score += 10
	}

	switch {
	case rate >= 95:
		score += 25
	case rate >= 80:
		score += 20
	case rate >= 60:
		score += 15
	case rate >= 40:
		score += 10
	}

	if lastSuccess != nil {
		age := now.Sub(*lastSuccess)
		switch {
		case age < time.Hour:
			score += 15
		case age < 6*time.Hour:
			score += 12
		case age < 24*time.Hour:
			score += 8
		case age < 72*time.Hour:
			score += 4
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
