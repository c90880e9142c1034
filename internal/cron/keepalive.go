// Package cron hosts the recurring keep-alive probes that stop the hosting
// provider from suspending the idle database connection. Probe failures are
// logged and absorbed; they exist for monitoring and must never take the
// process down or bubble into request handling.
package cron

import (
	"context"
	"net/http"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/go-co-op/gocron/v2"

	"github.com/andr3so7/folio/config"
)

const (
	JobDatabaseKeepAlive = "database-keepalive"
	JobHealthCheck       = "health-check"
)

const probeTimeout = 30 * time.Second

// JobStatus describes one scheduled task in the health payload.
type JobStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

// Prober is the lightweight store liveness check the tasks invoke.
type Prober interface {
	Count(ctx context.Context) (int64, error)
}

// KeepAlive owns the process's scheduled probes. Exactly one instance is
// created during boot and injected wherever job status is reported. All
// tasks share one scheduler; each firing is dispatched on its own goroutine
// so a slow probe never delays the other task.
type KeepAlive struct {
	scheduler gocron.Scheduler
	probe     Prober
	baseURL   string
	client    *http.Client

	mu      sync.Mutex
	running map[string]bool
}

func NewKeepAlive(probe Prober, cfg config.KeepAliveConfiguration) (*KeepAlive, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "cron: failed to create scheduler")
	}

	k := &KeepAlive{
		scheduler: s,
		probe:     probe,
		baseURL:   cfg.BaseURL,
		client:    &http.Client{Timeout: probeTimeout},
		running:   make(map[string]bool),
	}

	if _, err := s.NewJob(
		gocron.DurationJob(cfg.DatabaseInterval),
		gocron.NewTask(k.runDatabaseKeepAlive),
		gocron.WithName(JobDatabaseKeepAlive),
	); err != nil {
		return nil, errors.Wrap(err, "cron: failed to schedule database keep-alive")
	}
	if _, err := s.NewJob(
		gocron.DurationJob(cfg.HealthInterval),
		gocron.NewTask(k.runHealthCheck),
		gocron.WithName(JobHealthCheck),
	); err != nil {
		return nil, errors.Wrap(err, "cron: failed to schedule health check")
	}
	return k, nil
}

// Start begins firing the scheduled tasks.
func (k *KeepAlive) Start() {
	k.scheduler.Start()
	k.mu.Lock()
	k.running[JobDatabaseKeepAlive] = true
	k.running[JobHealthCheck] = true
	k.mu.Unlock()
	log.WithFields(log.Fields{
		"jobs": []string{JobDatabaseKeepAlive, JobHealthCheck},
	}).Info("cron: keep-alive jobs started")
}

// Stop cancels all future firings. A firing already in flight is allowed to
// finish.
func (k *KeepAlive) Stop() error {
	k.mu.Lock()
	k.running[JobDatabaseKeepAlive] = false
	k.running[JobHealthCheck] = false
	k.mu.Unlock()
	if err := k.scheduler.Shutdown(); err != nil {
		return errors.Wrap(err, "cron: failed to shut down scheduler")
	}
	log.Info("cron: keep-alive jobs stopped")
	return nil
}

// Jobs reports the status of every scheduled task for the health endpoint.
func (k *KeepAlive) Jobs() []JobStatus {
	k.mu.Lock()
	defer k.mu.Unlock()
	return []JobStatus{
		{Name: JobDatabaseKeepAlive, Running: k.running[JobDatabaseKeepAlive]},
		{Name: JobHealthCheck, Running: k.running[JobHealthCheck]},
	}
}

// runDatabaseKeepAlive pings the database directly and then the public
// modules endpoint. Both probes are attempted regardless of the other's
// outcome; a partial failure is logged and swallowed.
func (k *KeepAlive) runDatabaseKeepAlive() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	dbOK := k.pingDatabase(ctx)
	endpointOK := k.pingModulesEndpoint(ctx)

	status := "SUCCESS"
	if !dbOK || !endpointOK {
		status = "PARTIAL_FAILURE"
	}
	log.WithFields(log.Fields{
		"status":        status,
		"db_ping":       dbOK,
		"endpoint_ping": endpointOK,
	}).Info("cron: database keep-alive completed")
}

// runHealthCheck performs the lighter recurring database check, warning
// only when the connection looks unhealthy.
func (k *KeepAlive) runHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if !k.pingDatabase(ctx) {
		log.Warn("cron: health check detected a database connection issue")
	}
}

func (k *KeepAlive) pingDatabase(ctx context.Context) bool {
	n, err := k.probe.Count(ctx)
	if err != nil {
		log.WithError(err).Error("cron: database ping failed")
		return false
	}
	log.WithField("modules", n).Debug("cron: database ping successful")
	return true
}

func (k *KeepAlive) pingModulesEndpoint(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/modules", nil)
	if err != nil {
		log.WithError(err).Error("cron: failed to build modules endpoint request")
		return false
	}
	res, err := k.client.Do(req)
	if err != nil {
		log.WithError(err).Error("cron: modules endpoint ping failed")
		return false
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		log.WithField("status", res.StatusCode).Error("cron: modules endpoint returned unexpected status")
		return false
	}
	log.Debug("cron: modules endpoint ping successful")
	return true
}
