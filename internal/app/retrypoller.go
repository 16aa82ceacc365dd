package app

import (
	"context"
	"sync"
	"time"

	"github.com/his-sync/replicator/internal/domain/job"
	"github.com/his-sync/replicator/internal/lifecycle"
	"github.com/his-sync/replicator/internal/orchestrator"
	"github.com/his-sync/replicator/internal/store"
	"github.com/his-sync/replicator/pkg/logger"
)

// retryPollInterval is how often the poller scans for eligible retries.
const retryPollInterval = 30 * time.Second

// retryPoller is a system.Service that periodically replays FAILED jobs
// whose retry backoff has elapsed (spec.md §4.4), grounded on the teacher's
// BaseService worker-goroutine-with-stop-channel pattern
// (infrastructure/service/base.go).
type retryPoller struct {
	jobs  store.JobStore
	orch  *orchestrator.Orchestrator
	log   *logger.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newRetryPoller(jobs store.JobStore, orch *orchestrator.Orchestrator, log *logger.Logger) *retryPoller {
	return &retryPoller{
		jobs:   jobs,
		orch:   orch,
		log:    log,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (p *retryPoller) Name() string { return "retry-poller" }

func (p *retryPoller) Start(ctx context.Context) error {
	go p.run(ctx)
	return nil
}

func (p *retryPoller) Stop(context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.done
	return nil
}

func (p *retryPoller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(retryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *retryPoller) pollOnce(ctx context.Context) {
	candidates, err := p.jobs.ListRetryable(ctx)
	if err != nil {
		p.log.WithError(err).Warn("retry poller: list retryable jobs failed")
		return
	}

	for _, j := range candidates {
		p.retryOne(ctx, j)
	}
}

func (p *retryPoller) retryOne(ctx context.Context, j job.Job) {
	entry := p.log.WithField("job_id", j.ID).WithField("configuration_id", j.ConfigurationID)

	if !j.EligibleForRetry() {
		return
	}
	if !j.NextRetryAt.IsZero() && time.Now().Before(j.NextRetryAt) {
		return
	}

	if err := p.orch.RetryJob(ctx, j); err != nil {
		entry.WithError(err).Warn("retry poller: replay failed")
		// RetryJob already persisted the failed/finalized job; reload it so
		// the backoff update below does not clobber that state.
		current, reloadErr := p.jobs.GetJob(ctx, j.ID)
		if reloadErr != nil {
			entry.WithError(reloadErr).Warn("retry poller: could not reload job after failed replay")
			return
		}
		backoff := lifecycle.RetryBackoff(current.RetryCount)
		current.NextRetryAt = time.Now().Add(backoff)
		if current.RetryCount >= current.MaxRetries {
			current.Status = job.StatusFailedPermanently
		}
		if _, updateErr := p.jobs.UpdateJob(ctx, current); updateErr != nil {
			entry.WithError(updateErr).Warn("retry poller: could not persist backoff")
		}
		return
	}
	entry.Info("retry poller: replay succeeded")
}
