package app

import (
	"net/http"
	"sync"

	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/internal/hisapi"
	"github.com/his-sync/replicator/internal/orchestrator"
	"github.com/his-sync/replicator/pkg/logger"
)

// clientPool builds and reuses one *hisapi.Client (and its underlying
// *http.Client connection pool) per Instance, per spec.md §5 ("Per-
// destination HTTP clients should be reused").
type clientPool struct {
	mu      sync.Mutex
	clients map[string]*hisapi.Client
	log     *logger.Logger
}

func newClientPool(log *logger.Logger) *clientPool {
	return &clientPool{clients: make(map[string]*hisapi.Client), log: log}
}

// factory returns an orchestrator.ClientFactory backed by this pool.
func (p *clientPool) factory() orchestrator.ClientFactory {
	return func(inst instance.Instance) orchestrator.HISClient {
		return p.get(inst)
	}
}

func (p *clientPool) get(inst instance.Instance) *hisapi.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[inst.ID]; ok {
		return client
	}
	client := hisapi.New(inst, &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}, p.log)
	p.clients[inst.ID] = client
	return client
}

// invalidate drops a cached client so the next get rebuilds it, e.g. after
// an Instance's credentials or base URL change.
func (p *clientPool) invalidate(instanceID string) {
	p.mu.Lock()
	delete(p.clients, instanceID)
	p.mu.Unlock()
}
