package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bid-risk-alerts/internal/faults"
)

// Endpoint identifies one chain's cache manager deployment.
type Endpoint struct {
	BlockchainID        string
	RPCURL              string
	CacheManagerAddress string
}

// Pool caches one cache manager client per blockchain. Handles are dialled on
// first use and torn down by Close on shutdown.
type Pool struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewPool constructs an empty connection pool.
func NewPool(timeout time.Duration, logger zerolog.Logger) *Pool {
	return &Pool{
		timeout: timeout,
		logger:  logger.With().Str("component", "chain_pool").Logger(),
		clients: make(map[string]*Client),
	}
}

// Reader returns the shared client for the endpoint's blockchain, creating it
// on first use.
func (p *Pool) Reader(ep Endpoint) (Reader, error) {
	if ep.BlockchainID == "" {
		return nil, fmt.Errorf("%w: endpoint is missing a blockchain id", faults.ErrInvalidInput)
	}
	if ep.RPCURL == "" || ep.CacheManagerAddress == "" {
		return nil, fmt.Errorf("%w: blockchain %s has no rpc url or cache manager address", faults.ErrInvalidInput, ep.BlockchainID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[ep.BlockchainID]; ok {
		return client, nil
	}

	client := NewClient(Options{
		RPCURL:              ep.RPCURL,
		CacheManagerAddress: ep.CacheManagerAddress,
		Timeout:             p.timeout,
	}, p.logger)
	p.clients[ep.BlockchainID] = client
	p.logger.Debug().Str("blockchain_id", ep.BlockchainID).Msg("created cache manager client")
	return client, nil
}

// Close releases every dialled connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, client := range p.clients {
		client.Close()
		delete(p.clients, id)
	}
}
