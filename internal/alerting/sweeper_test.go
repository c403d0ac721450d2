package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/chain"
	"bid-risk-alerts/internal/decay"
	"bid-risk-alerts/internal/storage"
)

type fakeSource struct {
	chains    []storage.Blockchain
	chainsErr error
	alerts    map[string][]storage.BidSafetyAlert
	alertsErr error
}

func (f *fakeSource) ListEnabledBlockchains(ctx context.Context) ([]storage.Blockchain, error) {
	return f.chains, f.chainsErr
}

func (f *fakeSource) ListActiveBidSafetyAlerts(ctx context.Context, blockchainID string) ([]storage.BidSafetyAlert, error) {
	if f.alertsErr != nil {
		return nil, f.alertsErr
	}
	return f.alerts[blockchainID], nil
}

type fakePool struct {
	reader chain.Reader
	err    error
}

func (f *fakePool) Reader(ep chain.Endpoint) (chain.Reader, error) {
	return f.reader, f.err
}

type recordingQueue struct {
	enqueued []string
	failFor  map[string]bool
}

func (r *recordingQueue) EnqueueAlertTriggered(ctx context.Context, alertID string) error {
	if r.failFor[alertID] {
		return errors.New("queue write failed")
	}
	r.enqueued = append(r.enqueued, alertID)
	return nil
}

// perAddressReader fails lookups for addresses in the fail set and otherwise
// serves a fixed minimum bid.
type perAddressReader struct {
	minBid decimal.Decimal
	fail   map[string]bool
}

func (p *perAddressReader) MinBidForSize(ctx context.Context, sizeBytes uint64) (decimal.Decimal, error) {
	return p.minBid, nil
}

func (p *perAddressReader) MinBidForAddress(ctx context.Context, address string) (decimal.Decimal, error) {
	if p.fail[address] {
		return decimal.Zero, errors.New("rpc unreachable")
	}
	return p.minBid, nil
}

func (p *perAddressReader) DecayRate(ctx context.Context) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (p *perAddressReader) CacheCapacityBytes(ctx context.Context) (uint64, error) { return 0, nil }

func (p *perAddressReader) UsedCacheBytes(ctx context.Context) (uint64, error) { return 0, nil }

func (p *perAddressReader) ListCacheEntries(ctx context.Context) ([]chain.CacheEntry, error) {
	return nil, nil
}

func sweepAlert(id, address string, lastBid int64) storage.BidSafetyAlert {
	a := bidSafetyAlert(id, "5", lastBid, time.Now())
	a.ContractAddress = address
	return a
}

func newSweeper(source AlertSource, pool ReaderPool, jobs *recordingQueue) *Sweeper {
	logger := zerolog.Nop()
	eval := NewEvaluator(decay.NewResolver(zeroRates{}, logger), logger)
	return NewSweeper(source, pool, eval, jobs, nil, nil, SweeperOptions{}, logger)
}

func TestSweepEnqueuesBreachedAlerts(t *testing.T) {
	source := &fakeSource{
		chains: []storage.Blockchain{{ID: "chain-1", Name: "arbitrum-one", RPCURL: "http://rpc", CacheManagerAddress: "0xcm"}},
		alerts: map[string][]storage.BidSafetyAlert{
			"chain-1": {
				sweepAlert("breached", "0x01", 900),
				sweepAlert("safe", "0x02", 2000),
			},
		},
	}
	jobs := &recordingQueue{}
	s := newSweeper(source, &fakePool{reader: &perAddressReader{minBid: decimal.NewFromInt(1000)}}, jobs)

	if err := s.Sweep(context.Background(), time.Now()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(jobs.enqueued) != 1 || jobs.enqueued[0] != "breached" {
		t.Fatalf("enqueued = %v, want exactly [breached]", jobs.enqueued)
	}
}

func TestSweepIsolatesFailingAlert(t *testing.T) {
	source := &fakeSource{
		chains: []storage.Blockchain{{ID: "chain-1", Name: "arbitrum-one", RPCURL: "http://rpc", CacheManagerAddress: "0xcm"}},
		alerts: map[string][]storage.BidSafetyAlert{
			"chain-1": {
				sweepAlert("a", "0xbad", 900),
				sweepAlert("b", "0x02", 900),
				sweepAlert("c", "0x03", 900),
			},
		},
	}
	reader := &perAddressReader{
		minBid: decimal.NewFromInt(1000),
		fail:   map[string]bool{"0xbad": true},
	}
	jobs := &recordingQueue{}
	s := newSweeper(source, &fakePool{reader: reader}, jobs)

	if err := s.Sweep(context.Background(), time.Now()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(jobs.enqueued) != 2 {
		t.Fatalf("enqueued = %v, want b and c despite a failing", jobs.enqueued)
	}
}

func TestSweepIsolatesFailingChain(t *testing.T) {
	source := &fakeSource{
		chains: []storage.Blockchain{
			{ID: "chain-bad", Name: "broken", RPCURL: "http://rpc", CacheManagerAddress: "0xcm"},
			{ID: "chain-1", Name: "arbitrum-one", RPCURL: "http://rpc", CacheManagerAddress: "0xcm"},
		},
		alerts: map[string][]storage.BidSafetyAlert{
			"chain-bad": {sweepAlert("x", "0x01", 900)},
			"chain-1":   {sweepAlert("y", "0x02", 900)},
		},
	}
	// the pool fails for every chain the first call, succeed after
	pool := &flakyPool{
		failFor: "chain-bad",
		reader:  &perAddressReader{minBid: decimal.NewFromInt(1000)},
	}
	jobs := &recordingQueue{}
	s := newSweeper(source, pool, jobs)

	if err := s.Sweep(context.Background(), time.Now()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(jobs.enqueued) != 1 || jobs.enqueued[0] != "y" {
		t.Fatalf("enqueued = %v, want [y] from the healthy chain", jobs.enqueued)
	}
}

type flakyPool struct {
	failFor string
	reader  chain.Reader
}

func (f *flakyPool) Reader(ep chain.Endpoint) (chain.Reader, error) {
	if ep.BlockchainID == f.failFor {
		return nil, errors.New("dial failed")
	}
	return f.reader, nil
}

func TestSweepAbandonsTickWhenChainsUnlistable(t *testing.T) {
	source := &fakeSource{chainsErr: errors.New("db down")}
	s := newSweeper(source, &fakePool{}, &recordingQueue{})

	if err := s.Sweep(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error when chains cannot be listed")
	}
}

func TestSweepSingleFlight(t *testing.T) {
	source := &fakeSource{
		chains: []storage.Blockchain{{ID: "chain-1", Name: "arbitrum-one", RPCURL: "http://rpc", CacheManagerAddress: "0xcm"}},
		alerts: map[string][]storage.BidSafetyAlert{"chain-1": {sweepAlert("a", "0x01", 900)}},
	}
	jobs := &recordingQueue{}
	s := newSweeper(source, &fakePool{reader: &perAddressReader{minBid: decimal.NewFromInt(1000)}}, jobs)

	// simulate a sweep still in progress
	s.running.Store(true)
	if err := s.Sweep(context.Background(), time.Now()); err != nil {
		t.Fatalf("overlapping Sweep should skip, not fail: %v", err)
	}
	if len(jobs.enqueued) != 0 {
		t.Fatalf("overlapping sweep must not evaluate alerts, enqueued %v", jobs.enqueued)
	}

	s.running.Store(false)
	if err := s.Sweep(context.Background(), time.Now()); err != nil {
		t.Fatalf("Sweep after release: %v", err)
	}
	if len(jobs.enqueued) != 1 {
		t.Fatalf("enqueued = %v, want one job once the guard clears", jobs.enqueued)
	}
}
