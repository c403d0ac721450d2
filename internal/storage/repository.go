package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/faults"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listEnabledBlockchainsSQL = `SELECT
        id,
        name,
        chain_id,
        rpc_url,
        cache_manager_address,
        enabled
    FROM blockchains
    WHERE enabled = TRUE
    ORDER BY chain_id;`

	getBlockchainByChainIDSQL = `SELECT
        id,
        name,
        chain_id,
        rpc_url,
        cache_manager_address,
        enabled
    FROM blockchains
    WHERE chain_id = $1;`

	listActiveBidSafetyAlertsSQL = `SELECT
        a.id,
        a.value,
        a.contract_id,
        a.blockchain_id,
        c.address,
        b.bytecode_hash,
        b.size_bytes,
        b.last_bid,
        b.bid_timestamp,
        b.is_cached
    FROM alerts a
    JOIN contracts c ON c.id = a.contract_id
    JOIN bytecodes b ON b.id = c.bytecode_id
    WHERE a.type = 'BID_SAFETY'
      AND a.is_active = TRUE
      AND a.blockchain_id = $1
    ORDER BY a.id;`

	listActiveEvictionAlertIDsSQL = `SELECT a.id
    FROM alerts a
    JOIN contracts c ON c.id = a.contract_id
    JOIN bytecodes b ON b.id = c.bytecode_id
    WHERE a.type = 'EVICTION'
      AND a.is_active = TRUE
      AND a.blockchain_id = $1
      AND b.bytecode_hash = $2
    ORDER BY a.id;`

	latestDecayRateEventSQL = `SELECT event_data
    FROM blockchain_events
    WHERE blockchain_id = $1
      AND event_name = 'SetDecayRate'
      AND block_timestamp <= $2
    ORDER BY block_timestamp DESC, block_number DESC
    LIMIT 1;`

	latestStateDecayRateSQL = `SELECT decay_rate
    FROM blockchain_states
    WHERE blockchain_id = $1
    ORDER BY block_number DESC
    LIMIT 1;`

	countEvictionsSinceSQL = `SELECT COUNT(*)
    FROM blockchain_events
    WHERE blockchain_id = $1
      AND event_name = 'DeleteBid'
      AND block_timestamp >= $2;`

	getEventSQL = `SELECT
        id,
        blockchain_id,
        event_name,
        event_data,
        block_timestamp,
        block_number,
        contract_address
    FROM blockchain_events
    WHERE id = $1;`

	getContractWithBytecodeSQL = `SELECT
        c.id,
        c.address,
        b.bytecode_hash,
        b.size_bytes,
        b.last_bid,
        b.bid_timestamp,
        b.is_cached,
        b.blockchain_id
    FROM contracts c
    JOIN bytecodes b ON b.id = c.bytecode_id
    WHERE c.blockchain_id = $1
      AND lower(c.address) = lower($2);`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ChainStore lists monitored blockchains.
type ChainStore interface {
	ListEnabledBlockchains(ctx context.Context) ([]Blockchain, error)
	GetBlockchainByChainID(ctx context.Context, chainID int64) (Blockchain, error)
}

// AlertStore reads alert records with their contract context.
type AlertStore interface {
	ListActiveBidSafetyAlerts(ctx context.Context, blockchainID string) ([]BidSafetyAlert, error)
	ListActiveEvictionAlertIDsByBytecodeHash(ctx context.Context, blockchainID, bytecodeHash string) ([]string, error)
}

// ContractStore reads contract and bytecode state.
type ContractStore interface {
	GetContractWithBytecode(ctx context.Context, blockchainID, address string) (ContractState, error)
}

// EventStore reads persisted chain events.
type EventStore interface {
	GetEvent(ctx context.Context, eventID string) (EventRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates read access to the engine's externally-owned state.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListEnabledBlockchains returns every chain flagged for monitoring.
func (s *Store) ListEnabledBlockchains(ctx context.Context) ([]Blockchain, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEnabledBlockchainsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list enabled blockchains: %w", queryErr)
	}
	defer rows.Close()

	chains := make([]Blockchain, 0)
	for rows.Next() {
		var bc Blockchain
		if err := rows.Scan(&bc.ID, &bc.Name, &bc.ChainID, &bc.RPCURL, &bc.CacheManagerAddress, &bc.Enabled); err != nil {
			return nil, err
		}
		chains = append(chains, bc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return chains, nil
}

// GetBlockchainByChainID resolves a chain by its numeric chain id.
func (s *Store) GetBlockchainByChainID(ctx context.Context, chainID int64) (Blockchain, error) {
	pool, err := s.getPool()
	if err != nil {
		return Blockchain{}, err
	}

	var bc Blockchain
	row := pool.QueryRow(ctx, getBlockchainByChainIDSQL, chainID)
	if scanErr := row.Scan(&bc.ID, &bc.Name, &bc.ChainID, &bc.RPCURL, &bc.CacheManagerAddress, &bc.Enabled); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Blockchain{}, fmt.Errorf("%w: blockchain with chain id %d", faults.ErrNotFound, chainID)
		}
		return Blockchain{}, fmt.Errorf("get blockchain: %w", scanErr)
	}
	return bc, nil
}

// ListActiveBidSafetyAlerts returns active BID_SAFETY alerts on one chain
// joined with contract address and bytecode context.
func (s *Store) ListActiveBidSafetyAlerts(ctx context.Context, blockchainID string) ([]BidSafetyAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveBidSafetyAlertsSQL, blockchainID)
	if queryErr != nil {
		return nil, fmt.Errorf("list bid safety alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]BidSafetyAlert, 0)
	for rows.Next() {
		var (
			a          BidSafetyAlert
			lastBidStr string
		)
		if err := rows.Scan(
			&a.ID,
			&a.Value,
			&a.ContractID,
			&a.BlockchainID,
			&a.ContractAddress,
			&a.Bytecode.BytecodeHash,
			&a.Bytecode.SizeBytes,
			&lastBidStr,
			&a.Bytecode.BidTimestamp,
			&a.Bytecode.IsCached,
		); err != nil {
			return nil, err
		}
		a.Type = AlertBidSafety
		a.IsActive = true
		a.Bytecode.BlockchainID = a.BlockchainID

		lastBid, convErr := decimal.NewFromString(lastBidStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse last bid for alert %s: %w", a.ID, convErr)
		}
		a.Bytecode.LastBid = lastBid

		alerts = append(alerts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// ListActiveEvictionAlertIDsByBytecodeHash returns ids of active EVICTION
// alerts whose contract shares the given bytecode hash.
func (s *Store) ListActiveEvictionAlertIDsByBytecodeHash(ctx context.Context, blockchainID, bytecodeHash string) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveEvictionAlertIDsSQL, blockchainID, bytecodeHash)
	if queryErr != nil {
		return nil, fmt.Errorf("list eviction alerts: %w", queryErr)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

// LatestDecayRateEventBefore returns the rate encoded in the most recent
// SetDecayRate event at or before the given instant.
func (s *Store) LatestDecayRateEventBefore(ctx context.Context, blockchainID string, at time.Time) (decimal.Decimal, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return decimal.Zero, false, err
	}

	var raw []byte
	row := pool.QueryRow(ctx, latestDecayRateEventSQL, blockchainID, at)
	if scanErr := row.Scan(&raw); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("latest decay rate event: %w", scanErr)
	}

	data, decodeErr := decodeEventData(raw)
	if decodeErr != nil {
		return decimal.Zero, false, decodeErr
	}
	if len(data) == 0 {
		return decimal.Zero, false, fmt.Errorf("decay rate event has empty payload")
	}

	rate, convErr := decimal.NewFromString(data[0])
	if convErr != nil {
		return decimal.Zero, false, fmt.Errorf("parse decay rate %q: %w", data[0], convErr)
	}
	return rate, true, nil
}

// LatestStateDecayRate returns the rate from the newest periodic chain state
// snapshot.
func (s *Store) LatestStateDecayRate(ctx context.Context, blockchainID string) (decimal.Decimal, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return decimal.Zero, false, err
	}

	var rateStr string
	row := pool.QueryRow(ctx, latestStateDecayRateSQL, blockchainID)
	if scanErr := row.Scan(&rateStr); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("latest state decay rate: %w", scanErr)
	}

	rate, convErr := decimal.NewFromString(rateStr)
	if convErr != nil {
		return decimal.Zero, false, fmt.Errorf("parse state decay rate %q: %w", rateStr, convErr)
	}
	return rate, true, nil
}

// CountEvictionsSince counts DeleteBid events on one chain from the given
// instant onward.
func (s *Store) CountEvictionsSince(ctx context.Context, blockchainID string, since time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int64
	if scanErr := pool.QueryRow(ctx, countEvictionsSinceSQL, blockchainID, since).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count evictions: %w", scanErr)
	}
	return count, nil
}

// GetEvent loads one persisted chain event by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (EventRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return EventRecord{}, err
	}

	var (
		rec EventRecord
		raw []byte
	)
	row := pool.QueryRow(ctx, getEventSQL, eventID)
	if scanErr := row.Scan(
		&rec.ID,
		&rec.BlockchainID,
		&rec.EventName,
		&raw,
		&rec.BlockTimestamp,
		&rec.BlockNumber,
		&rec.ContractAddress,
	); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return EventRecord{}, fmt.Errorf("%w: event %s", faults.ErrNotFound, eventID)
		}
		return EventRecord{}, fmt.Errorf("get event: %w", scanErr)
	}

	data, decodeErr := decodeEventData(raw)
	if decodeErr != nil {
		return EventRecord{}, fmt.Errorf("event %s: %w", eventID, decodeErr)
	}
	rec.EventData = data
	return rec, nil
}

// GetContractWithBytecode loads a contract and its bytecode state by address.
func (s *Store) GetContractWithBytecode(ctx context.Context, blockchainID, address string) (ContractState, error) {
	pool, err := s.getPool()
	if err != nil {
		return ContractState{}, err
	}

	var (
		cs         ContractState
		lastBidStr string
	)
	row := pool.QueryRow(ctx, getContractWithBytecodeSQL, blockchainID, address)
	if scanErr := row.Scan(
		&cs.ID,
		&cs.Address,
		&cs.Bytecode.BytecodeHash,
		&cs.Bytecode.SizeBytes,
		&lastBidStr,
		&cs.Bytecode.BidTimestamp,
		&cs.Bytecode.IsCached,
		&cs.Bytecode.BlockchainID,
	); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return ContractState{}, fmt.Errorf("%w: contract %s on blockchain %s", faults.ErrNotFound, address, blockchainID)
		}
		return ContractState{}, fmt.Errorf("get contract: %w", scanErr)
	}

	lastBid, convErr := decimal.NewFromString(lastBidStr)
	if convErr != nil {
		return ContractState{}, fmt.Errorf("parse last bid for contract %s: %w", address, convErr)
	}
	cs.Bytecode.LastBid = lastBid
	return cs, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func. Used to keep concurrent service instances from sweeping the
// same alerts.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// decodeEventData unpacks a jsonb event argument array into strings. Numeric
// arguments keep their exact decimal text.
func decodeEventData(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var values []json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode event data: %w", err)
	}

	data := make([]string, 0, len(values))
	for _, v := range values {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			data = append(data, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			data = append(data, n.String())
			continue
		}
		data = append(data, string(v))
	}
	return data, nil
}

var (
	_ ChainStore     = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ ContractStore  = (*Store)(nil)
	_ EventStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
