package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Blockchain is a monitored chain with its cache manager deployment. The
// enabled flag and connection details are owned by the provisioning layer;
// this engine only reads them.
type Blockchain struct {
	ID                  string
	Name                string
	ChainID             int64
	RPCURL              string
	CacheManagerAddress string
	Enabled             bool
}

// AlertType enumerates user-configurable alert conditions.
type AlertType string

const (
	AlertEviction  AlertType = "EVICTION"
	AlertNoGas     AlertType = "NO_GAS"
	AlertLowGas    AlertType = "LOW_GAS"
	AlertBidSafety AlertType = "BID_SAFETY"
)

// Alert is a user-defined alert record, created by the CRUD layer and
// read-only here. Value is a percentage margin carried as a decimal string
// with two implied input decimals.
type Alert struct {
	ID           string
	Type         AlertType
	Value        string
	IsActive     bool
	ContractID   string
	BlockchainID string
}

// BytecodeState mirrors the event-ingestion pipeline's view of one cached
// bytecode. LastBid is the raw bid as placed; the effective bid is derived.
type BytecodeState struct {
	BytecodeHash string
	SizeBytes    uint64
	LastBid      decimal.Decimal
	BidTimestamp time.Time
	IsCached     bool
	BlockchainID string
}

// BidSafetyAlert joins a BID_SAFETY alert with the contract and bytecode
// context the evaluator needs.
type BidSafetyAlert struct {
	Alert
	ContractAddress string
	Bytecode        BytecodeState
}

// ContractState joins a contract with its bytecode record.
type ContractState struct {
	ID       string
	Address  string
	Bytecode BytecodeState
}

// EventRecord is one persisted cache manager event. EventData holds the
// decoded event arguments in emission order, stringified.
type EventRecord struct {
	ID              string
	BlockchainID    string
	EventName       string
	EventData       []string
	BlockTimestamp  time.Time
	BlockNumber     int64
	ContractAddress string
}
