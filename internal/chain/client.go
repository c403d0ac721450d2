package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/faults"
)

// The getMinBid(address) overload lives in its own ABI blob so both variants
// keep the plain method name when parsed.
const (
	cacheManagerABIJSON = `[
{"inputs":[{"internalType":"uint64","name":"size","type":"uint64"}],"name":"getMinBid","outputs":[{"internalType":"uint192","name":"","type":"uint192"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decay","outputs":[{"internalType":"uint64","name":"","type":"uint64"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"cacheSize","outputs":[{"internalType":"uint64","name":"","type":"uint64"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"queueSize","outputs":[{"internalType":"uint64","name":"","type":"uint64"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getEntries","outputs":[{"components":[{"internalType":"bytes32","name":"code","type":"bytes32"},{"internalType":"uint64","name":"size","type":"uint64"},{"internalType":"uint192","name":"bid","type":"uint192"}],"internalType":"struct CacheManager.Entry[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"}
]`
	minBidByProgramABIJSON = `[
{"inputs":[{"internalType":"address","name":"program","type":"address"}],"name":"getMinBid","outputs":[{"internalType":"uint192","name":"","type":"uint192"}],"stateMutability":"view","type":"function"}
]`
)

var (
	cacheManagerABI    abi.ABI
	minBidByProgramABI abi.ABI
)

func init() {
	var err error
	cacheManagerABI, err = abi.JSON(strings.NewReader(cacheManagerABIJSON))
	if err != nil {
		panic("failed to parse cache manager ABI: " + err.Error())
	}
	minBidByProgramABI, err = abi.JSON(strings.NewReader(minBidByProgramABIJSON))
	if err != nil {
		panic("failed to parse getMinBid(address) ABI: " + err.Error())
	}
}

// Options parameterise a cache manager client.
type Options struct {
	RPCURL              string
	CacheManagerAddress string
	Timeout             time.Duration
}

// Client talks to one chain's cache manager over Ethereum RPC.
type Client struct {
	opts      Options
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewClient builds a cache manager client. The RPC connection is dialled
// lazily on first call.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	return &Client{opts: opts, logger: logger.With().Str("component", "cache_manager_client").Logger()}
}

// MinBidForSize implements Reader.
func (c *Client) MinBidForSize(ctx context.Context, sizeBytes uint64) (decimal.Decimal, error) {
	if sizeBytes == 0 {
		return decimal.Zero, fmt.Errorf("%w: code size must be greater than zero", faults.ErrInvalidInput)
	}
	outputs, err := c.call(ctx, cacheManagerABI, "getMinBid", sizeBytes)
	if err != nil {
		return decimal.Zero, err
	}
	return bigIntOutput(outputs, "getMinBid")
}

// MinBidForAddress implements Reader.
func (c *Client) MinBidForAddress(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("%w: malformed address %q", faults.ErrInvalidInput, address)
	}
	outputs, err := c.call(ctx, minBidByProgramABI, "getMinBid", common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, err
	}
	return bigIntOutput(outputs, "getMinBid")
}

// DecayRate implements Reader.
func (c *Client) DecayRate(ctx context.Context) (decimal.Decimal, error) {
	outputs, err := c.call(ctx, cacheManagerABI, "decay")
	if err != nil {
		return decimal.Zero, err
	}
	v, err := uint64Output(outputs, "decay")
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromUint64(v), nil
}

// CacheCapacityBytes implements Reader.
func (c *Client) CacheCapacityBytes(ctx context.Context) (uint64, error) {
	outputs, err := c.call(ctx, cacheManagerABI, "cacheSize")
	if err != nil {
		return 0, err
	}
	return uint64Output(outputs, "cacheSize")
}

// UsedCacheBytes implements Reader.
func (c *Client) UsedCacheBytes(ctx context.Context) (uint64, error) {
	outputs, err := c.call(ctx, cacheManagerABI, "queueSize")
	if err != nil {
		return 0, err
	}
	return uint64Output(outputs, "queueSize")
}

// ListCacheEntries implements Reader.
func (c *Client) ListCacheEntries(ctx context.Context) ([]CacheEntry, error) {
	outputs, err := c.call(ctx, cacheManagerABI, "getEntries")
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("%w: unexpected getEntries response", faults.ErrUpstreamUnavailable)
	}

	type rawEntry struct {
		Code [32]byte
		Size uint64
		Bid  *big.Int
	}
	raw := *abi.ConvertType(outputs[0], new([]rawEntry)).(*[]rawEntry)

	entries := make([]CacheEntry, 0, len(raw))
	for _, e := range raw {
		bid := decimal.Zero
		if e.Bid != nil {
			bid = decimal.NewFromBigInt(e.Bid, 0)
		}
		entries = append(entries, CacheEntry{
			CodeHash:  common.BytesToHash(e.Code[:]).Hex(),
			SizeBytes: e.Size,
			Bid:       bid,
		})
	}
	return entries, nil
}

// Close releases the underlying RPC connection if one was dialled.
func (c *Client) Close() {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

func (c *Client) call(ctx context.Context, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if c.opts.RPCURL == "" {
		return nil, errors.New("chain rpc url not configured")
	}
	if c.opts.CacheManagerAddress == "" {
		return nil, errors.New("cache manager address not configured")
	}

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", faults.ErrUpstreamUnavailable, c.opts.RPCURL, err)
	}

	payload, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	addr := common.HexToAddress(c.opts.CacheManagerAddress)
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: call %s: %v", faults.ErrUpstreamUnavailable, method, err)
	}

	outputs, err := contractABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", faults.ErrUpstreamUnavailable, method, err)
	}
	return outputs, nil
}

func (c *Client) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func bigIntOutput(outputs []interface{}, method string) (decimal.Decimal, error) {
	if len(outputs) != 1 {
		return decimal.Zero, fmt.Errorf("%w: unexpected %s response", faults.ErrUpstreamUnavailable, method)
	}
	v, ok := outputs[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: failed to decode %s output", faults.ErrUpstreamUnavailable, method)
	}
	return decimal.NewFromBigInt(v, 0), nil
}

func uint64Output(outputs []interface{}, method string) (uint64, error) {
	if len(outputs) != 1 {
		return 0, fmt.Errorf("%w: unexpected %s response", faults.ErrUpstreamUnavailable, method)
	}
	v, ok := outputs[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("%w: failed to decode %s output", faults.ErrUpstreamUnavailable, method)
	}
	return v, nil
}

var _ Reader = (*Client)(nil)
