package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"gridLadder/internal/chain"
)

const aggregatorABIJSON = `[
  {"inputs": [], "name": "latestRoundData", "outputs": [
    {"internalType": "uint80", "name": "roundId", "type": "uint80"},
    {"internalType": "int256", "name": "answer", "type": "int256"},
    {"internalType": "uint256", "name": "startedAt", "type": "uint256"},
    {"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
    {"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
	aggregatorABIErr  error
)

func aggregatorABIInstance() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// ChainlinkFeed reads rounds from an on-chain aggregator contract.
type ChainlinkFeed struct {
	client  *chain.Client
	address common.Address

	mu       sync.Mutex
	decimals *uint8
}

// NewChainlinkFeed creates a feed bound to the aggregator address.
func NewChainlinkFeed(client *chain.Client, address common.Address) *ChainlinkFeed {
	return &ChainlinkFeed{client: client, address: address}
}

// LatestRound fetches latestRoundData plus the cached feed decimals.
func (f *ChainlinkFeed) LatestRound(ctx context.Context) (RoundData, error) {
	if f.client == nil {
		return RoundData{}, fmt.Errorf("chain client is nil")
	}

	parsed, err := aggregatorABIInstance()
	if err != nil {
		return RoundData{}, fmt.Errorf("parse aggregator abi: %w", err)
	}

	decimals, err := f.feedDecimals(ctx, parsed)
	if err != nil {
		return RoundData{}, err
	}

	values, err := f.call(ctx, parsed, "latestRoundData")
	if err != nil {
		return RoundData{}, err
	}
	if len(values) < 5 {
		return RoundData{}, fmt.Errorf("latestRoundData returned %d values", len(values))
	}

	roundID, err := asBigInt(values[0])
	if err != nil {
		return RoundData{}, fmt.Errorf("round id: %w", err)
	}
	answer, err := asBigInt(values[1])
	if err != nil {
		return RoundData{}, fmt.Errorf("answer: %w", err)
	}
	updatedAt, err := asBigInt(values[3])
	if err != nil {
		return RoundData{}, fmt.Errorf("updated at: %w", err)
	}
	answeredIn, err := asBigInt(values[4])
	if err != nil {
		return RoundData{}, fmt.Errorf("answered in round: %w", err)
	}

	return RoundData{
		RoundID:         roundID,
		Answer:          answer,
		UpdatedAt:       updatedAt.Uint64(),
		AnsweredInRound: answeredIn,
		Decimals:        decimals,
	}, nil
}

func (f *ChainlinkFeed) feedDecimals(ctx context.Context, parsed abi.ABI) (uint8, error) {
	f.mu.Lock()
	cached := f.decimals
	f.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	values, err := f.call(ctx, parsed, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}

	f.mu.Lock()
	f.decimals = &decimals
	f.mu.Unlock()
	return decimals, nil
}

func (f *ChainlinkFeed) call(ctx context.Context, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &f.address, Data: data}
	resp, err := f.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
