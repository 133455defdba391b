package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/block"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
)

const (
	// logStepSize is the initial block span of one eth_getLogs call
	logStepSize = uint64(100_000)

	// filterTimeout bounds a whole paginated log query
	filterTimeout = 5 * time.Minute
)

// EthereumClient reads registry logs and turns them into registry events
//
//go:generate mockgen -source=client.go -destination=../../mocks/ethereum_client.go -package=mocks -mock_names=EthereumClient=MockEthereumClient
type EthereumClient interface {
	// ParseEventLog parses a registry log into an event, nil when the log is not a registry event
	ParseEventLog(ctx context.Context, vLog types.Log) (*domain.Event, error)

	// SubscribeFilterLogs subscribes to new logs
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)

	// FilterLogs retrieves historical logs in (block, index) order, paginating the block range
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	// EventTopics returns the signatures of every registry event
	EventTopics() []common.Hash

	// Close closes the connection
	Close()
}

type ethereumClient struct {
	chainID domain.Chain
	client  adapter.EthClient
	blocks  block.BlockProvider
	decoder *logDecoder
}

// NewClient creates a registry client. Block timestamps come from the block provider.
func NewClient(chainID domain.Chain, client adapter.EthClient, blocks block.BlockProvider) (EthereumClient, error) {
	decoder, err := newLogDecoder()
	if err != nil {
		return nil, err
	}
	return &ethereumClient{chainID: chainID, client: client, blocks: blocks, decoder: decoder}, nil
}

// SubscribeFilterLogs subscribes to filter logs
func (c *ethereumClient) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.client.SubscribeFilterLogs(ctx, query, ch)
}

// EventTopics returns the signatures of every registry event
func (c *ethereumClient) EventTopics() []common.Hash {
	return c.decoder.topics()
}

// FilterLogs pages through the block range to work around provider result limits
func (c *ethereumClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, filterTimeout)
	defer cancel()

	if query.BlockHash != nil {
		return c.client.FilterLogs(timeoutCtx, query)
	}

	fromBlock := big.NewInt(0)
	if query.FromBlock != nil {
		fromBlock = query.FromBlock
	}

	toBlock := query.ToBlock
	if toBlock == nil {
		header, err := c.client.HeaderByNumber(timeoutCtx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest block: %w", err)
		}
		toBlock = header.Number
	}

	if fromBlock.Cmp(toBlock) > 0 {
		return nil, nil
	}

	rangeQuery := query
	rangeQuery.FromBlock = fromBlock
	rangeQuery.ToBlock = toBlock
	logs, err := c.getLogsWithRetry(timeoutCtx, rangeQuery, logStepSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for range %d-%d: %w", fromBlock.Uint64(), toBlock.Uint64(), err)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
	return logs, nil
}

// getLogsWithRetry processes the range from query.FromBlock to query.ToBlock in chunks,
// halving the chunk size whenever the provider reports too many results
func (c *ethereumClient) getLogsWithRetry(ctx context.Context, query ethereum.FilterQuery, stepSize uint64) ([]types.Log, error) {
	currentStepSize := stepSize

	var allLogs []types.Log
	currentFrom := new(big.Int).Set(query.FromBlock)

	for currentFrom.Cmp(query.ToBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(currentStepSize-1))
		if currentTo.Cmp(query.ToBlock) > 0 {
			currentTo.Set(query.ToBlock)
		}

		chunk := query
		chunk.FromBlock = new(big.Int).Set(currentFrom)
		chunk.ToBlock = new(big.Int).Set(currentTo)

		logs, err := c.client.FilterLogs(ctx, chunk)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom.SetUint64(currentTo.Uint64() + 1)
			continue
		}

		if !isTooManyResultsError(err) || currentStepSize == 1 {
			return nil, err
		}

		currentStepSize /= 2
		logger.WarnCtx(ctx, "Too many results, reducing step size",
			zap.Uint64("oldStepSize", currentStepSize*2),
			zap.Uint64("newStepSize", currentStepSize),
			zap.Uint64("fromBlock", currentFrom.Uint64()),
			zap.Uint64("toBlock", currentTo.Uint64()))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}

// ParseEventLog parses a registry log into a normalized event
func (c *ethereumClient) ParseEventLog(ctx context.Context, vLog types.Log) (*domain.Event, error) {
	if vLog.Removed {
		// Reorged out; the replacement log arrives separately
		logger.WarnCtx(ctx, "Skipping removed log",
			zap.String("txHash", vLog.TxHash.Hex()),
			zap.Uint64("block", vLog.BlockNumber))
		return nil, nil
	}

	eventType, payload, err := c.decoder.decode(vLog)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEventType) {
			logger.DebugCtx(ctx, "Skipping non registry log",
				zap.String("contract", vLog.Address.Hex()),
				zap.String("txHash", vLog.TxHash.Hex()))
			return nil, nil
		}
		return nil, err
	}

	timestamp, err := c.blocks.GetBlockTimestamp(ctx, vLog.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get block timestamp: %w", err)
	}

	position := domain.Position{BlockNumber: vLog.BlockNumber, LogIndex: uint64(vLog.Index)}
	event, err := domain.NewEvent(eventType, position, vLog.TxHash.Hex(), timestamp.Unix(), payload)
	if err != nil {
		return nil, err
	}

	blockHash := vLog.BlockHash.Hex()
	event.Chain = c.chainID
	event.ContractAddress = vLog.Address.Hex()
	event.BlockHash = &blockHash

	return event, nil
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}
