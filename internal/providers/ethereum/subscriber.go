package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/block"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/messaging"
	"github.com/feral-file/ff-asset-aggregator/internal/registry"
)

// liveBuffer is the number of live logs held while the backfill runs
const liveBuffer = 1024

// Config holds the configuration for Ethereum subscription
type Config struct {
	WebSocketURL string       // WebSocket URL (e.g., wss://mainnet.infura.io/ws/v3/YOUR_PROJECT_ID)
	ChainID      domain.Chain // e.g., "eip155:1" for Ethereum mainnet
}

type ethSubscriber struct {
	client    EthereumClient
	blocks    block.BlockProvider
	chainID   domain.Chain
	contracts []common.Address
}

// NewSubscriber creates a subscriber for the allowlisted registry contracts of the chain
func NewSubscriber(cfg Config, client EthereumClient, blocks block.BlockProvider, allowlist registry.Allowlist) (messaging.Subscriber, error) {
	addresses := allowlist.Contracts(cfg.ChainID)
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no registry contracts configured for %s", cfg.ChainID)
	}

	contracts := make([]common.Address, len(addresses))
	for i, a := range addresses {
		contracts[i] = common.HexToAddress(a)
	}

	return &ethSubscriber{
		client:    client,
		blocks:    blocks,
		chainID:   cfg.ChainID,
		contracts: contracts,
	}, nil
}

func (s *ethSubscriber) query(fromBlock, toBlock *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: s.contracts,
		Topics:    [][]common.Hash{s.client.EventTopics()},
	}
}

// SubscribeEvents subscribes to new logs first, backfills fromBlock..head, then drains the
// live logs above head so no block between the two is missed
func (s *ethSubscriber) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	logs := make(chan types.Log, liveBuffer)
	sub, err := s.client.SubscribeFilterLogs(ctx, s.query(nil, nil), logs)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
	}
	defer func() {
		logger.InfoCtx(ctx, "Unsubscribing from registry logs")
		sub.Unsubscribe()
	}()

	head, err := s.blocks.GetLatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block: %w", err)
	}

	if fromBlock <= head {
		logger.InfoCtx(ctx, "Backfilling registry logs",
			zap.String("chain", string(s.chainID)),
			zap.Uint64("from", fromBlock),
			zap.Uint64("to", head))

		history, err := s.client.FilterLogs(ctx, s.query(new(big.Int).SetUint64(fromBlock), new(big.Int).SetUint64(head)))
		if err != nil {
			return fmt.Errorf("failed to backfill logs: %w", err)
		}
		for _, vLog := range history {
			if err := s.handle(ctx, vLog, handler); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
		case vLog := <-logs:
			if vLog.BlockNumber <= head {
				continue // already backfilled
			}
			if err := s.handle(ctx, vLog, handler); err != nil {
				return err
			}
		}
	}
}

func (s *ethSubscriber) handle(ctx context.Context, vLog types.Log, handler messaging.EventHandler) error {
	event, err := s.client.ParseEventLog(ctx, vLog)
	if errors.Is(err, domain.ErrInvalidEvent) {
		logger.ErrorCtx(ctx, err,
			zap.String("message", "Error parsing log"),
			zap.String("txHash", vLog.TxHash.Hex()),
			zap.Uint("logIndex", vLog.Index))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to parse log %s:%d: %w", vLog.TxHash.Hex(), vLog.Index, err)
	}
	if event == nil {
		return nil
	}

	if err := handler(event); err != nil {
		return fmt.Errorf("failed to handle event %s: %w", event.Key(), err)
	}
	return nil
}

// GetLatestBlock returns the latest block number
func (s *ethSubscriber) GetLatestBlock(ctx context.Context) (uint64, error) {
	return s.blocks.GetLatestBlock(ctx)
}

// Close closes the connection
func (s *ethSubscriber) Close() {
	if s.client == nil {
		return
	}

	s.client.Close()
	logger.Info("Ethereum WebSocket connection closed")
}
