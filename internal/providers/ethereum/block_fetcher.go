package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/block"
)

// headerFetcher implements block.BlockFetcher from block headers, which is cheaper than fetching full blocks
type headerFetcher struct {
	client adapter.EthClient
}

// NewBlockFetcher creates a block fetcher backed by an Ethereum client
func NewBlockFetcher(client adapter.EthClient) block.BlockFetcher {
	return &headerFetcher{client: client}
}

// FetchLatestBlock fetches the latest block number
func (f *headerFetcher) FetchLatestBlock(ctx context.Context) (uint64, error) {
	header, err := f.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest header: %w", err)
	}
	return header.Number.Uint64(), nil
}

// FetchBlockTimestamp fetches the timestamp of a block
func (f *headerFetcher) FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := f.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get header %d: %w", blockNumber, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil //nolint:gosec,G115
}
