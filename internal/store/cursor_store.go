package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// CursorStore defines the interface for storing and retrieving emitter block cursors
//
//go:generate mockgen -source=cursor_store.go -destination=../mocks/cursor_store.go -package=mocks -mock_names=CursorStore=MockCursorStore
type CursorStore interface {
	// GetBlockCursor retrieves the last processed block number for a chain
	GetBlockCursor(ctx context.Context, chain string) (uint64, error)
	// SetBlockCursor stores the last processed block number for a chain
	SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error
}

func blockCursorKey(chain string) string {
	return fmt.Sprintf("block_cursor:%s", chain)
}

func aggregatorCursorKey(shard string) string {
	return fmt.Sprintf("aggregator_cursor:%s", shard)
}

// getValue reads a key, returning ok=false when it does not exist
func getValue(ctx context.Context, db *gorm.DB, key string) (string, bool, error) {
	var kv schema.KeyValueStore
	err := db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return kv.Value, true, nil
}

// setValue upserts a key
func setValue(ctx context.Context, db *gorm.DB, key string, value string) error {
	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error
}

// encodePosition formats a position as "block:log"
func encodePosition(p domain.Position) string {
	return p.String()
}

func decodePosition(value string) (*domain.Position, error) {
	block, log, ok := strings.Cut(value, ":")
	if !ok {
		return nil, fmt.Errorf("malformed cursor %q", value)
	}
	b, err := strconv.ParseUint(block, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor block %q: %w", value, err)
	}
	l, err := strconv.ParseUint(log, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor log index %q: %w", value, err)
	}
	return &domain.Position{BlockNumber: b, LogIndex: l}, nil
}

// GetBlockCursor retrieves the last processed block number for a chain
func (q *queries) GetBlockCursor(ctx context.Context, chain string) (uint64, error) {
	value, ok, err := getValue(ctx, q.db, blockCursorKey(chain))
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if !ok {
		return 0, nil // Return 0 if no cursor exists
	}

	blockNumber, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, nil
}

// SetBlockCursor stores the last processed block number for a chain
func (q *queries) SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error {
	if err := setValue(ctx, q.db, blockCursorKey(chain), strconv.FormatUint(blockNumber, 10)); err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}
	return nil
}

// GetCursor retrieves the last applied position of a shard
func (q *queries) GetCursor(ctx context.Context, shard string) (*domain.Position, error) {
	value, ok, err := getValue(ctx, q.db, aggregatorCursorKey(shard))
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decodePosition(value)
}

// SetCursor stores the last applied position of a shard
func (t *txStore) SetCursor(ctx context.Context, shard string, position domain.Position) error {
	if err := setValue(ctx, t.db, aggregatorCursorKey(shard), encodePosition(position)); err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}
