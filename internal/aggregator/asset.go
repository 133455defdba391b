package aggregator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// applyTransfer moves an asset to a new owner, creating the asset on its first transfer
func (a *aggregator) applyTransfer(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.TransferPayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	at := e.Time()
	asset, err := tx.GetAssetForUpdate(ctx, p.TokenID)
	if err != nil {
		return nil, err
	}

	if err := insertRecord(ctx, tx, &schema.Transfer{
		EventRef: ref,
		TokenID:  p.TokenID,
		From:     p.From,
		To:       p.To,
		IsMint:   p.IsMint(),
	}); err != nil {
		return nil, err
	}

	var delta store.StatsDelta
	var daily store.DailyDelta
	delta.TotalTransfers = 1

	if asset == nil {
		asset = &schema.Asset{
			TokenID:         p.TokenID,
			ContractAddress: domain.NormalizeAddress(e.ContractAddress),
			State:           domain.AssetStateMinted,
			Owner:           p.To,
			CreatedAt:       at,
			UpdatedAt:       at,
		}
		if err := tx.CreateAsset(ctx, asset); err != nil {
			return nil, err
		}
		delta.TotalAssets = 1
		delta.AddState(domain.AssetStateMinted, 1)
		if p.IsMint() {
			daily.Mints = 1
		} else {
			logger.Anomaly(ctx, "missing_mint", "Transfer created an asset that was never minted",
				zap.String("tokenID", p.TokenID),
				zap.String("from", p.From),
			)
		}
	} else {
		if p.IsMint() {
			logger.Anomaly(ctx, "duplicate_mint", "Mint of an asset that already exists",
				zap.String("tokenID", p.TokenID),
			)
		} else if asset.Owner != p.From {
			logger.WarnCtx(ctx, "Transfer sender is not the recorded owner",
				zap.String("tokenID", p.TokenID),
				zap.String("from", p.From),
				zap.String("owner", asset.Owner),
			)
		}
		asset.Owner = p.To
		asset.UpdatedAt = at
		if err := tx.UpdateAsset(ctx, asset); err != nil {
			return nil, err
		}
	}

	u := a.users(tx, e, &delta)
	if !p.IsMint() {
		daily.Transfers = 1
		if err := u.touch(ctx, p.From, store.UserDelta{AssetCount: -1}); err != nil {
			return nil, err
		}
	}
	if err := u.touch(ctx, p.To, store.UserDelta{AssetCount: 1}); err != nil {
		return nil, err
	}

	return nil, a.adjustStats(ctx, tx, e, delta, daily)
}

// applyStateChanged records a lifecycle transition and moves the asset between state buckets
func (a *aggregator) applyStateChanged(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.StateChangedPayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	asset, err := tx.GetAssetForUpdate(ctx, p.TokenID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return &anomaly{
			kind:   schema.AnomalyKindUnknownAsset,
			detail: fmt.Sprintf("state change of unknown asset %s", p.TokenID),
		}, nil
	}

	recorded := asset.State
	if p.OldState != recorded {
		logger.Anomaly(ctx, "state_mismatch", "Declared old state differs from the recorded state",
			zap.String("tokenID", p.TokenID),
			zap.String("declared", string(p.OldState)),
			zap.String("recorded", string(recorded)),
		)
	}
	if recorded != p.NewState && !recorded.CanTransition(p.NewState) {
		logger.Anomaly(ctx, "illegal_transition", "Recording a transition the lifecycle does not allow",
			zap.String("tokenID", p.TokenID),
			zap.String("from", string(recorded)),
			zap.String("to", string(p.NewState)),
		)
	}

	if err := insertRecord(ctx, tx, &schema.StateChange{
		EventRef:         ref,
		TokenID:          p.TokenID,
		OldState:         recorded,
		NewState:         p.NewState,
		DeclaredOldState: p.OldState,
	}); err != nil {
		return nil, err
	}

	asset.State = p.NewState
	asset.UpdatedAt = e.Time()
	if err := tx.UpdateAsset(ctx, asset); err != nil {
		return nil, err
	}

	var delta store.StatsDelta
	delta.MoveState(recorded, p.NewState)
	return nil, a.adjustStats(ctx, tx, e, delta, store.DailyDelta{})
}

// applyAssetFlagged appends a flag. The asset is not required to exist.
func (a *aggregator) applyAssetFlagged(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.AssetFlaggedPayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	if err := insertRecord(ctx, tx, &schema.Flag{
		EventRef: ref,
		TokenID:  p.TokenID,
		Reporter: p.Reporter,
		Reason:   p.Reason,
	}); err != nil {
		return nil, err
	}

	delta := store.StatsDelta{TotalFlags: 1}
	if err := a.users(tx, e, &delta).touch(ctx, p.Reporter, store.UserDelta{}); err != nil {
		return nil, err
	}

	return nil, a.adjustStats(ctx, tx, e, delta, store.DailyDelta{Flags: 1})
}

// applyAssetResolved appends a resolution. Neither the flags nor the asset state change.
func (a *aggregator) applyAssetResolved(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.AssetResolvedPayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	if err := insertRecord(ctx, tx, &schema.Resolution{
		EventRef:       ref,
		TokenID:        p.TokenID,
		Resolver:       p.Resolver,
		ResolutionType: p.Resolution,
	}); err != nil {
		return nil, err
	}

	delta := store.StatsDelta{TotalResolutions: 1}
	if err := a.users(tx, e, &delta).touch(ctx, p.Resolver, store.UserDelta{}); err != nil {
		return nil, err
	}

	return nil, a.adjustStats(ctx, tx, e, delta, store.DailyDelta{})
}
