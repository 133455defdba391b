package aggregator

import (
	"context"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// applyBadge appends a badge grant or revocation and adjusts the subject's badge count
func (a *aggregator) applyBadge(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.BadgePayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	granted := e.Type == domain.EventTypeBadgeGranted
	record := &schema.BadgeGrant{
		EventRef: ref,
		Subject:  p.Subject,
		Issuer:   p.Issuer,
		BadgeID:  p.BadgeID,
		Active:   granted,
	}
	change := int64(-1)
	if granted {
		record.GrantedAt = e.Time()
		change = 1
	} else {
		at := e.Time()
		record.RevokedAt = &at
	}

	if err := insertRecord(ctx, tx, record); err != nil {
		return nil, err
	}

	var delta store.StatsDelta
	if err := a.touchParties(ctx, tx, e, &delta, p.Subject, p.Issuer, store.UserDelta{BadgeCount: change}); err != nil {
		return nil, err
	}
	return nil, a.adjustStats(ctx, tx, e, delta, store.DailyDelta{})
}

// applyCapability appends a capability grant or revocation and adjusts the subject's capability count
func (a *aggregator) applyCapability(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.CapabilityPayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	granted := e.Type == domain.EventTypeCapabilityGranted
	record := &schema.CapabilityGrant{
		EventRef:   ref,
		Subject:    p.Subject,
		Issuer:     p.Issuer,
		Capability: p.Capability,
		Active:     granted,
	}
	change := int64(-1)
	if granted {
		record.GrantedAt = e.Time()
		change = 1
	} else {
		at := e.Time()
		record.RevokedAt = &at
	}

	if err := insertRecord(ctx, tx, record); err != nil {
		return nil, err
	}

	var delta store.StatsDelta
	if err := a.touchParties(ctx, tx, e, &delta, p.Subject, p.Issuer, store.UserDelta{CapabilityCount: change}); err != nil {
		return nil, err
	}
	return nil, a.adjustStats(ctx, tx, e, delta, store.DailyDelta{})
}

// touchParties applies the count change to the subject and marks the issuer as active
func (a *aggregator) touchParties(ctx context.Context, tx store.Tx, e *domain.Event, delta *store.StatsDelta, subject, issuer string, change store.UserDelta) error {
	u := a.users(tx, e, delta)
	if err := u.touch(ctx, subject, change); err != nil {
		return err
	}
	if issuer != "" && issuer != subject {
		return u.touch(ctx, issuer, store.UserDelta{})
	}
	return nil
}
