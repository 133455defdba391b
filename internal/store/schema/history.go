package schema

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// Transfer represents the transfers table - ownership changes of assets
type Transfer struct {
	EventRef
	// TokenID is the transferred asset
	TokenID string `gorm:"column:token_id;not null;type:text;index"`
	// From is the sender, the zero address for mints
	From string `gorm:"column:from_address;not null;type:text"`
	// To is the recipient, the zero address for burns
	To string `gorm:"column:to_address;not null;type:text"`
	// IsMint is true when the sender is the zero address
	IsMint bool `gorm:"column:is_mint;not null;default:false"`
}

func (Transfer) TableName() string {
	return "transfers"
}

// StateChange represents the state_changes table - lifecycle transitions of assets
type StateChange struct {
	EventRef
	TokenID string `gorm:"column:token_id;not null;type:text;index"`
	// OldState is the asset state recorded before the transition
	OldState domain.AssetState `gorm:"column:old_state;not null;type:text"`
	NewState domain.AssetState `gorm:"column:new_state;not null;type:text"`
	// DeclaredOldState is the old state carried by the event, which may disagree with OldState
	DeclaredOldState domain.AssetState `gorm:"column:declared_old_state;not null;type:text"`
}

func (StateChange) TableName() string {
	return "state_changes"
}

// Flag represents the flags table. Flags are never updated once written.
type Flag struct {
	EventRef
	TokenID  string `gorm:"column:token_id;not null;type:text;index"`
	Reporter string `gorm:"column:reporter;not null;type:text"`
	Reason   string `gorm:"column:reason;not null;type:text"`
	Resolved bool   `gorm:"column:resolved;not null;default:false"`
}

func (Flag) TableName() string {
	return "flags"
}

// Resolution represents the resolutions table. A resolution refers to the asset, not to a flag.
type Resolution struct {
	EventRef
	TokenID        string                `gorm:"column:token_id;not null;type:text;index"`
	Resolver       string                `gorm:"column:resolver;not null;type:text"`
	ResolutionType domain.ResolutionType `gorm:"column:resolution_type;not null;type:text"`
}

func (Resolution) TableName() string {
	return "resolutions"
}

// BadgeGrant represents the badge_grants table.
// A revocation is its own record with Active=false and a zero GrantedAt.
type BadgeGrant struct {
	EventRef
	Subject   string     `gorm:"column:subject;not null;type:text;index"`
	Issuer    string     `gorm:"column:issuer;not null;type:text"`
	BadgeID   string     `gorm:"column:badge_id;not null;type:text;index"`
	Active    bool       `gorm:"column:active;not null"`
	GrantedAt time.Time  `gorm:"column:granted_at;not null"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
}

func (BadgeGrant) TableName() string {
	return "badge_grants"
}

// CapabilityGrant represents the capability_grants table, with the same revocation model as BadgeGrant
type CapabilityGrant struct {
	EventRef
	Subject    string     `gorm:"column:subject;not null;type:text;index"`
	Issuer     string     `gorm:"column:issuer;not null;type:text"`
	Capability string     `gorm:"column:capability;not null;type:text;index"`
	Active     bool       `gorm:"column:active;not null"`
	GrantedAt  time.Time  `gorm:"column:granted_at;not null"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
}

func (CapabilityGrant) TableName() string {
	return "capability_grants"
}
