package schema

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// Asset represents the assets table - the current state of a registered asset
type Asset struct {
	// TokenID is the canonical decimal token identifier
	TokenID string `gorm:"column:token_id;primaryKey;type:text"`
	// ContractAddress is the registry contract that emitted the creating transfer
	ContractAddress string `gorm:"column:contract_address;not null;type:text"`
	// State is the current lifecycle state
	State domain.AssetState `gorm:"column:state;not null;type:text;index"`
	// Owner is the recipient of the most recently applied transfer
	Owner string `gorm:"column:owner;not null;type:text;index"`
	// CreatedAt is the block time of the transfer that created the asset
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	// UpdatedAt is the block time of the latest event applied to the asset
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (Asset) TableName() string {
	return "assets"
}
