package rest

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-asset-aggregator/internal/api/shared/constants"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// ListAssetsQueryParams holds query parameters for GET /assets
type ListAssetsQueryParams struct {
	// Filters
	States []string `form:"state"`
	Owner  string   `form:"owner"`

	// Pagination
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// GetStatsQueryParams holds query parameters for GET /stats
type GetStatsQueryParams struct {
	Days int `form:"days,default=30"`
}

// ListAnomaliesQueryParams holds query parameters for GET /anomalies
type ListAnomaliesQueryParams struct {
	Kind string `form:"kind"`

	// Pagination
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// ParseListAssetsQuery parses query parameters for GET /assets
func ParseListAssetsQuery(c *gin.Context) (*ListAssetsQueryParams, error) {
	var params ListAssetsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	// Cap limit
	if params.Limit > constants.MAX_PAGE_SIZE {
		params.Limit = constants.MAX_PAGE_SIZE
	}

	return &params, nil
}

// Validate checks the filters and pagination of an asset listing
func (p *ListAssetsQueryParams) Validate() error {
	if p.Limit < 1 {
		return fmt.Errorf("limit must be positive")
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	for _, s := range p.States {
		if !domain.AssetState(s).Valid() {
			return fmt.Errorf("unknown state %q", s)
		}
	}
	if p.Owner != "" {
		owner, err := domain.ParseAddress(p.Owner)
		if err != nil {
			return fmt.Errorf("invalid owner address %q", p.Owner)
		}
		p.Owner = owner
	}
	return nil
}

// AssetStates returns the state filter
func (p *ListAssetsQueryParams) AssetStates() []domain.AssetState {
	states := make([]domain.AssetState, len(p.States))
	for i, s := range p.States {
		states[i] = domain.AssetState(s)
	}
	return states
}

// ParseGetStatsQuery parses query parameters for GET /stats
func ParseGetStatsQuery(c *gin.Context) (*GetStatsQueryParams, error) {
	var params GetStatsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if params.Days > constants.MAX_STATS_DAYS {
		params.Days = constants.MAX_STATS_DAYS
	}
	if params.Days < 1 {
		return nil, fmt.Errorf("days must be positive")
	}

	return &params, nil
}

// ParseListAnomaliesQuery parses query parameters for GET /anomalies
func ParseListAnomaliesQuery(c *gin.Context) (*ListAnomaliesQueryParams, error) {
	var params ListAnomaliesQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	// Cap limit
	if params.Limit > constants.MAX_PAGE_SIZE {
		params.Limit = constants.MAX_PAGE_SIZE
	}

	return &params, nil
}

// Validate checks the kind filter and pagination of an anomaly listing
func (p *ListAnomaliesQueryParams) Validate() error {
	if p.Limit < 1 {
		return fmt.Errorf("limit must be positive")
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	if p.Kind != "" && !schema.AnomalyKind(p.Kind).Valid() {
		return fmt.Errorf("unknown anomaly kind %q", p.Kind)
	}
	return nil
}
