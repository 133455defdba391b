package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/ff-asset-aggregator/internal/api/shared/errors"
	"github.com/feral-file/ff-asset-aggregator/internal/api/shared/executor"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// healthTimeout bounds the store ping of the health check
const healthTimeout = 2 * time.Second

// Pinger checks connectivity of a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// GetAsset retrieves the current state of an asset
	// GET /api/v1/assets/:id
	GetAsset(c *gin.Context)

	// ListAssets retrieves assets ordered by token id
	// GET /api/v1/assets?state=<state1>&state=<state2>&owner=<address>&limit=<limit>&offset=<offset>
	ListAssets(c *gin.Context)

	// GetAssetHistory retrieves the transfers, state changes, flags and resolutions of an asset
	// GET /api/v1/assets/:id/history
	GetAssetHistory(c *gin.Context)

	// GetUser retrieves a user with the badges and capabilities currently held
	// GET /api/v1/users/:address
	GetUser(c *gin.Context)

	// GetStats retrieves the global counters and the most recent daily counters
	// GET /api/v1/stats?days=<days>
	GetStats(c *gin.Context)

	// GetProposal retrieves a proposal with its per house tally and derived state
	// GET /api/v1/proposals/:id
	GetProposal(c *gin.Context)

	// ListAnomalies retrieves skipped events, newest first
	// GET /api/v1/anomalies?kind=<kind>&limit=<limit>&offset=<offset>
	ListAnomalies(c *gin.Context)

	// HealthCheck returns the health status of the API and its store
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	executor executor.Executor
	store    Pinger
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor, store Pinger) Handler {
	return &handler{
		executor: exec,
		store:    store,
	}
}

// GetAsset retrieves the current state of an asset by token id, decimal or 0x hex
func (h *handler) GetAsset(c *gin.Context) {
	tokenID, err := domain.CanonicalTokenID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid token id")
		return
	}

	asset, err := h.executor.GetAsset(c.Request.Context(), tokenID)
	if err != nil {
		respondError(c, err, "Failed to get asset", zap.String("tokenID", tokenID))
		return
	}

	c.JSON(http.StatusOK, asset)
}

// ListAssets retrieves assets with optional state and owner filters
func (h *handler) ListAssets(c *gin.Context) {
	queryParams, err := ParseListAssetsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := queryParams.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	var owner *string
	if queryParams.Owner != "" {
		owner = &queryParams.Owner
	}
	offset := uint64(queryParams.Offset) //nolint:gosec

	assets, err := h.executor.ListAssets(c.Request.Context(), queryParams.AssetStates(), owner, &queryParams.Limit, &offset)
	if err != nil {
		respondError(c, err, "Failed to list assets")
		return
	}

	c.JSON(http.StatusOK, assets)
}

// GetAssetHistory retrieves the history of an asset
func (h *handler) GetAssetHistory(c *gin.Context) {
	tokenID, err := domain.CanonicalTokenID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid token id")
		return
	}

	history, err := h.executor.ListAssetHistory(c.Request.Context(), tokenID)
	if err != nil {
		respondError(c, err, "Failed to get asset history", zap.String("tokenID", tokenID))
		return
	}

	c.JSON(http.StatusOK, history)
}

// GetUser retrieves a user by address
func (h *handler) GetUser(c *gin.Context) {
	address, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		respondBadRequest(c, "Invalid address")
		return
	}

	user, err := h.executor.GetUser(c.Request.Context(), address)
	if err != nil {
		respondError(c, err, "Failed to get user", zap.String("address", address))
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetStats retrieves the global and daily counters
func (h *handler) GetStats(c *gin.Context) {
	queryParams, err := ParseGetStatsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	stats, err := h.executor.GetStats(c.Request.Context(), &queryParams.Days)
	if err != nil {
		respondError(c, err, "Failed to get stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetProposal retrieves a proposal by id, decimal or 0x hex
func (h *handler) GetProposal(c *gin.Context) {
	proposalID, err := domain.CanonicalTokenID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid proposal id")
		return
	}

	proposal, err := h.executor.GetProposal(c.Request.Context(), proposalID)
	if err != nil {
		respondError(c, err, "Failed to get proposal", zap.String("proposalID", proposalID))
		return
	}

	c.JSON(http.StatusOK, proposal)
}

// ListAnomalies retrieves skipped events with an optional kind filter
func (h *handler) ListAnomalies(c *gin.Context) {
	queryParams, err := ParseListAnomaliesQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := queryParams.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	var kind *schema.AnomalyKind
	if queryParams.Kind != "" {
		k := schema.AnomalyKind(queryParams.Kind)
		kind = &k
	}
	offset := uint64(queryParams.Offset) //nolint:gosec

	anomalies, err := h.executor.ListAnomalies(c.Request.Context(), kind, &queryParams.Limit, &offset)
	if err != nil {
		respondError(c, err, "Failed to list anomalies")
		return
	}

	c.JSON(http.StatusOK, anomalies)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respondErrorStatus(c, http.StatusServiceUnavailable, apierrors.NewUnavailableError("Store unavailable"), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ff-asset-aggregator-api",
	})
}
