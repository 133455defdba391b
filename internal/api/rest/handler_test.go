package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-asset-aggregator/internal/api/shared/dto"
	apierrors "github.com/feral-file/ff-asset-aggregator/internal/api/shared/errors"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/mocks"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

const (
	testOwnerLower = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	testOwner      = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

type handlerTestSetup struct {
	exec   *mocks.MockAPIExecutor
	pinger *stubPinger
	router *gin.Engine
}

func setupHandlerTest(t *testing.T) *handlerTestSetup {
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	exec := mocks.NewMockAPIExecutor(ctrl)
	pinger := &stubPinger{}
	router := gin.New()
	SetupRoutes(router, NewHandler(exec, pinger))

	return &handlerTestSetup{exec: exec, pinger: pinger, router: router}
}

func (s *handlerTestSetup) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *apierrors.APIError {
	t.Helper()
	var body apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error
}

func TestGetAsset(t *testing.T) {
	t.Run("canonicalizes hex id", func(t *testing.T) {
		s := setupHandlerTest(t)
		s.exec.EXPECT().
			GetAsset(gomock.Any(), "255").
			Return(&dto.AssetResponse{TokenID: "255", State: domain.AssetStateBound, Owner: testOwner}, nil)

		w := s.get("/api/v1/assets/0xff")

		require.Equal(t, http.StatusOK, w.Code)
		var body dto.AssetResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "255", body.TokenID)
		assert.Equal(t, domain.AssetStateBound, body.State)
	})

	t.Run("invalid id", func(t *testing.T) {
		s := setupHandlerTest(t)

		w := s.get("/api/v1/assets/not-a-number")

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrCodeBadRequest, decodeError(t, w).Code)
	})

	t.Run("not found", func(t *testing.T) {
		s := setupHandlerTest(t)
		s.exec.EXPECT().
			GetAsset(gomock.Any(), "7").
			Return(nil, fmt.Errorf("%w: asset 7", domain.ErrNotFound))

		w := s.get("/api/v1/assets/7")

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apierrors.ErrCodeNotFound, decodeError(t, w).Code)
	})

	t.Run("internal error hides cause", func(t *testing.T) {
		s := setupHandlerTest(t)
		s.exec.EXPECT().
			GetAsset(gomock.Any(), "7").
			Return(nil, errors.New("pq: connection refused to 10.0.0.5"))

		w := s.get("/api/v1/assets/7")

		require.Equal(t, http.StatusInternalServerError, w.Code)
		apiErr := decodeError(t, w)
		assert.Equal(t, apierrors.ErrCodeInternalError, apiErr.Code)
		assert.Empty(t, apiErr.Details)
		assert.NotContains(t, w.Body.String(), "10.0.0.5")
	})
}

func TestListAssets(t *testing.T) {
	t.Run("passes filters", func(t *testing.T) {
		s := setupHandlerTest(t)
		s.exec.EXPECT().
			ListAssets(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, states []domain.AssetState, owner *string, limit *int, offset *uint64) (*dto.AssetListResponse, error) {
				assert.Equal(t, []domain.AssetState{domain.AssetStateBound, domain.AssetStateClaimed}, states)
				require.NotNil(t, owner)
				assert.Equal(t, testOwner, *owner)
				assert.Equal(t, 5, *limit)
				assert.Equal(t, uint64(10), *offset)
				return &dto.AssetListResponse{Assets: []dto.AssetResponse{}, Total: 0}, nil
			})

		w := s.get("/api/v1/assets?state=bound&state=claimed&owner=" + testOwnerLower + "&limit=5&offset=10")

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("defaults and caps limit", func(t *testing.T) {
		s := setupHandlerTest(t)
		s.exec.EXPECT().
			ListAssets(gomock.Any(), gomock.Any(), gomock.Nil(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, states []domain.AssetState, _ *string, limit *int, offset *uint64) (*dto.AssetListResponse, error) {
				assert.Empty(t, states)
				assert.Equal(t, 100, *limit)
				assert.Equal(t, uint64(0), *offset)
				return &dto.AssetListResponse{Assets: []dto.AssetResponse{}}, nil
			})

		w := s.get("/api/v1/assets?limit=1000")

		require.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown state", query: "state=burned"},
		{name: "invalid owner", query: "owner=0x123"},
		{name: "zero limit", query: "limit=0"},
		{name: "negative offset", query: "offset=-1"},
		{name: "non numeric limit", query: "limit=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupHandlerTest(t)

			w := s.get("/api/v1/assets?" + tt.query)

			require.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, apierrors.ErrCodeValidationFailed, decodeError(t, w).Code)
		})
	}
}

func TestGetAssetHistory(t *testing.T) {
	s := setupHandlerTest(t)
	s.exec.EXPECT().
		ListAssetHistory(gomock.Any(), "1").
		Return(&dto.AssetHistoryResponse{TokenID: "1"}, nil)
	s.exec.EXPECT().
		ListAssetHistory(gomock.Any(), "2").
		Return(nil, fmt.Errorf("%w: asset 2", domain.ErrNotFound))

	w := s.get("/api/v1/assets/1/history")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.get("/api/v1/assets/2/history")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUser(t *testing.T) {
	t.Run("normalizes address", func(t *testing.T) {
		s := setupHandlerTest(t)
		s.exec.EXPECT().
			GetUser(gomock.Any(), testOwner).
			Return(&dto.UserResponse{Address: testOwner, Badges: []string{"pioneer"}, Capabilities: []string{}}, nil)

		w := s.get("/api/v1/users/" + testOwnerLower)

		require.Equal(t, http.StatusOK, w.Code)
		var body dto.UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, []string{"pioneer"}, body.Badges)
	})

	t.Run("invalid address", func(t *testing.T) {
		s := setupHandlerTest(t)

		w := s.get("/api/v1/users/alice")

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetStats(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantDays int
	}{
		{name: "default", query: "", wantDays: 30},
		{name: "explicit", query: "?days=7", wantDays: 7},
		{name: "capped", query: "?days=5000", wantDays: 366},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupHandlerTest(t)
			s.exec.EXPECT().
				GetStats(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, days *int) (*dto.StatsResponse, error) {
					assert.Equal(t, tt.wantDays, *days)
					return &dto.StatsResponse{Daily: []dto.DailyStatsResponse{}}, nil
				})

			w := s.get("/api/v1/stats" + tt.query)

			require.Equal(t, http.StatusOK, w.Code)
		})
	}

	t.Run("non positive days", func(t *testing.T) {
		s := setupHandlerTest(t)

		w := s.get("/api/v1/stats?days=0")

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestGetProposal(t *testing.T) {
	s := setupHandlerTest(t)
	s.exec.EXPECT().
		GetProposal(gomock.Any(), "16").
		Return(&dto.ProposalResponse{ProposalID: "16", State: domain.ProposalStateActive}, nil)

	w := s.get("/api/v1/proposals/0x10")

	require.Equal(t, http.StatusOK, w.Code)
	var body dto.ProposalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.ProposalStateActive, body.State)
}

func TestListAnomalies(t *testing.T) {
	t.Run("kind filter", func(t *testing.T) {
		s := setupHandlerTest(t)
		s.exec.EXPECT().
			ListAnomalies(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, kind *schema.AnomalyKind, limit *int, _ *uint64) (*dto.AnomalyListResponse, error) {
				require.NotNil(t, kind)
				assert.Equal(t, schema.AnomalyKindUnknownAsset, *kind)
				assert.Equal(t, 20, *limit)
				return &dto.AnomalyListResponse{Anomalies: []dto.AnomalyResponse{}}, nil
			})

		w := s.get("/api/v1/anomalies?kind=unknown_asset")

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		s := setupHandlerTest(t)

		w := s.get("/api/v1/anomalies?kind=bogus")

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestHealthCheck(t *testing.T) {
	s := setupHandlerTest(t)

	w := s.get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	s.pinger.err = errors.New("connection reset")
	w = s.get("/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	apiErr := decodeError(t, w)
	assert.Equal(t, apierrors.ErrCodeUnavailable, apiErr.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}
