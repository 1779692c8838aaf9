package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verification-workflow-engine/internal/domain/audit"
	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/verification_api/service"
)

// PaginatedResponse is a generic version of Response for testing paginated data
type PaginatedResponse[T any] struct {
	Data          []T        `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) GetSessionTrail(ctx context.Context, sessionID uuid.UUID, from, to *time.Time, page, perPage int) ([]*audit.Entry, int64, error) {
	args := m.Called(ctx, sessionID, from, to, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*audit.Entry), args.Get(1).(int64), args.Error(2)
}

func (m *MockAuditService) GetTransactionTrail(ctx context.Context, transactionID uuid.UUID, page, perPage int) ([]*audit.Entry, error) {
	args := m.Called(ctx, transactionID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

var _ service.AuditService = (*MockAuditService)(nil)

func TestAuditHandler_GetSessionTrail(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuditService)
		handler := NewAuditHandler(logger, mockService)

		sessionID := uuid.New()
		transactionID := uuid.New()
		entries := []*audit.Entry{
			audit.NewEntry(sessionID, audit.EventSessionCreated, shared.ActorTypeSystem, "", "NOT_STARTED"),
			audit.NewTransactionEntry(sessionID, transactionID, audit.EventDecisionRecorded,
				shared.ActorTypeBusinessUser, "PENDING", "APPROVED"),
		}
		mockService.On("GetSessionTrail", mock.Anything, sessionID, (*time.Time)(nil), (*time.Time)(nil), 1, 50).
			Return(entries, int64(2), nil)

		router := gin.Default()
		router.GET("/sessions/:id/audit", handler.GetSessionTrail)

		req, _ := http.NewRequest(http.MethodGet, "/sessions/"+sessionID.String()+"/audit", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var respBody PaginatedResponse[AuditEntryResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &respBody))
		require.NotNil(t, respBody.Meta)
		assert.Equal(t, 2, respBody.Meta.TotalItems)
		require.Len(t, respBody.Data, 2)
		assert.Equal(t, "session_created", respBody.Data[0].EventType)
		assert.Equal(t, "decision_recorded", respBody.Data[1].EventType)
		assert.Equal(t, transactionID.String(), respBody.Data[1].TransactionID)

		mockService.AssertExpectations(t)
	})

	t.Run("WithTimeRange", func(t *testing.T) {
		mockService := new(MockAuditService)
		handler := NewAuditHandler(logger, mockService)

		sessionID := uuid.New()
		mockService.On("GetSessionTrail", mock.Anything, sessionID,
			mock.AnythingOfType("*time.Time"), mock.AnythingOfType("*time.Time"), 1, 50).
			Return([]*audit.Entry{}, int64(0), nil)

		router := gin.Default()
		router.GET("/sessions/:id/audit", handler.GetSessionTrail)

		url := fmt.Sprintf("/sessions/%s/audit?from=%s&to=%s",
			sessionID,
			"2026-08-01T00:00:00Z",
			"2026-08-08T00:00:00Z",
		)
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("HalfOpenTimeRange", func(t *testing.T) {
		mockService := new(MockAuditService)
		handler := NewAuditHandler(logger, mockService)

		router := gin.Default()
		router.GET("/sessions/:id/audit", handler.GetSessionTrail)

		url := fmt.Sprintf("/sessions/%s/audit?from=2026-08-01T00:00:00Z", uuid.New())
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidSessionID", func(t *testing.T) {
		mockService := new(MockAuditService)
		handler := NewAuditHandler(logger, mockService)

		router := gin.Default()
		router.GET("/sessions/:id/audit", handler.GetSessionTrail)

		req, _ := http.NewRequest(http.MethodGet, "/sessions/not-a-uuid/audit", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockAuditService)
		handler := NewAuditHandler(logger, mockService)

		sessionID := uuid.New()
		mockService.On("GetSessionTrail", mock.Anything, sessionID, (*time.Time)(nil), (*time.Time)(nil), 1, 50).
			Return(nil, int64(0), errors.New("mongo down"))

		router := gin.Default()
		router.GET("/sessions/:id/audit", handler.GetSessionTrail)

		req, _ := http.NewRequest(http.MethodGet, "/sessions/"+sessionID.String()+"/audit", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAuditHandler_GetTransactionTrail(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuditService)
		handler := NewAuditHandler(logger, mockService)

		sessionID := uuid.New()
		transactionID := uuid.New()
		entries := []*audit.Entry{
			audit.NewTransactionEntry(sessionID, transactionID, audit.EventTransactionAutoApproved,
				shared.ActorTypeSystem, "PENDING", "AUTO_APPROVED"),
		}
		mockService.On("GetTransactionTrail", mock.Anything, transactionID, 1, 50).Return(entries, nil)

		router := gin.Default()
		router.GET("/transactions/:id/audit", handler.GetTransactionTrail)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/"+transactionID.String()+"/audit", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		respBody := decodeData[[]AuditEntryResponse](t, rr.Body.Bytes())
		require.Len(t, respBody, 1)
		assert.Equal(t, "transaction_auto_approved", respBody[0].EventType)
		assert.Equal(t, "system", respBody[0].ActorType)

		mockService.AssertExpectations(t)
	})

	t.Run("InvalidTransactionID", func(t *testing.T) {
		mockService := new(MockAuditService)
		handler := NewAuditHandler(logger, mockService)

		router := gin.Default()
		router.GET("/transactions/:id/audit", handler.GetTransactionTrail)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/not-a-uuid/audit", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})
}
