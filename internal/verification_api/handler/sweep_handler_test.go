package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/sweep"
)

type MockSweepService struct {
	mock.Mock
}

func (m *MockSweepService) RunSweepOnce(ctx context.Context) (*sweep.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sweep.Summary), args.Error(1)
}

func (m *MockSweepService) Shutdown() {
	m.Called()
}

var _ sweep.Service = (*MockSweepService)(nil)

func TestSweepHandler_Run(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockSweepService)
		handler := NewSweepHandler(logger, mockService)

		summary := &sweep.Summary{
			ProcessedCount:    2,
			SuccessCount:      2,
			TotalAutoApproved: 15,
			Results: []sweep.SessionResult{
				{SessionID: uuid.New(), Outcome: shared.SweepOutcomeDeadlineExpired, AutoApproved: 15, NotificationSent: true},
				{SessionID: uuid.New(), Outcome: shared.SweepOutcomeAlreadyCompleted, NotificationSent: true},
			},
		}
		mockService.On("RunSweepOnce", mock.Anything).Return(summary, nil)

		router := gin.Default()
		router.POST("/sweep/run", handler.Run)

		req, _ := http.NewRequest(http.MethodPost, "/sweep/run", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		respBody := decodeData[sweep.Summary](t, rr.Body.Bytes())
		assert.Equal(t, 2, respBody.ProcessedCount)
		assert.Equal(t, 15, respBody.TotalAutoApproved)
		require.Len(t, respBody.Results, 2)
		assert.Equal(t, shared.SweepOutcomeDeadlineExpired, respBody.Results[0].Outcome)

		mockService.AssertExpectations(t)
	})

	t.Run("SweepError", func(t *testing.T) {
		mockService := new(MockSweepService)
		handler := NewSweepHandler(logger, mockService)

		mockService.On("RunSweepOnce", mock.Anything).Return(nil, errors.New("db down"))

		router := gin.Default()
		router.POST("/sweep/run", handler.Run)

		req, _ := http.NewRequest(http.MethodPost, "/sweep/run", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}
