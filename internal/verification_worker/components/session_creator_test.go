package components

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verification-workflow-engine/internal/config"
	"github.com/verification-workflow-engine/internal/domain/audit"
	"github.com/verification-workflow-engine/internal/domain/session"
	"github.com/verification-workflow-engine/internal/domain/shared"
	"github.com/verification-workflow-engine/internal/domain/verification"
)

// Mock implementations of the dependencies

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockSessionRepository) GetByBatchID(ctx context.Context, batchID uuid.UUID) (*session.Session, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *MockSessionRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockSessionRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*session.Session, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*session.Session), args.Error(1)
}

func (m *MockSessionRepository) WithTx(tx pgx.Tx) session.Repository {
	m.Called(tx)
	return m
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateBatch(ctx context.Context, txns []*verification.Transaction) error {
	args := m.Called(ctx, txns)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*verification.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*verification.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetPending(ctx context.Context, sessionID uuid.UUID) ([]*verification.Transaction, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*verification.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ApplyDecision(ctx context.Context, txn *verification.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) AutoApprovePending(ctx context.Context, sessionID uuid.UUID, decidedAt time.Time) (int64, error) {
	args := m.Called(ctx, sessionID, decidedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) verification.Repository {
	m.Called(tx)
	return m
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) AppendAll(ctx context.Context, entries []*audit.Entry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockAuditRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	args := m.Called(ctx, sessionID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	args := m.Called(ctx, transactionID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) GetByTimeRange(ctx context.Context, sessionID uuid.UUID, startTime, endTime time.Time, limit, offset int) ([]*audit.Entry, error) {
	args := m.Called(ctx, sessionID, startTime, endTime, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) CountBySessionID(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

type MockTxBeginner struct {
	mock.Mock
}

func (m *MockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

// MockTx implements the pgx.Tx interface for testing
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, nil
}

func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *MockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *MockTx) Conn() *pgx.Conn {
	return nil
}

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		IdempotencyWindow: 5 * time.Minute,
		StorageTimeout:    5 * time.Second,
	}
}

func testBatchEvent(transactions int) *shared.BatchAvailableEvent {
	event := &shared.BatchAvailableEvent{
		BatchID:       uuid.New(),
		BusinessID:    uuid.New(),
		Deadline:      time.Now().Add(7 * 24 * time.Hour),
		CorrelationID: uuid.New().String(),
		Timestamp:     time.Now(),
	}
	for i := 0; i < transactions; i++ {
		event.Transactions = append(event.Transactions, shared.RawTransaction{
			ExternalTransactionID: uuid.New().String(),
			Amount:                int64(1000 * (i + 1)),
			StoreReference:        "store-1",
			RiskScore:             float64(i) / 10,
		})
	}
	return event
}

func TestSessionCreator_CreateFromBatch(t *testing.T) {
	logger := slog.Default()

	t.Run("Success", func(t *testing.T) {
		beginner := &MockTxBeginner{}
		tx := &MockTx{}
		sessions := &MockSessionRepository{}
		transactions := &MockTransactionRepository{}
		auditRepo := &MockAuditRepository{}

		event := testBatchEvent(3)

		sessions.On("GetByBatchID", mock.Anything, event.BatchID).Return(nil, nil).Once()
		beginner.On("Begin", mock.Anything).Return(tx, nil).Once()
		sessions.On("WithTx", tx).Return().Once()
		transactions.On("WithTx", tx).Return().Once()

		var createdSession *session.Session
		sessions.On("Create", mock.Anything, mock.AnythingOfType("*session.Session")).
			Run(func(args mock.Arguments) { createdSession = args.Get(1).(*session.Session) }).
			Return(nil).Once()

		var createdTxns []*verification.Transaction
		transactions.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*verification.Transaction")).
			Run(func(args mock.Arguments) { createdTxns = args.Get(1).([]*verification.Transaction) }).
			Return(nil).Once()

		var entry *audit.Entry
		auditRepo.On("Append", mock.Anything, mock.AnythingOfType("*audit.Entry")).
			Run(func(args mock.Arguments) { entry = args.Get(1).(*audit.Entry) }).
			Return(nil).Once()

		tx.On("Commit", mock.Anything).Return(nil).Once()
		tx.On("Rollback", mock.Anything).Return(pgx.ErrTxClosed).Once()

		creator := NewSessionCreator(logger, beginner, sessions, transactions, auditRepo, testEngineConfig())
		err := creator.CreateFromBatch(context.Background(), event)

		require.NoError(t, err)

		require.NotNil(t, createdSession)
		assert.Equal(t, event.BusinessID, createdSession.BusinessID)
		assert.Equal(t, event.BatchID, createdSession.BatchID)
		assert.Equal(t, session.StatusNotStarted, createdSession.Status)
		assert.Equal(t, 3, createdSession.TotalTransactions)
		assert.InDelta(t, 0.1, createdSession.AverageRiskScore, 1e-9)

		require.Len(t, createdTxns, 3)
		for i, txn := range createdTxns {
			assert.Equal(t, createdSession.ID, txn.SessionID)
			assert.Equal(t, i, txn.Position, "batch order must be preserved")
			assert.Equal(t, shared.DecisionPending, txn.Decision)
			assert.Equal(t, event.Transactions[i].ExternalTransactionID, txn.ExternalTransactionID)
		}

		require.NotNil(t, entry)
		assert.Equal(t, audit.EventSessionCreated, entry.EventType)
		assert.Equal(t, shared.ActorTypeSystem, entry.ActorType)
		assert.Equal(t, event.CorrelationID, entry.CorrelationID)
		assert.Equal(t, "NOT_STARTED", entry.AfterState)

		beginner.AssertExpectations(t)
		tx.AssertExpectations(t)
		sessions.AssertExpectations(t)
		transactions.AssertExpectations(t)
		auditRepo.AssertExpectations(t)
	})

	t.Run("DuplicateBatchIsNoOp", func(t *testing.T) {
		beginner := &MockTxBeginner{}
		sessions := &MockSessionRepository{}
		transactions := &MockTransactionRepository{}
		auditRepo := &MockAuditRepository{}

		event := testBatchEvent(2)
		existing := &session.Session{ID: uuid.New(), BatchID: event.BatchID}

		sessions.On("GetByBatchID", mock.Anything, event.BatchID).Return(existing, nil).Once()

		creator := NewSessionCreator(logger, beginner, sessions, transactions, auditRepo, testEngineConfig())
		err := creator.CreateFromBatch(context.Background(), event)

		require.NoError(t, err)
		beginner.AssertNotCalled(t, "Begin", mock.Anything)
		sessions.AssertExpectations(t)
	})

	t.Run("LostCreationRaceIsNoOp", func(t *testing.T) {
		beginner := &MockTxBeginner{}
		tx := &MockTx{}
		sessions := &MockSessionRepository{}
		transactions := &MockTransactionRepository{}
		auditRepo := &MockAuditRepository{}

		event := testBatchEvent(2)

		sessions.On("GetByBatchID", mock.Anything, event.BatchID).Return(nil, nil).Once()
		beginner.On("Begin", mock.Anything).Return(tx, nil).Once()
		sessions.On("WithTx", tx).Return().Once()
		transactions.On("WithTx", tx).Return().Once()
		sessions.On("Create", mock.Anything, mock.AnythingOfType("*session.Session")).
			Return(session.ErrDuplicateBatch{BatchID: event.BatchID}).Once()
		tx.On("Rollback", mock.Anything).Return(nil).Once()

		creator := NewSessionCreator(logger, beginner, sessions, transactions, auditRepo, testEngineConfig())
		err := creator.CreateFromBatch(context.Background(), event)

		require.NoError(t, err)
		transactions.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
		tx.AssertNotCalled(t, "Commit", mock.Anything)
		tx.AssertExpectations(t)
	})

	t.Run("EmptyBatchRejected", func(t *testing.T) {
		beginner := &MockTxBeginner{}
		sessions := &MockSessionRepository{}
		transactions := &MockTransactionRepository{}
		auditRepo := &MockAuditRepository{}

		event := testBatchEvent(0)
		sessions.On("GetByBatchID", mock.Anything, event.BatchID).Return(nil, nil).Once()

		creator := NewSessionCreator(logger, beginner, sessions, transactions, auditRepo, testEngineConfig())
		err := creator.CreateFromBatch(context.Background(), event)

		require.Error(t, err)
		assert.ErrorIs(t, err, session.ErrEmptyBatch)
		beginner.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("AuditFailureRollsBack", func(t *testing.T) {
		beginner := &MockTxBeginner{}
		tx := &MockTx{}
		sessions := &MockSessionRepository{}
		transactions := &MockTransactionRepository{}
		auditRepo := &MockAuditRepository{}

		event := testBatchEvent(2)

		sessions.On("GetByBatchID", mock.Anything, event.BatchID).Return(nil, nil).Once()
		beginner.On("Begin", mock.Anything).Return(tx, nil).Once()
		sessions.On("WithTx", tx).Return().Once()
		transactions.On("WithTx", tx).Return().Once()
		sessions.On("Create", mock.Anything, mock.AnythingOfType("*session.Session")).Return(nil).Once()
		transactions.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Once()
		auditRepo.On("Append", mock.Anything, mock.Anything).Return(errors.New("mongo down")).Once()
		tx.On("Rollback", mock.Anything).Return(nil).Once()

		creator := NewSessionCreator(logger, beginner, sessions, transactions, auditRepo, testEngineConfig())
		err := creator.CreateFromBatch(context.Background(), event)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to append audit entry")
		tx.AssertNotCalled(t, "Commit", mock.Anything)
		tx.AssertExpectations(t)
	})
}

func TestAverageRiskScore(t *testing.T) {
	assert.Zero(t, averageRiskScore(nil))
	assert.InDelta(t, 0.5, averageRiskScore([]shared.RawTransaction{
		{RiskScore: 0.2}, {RiskScore: 0.8},
	}), 1e-9)
}
