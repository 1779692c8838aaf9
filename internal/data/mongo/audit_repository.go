// Package mongo provides the MongoDB implementation of the audit trail.
// The audit collection is strictly append-only; nothing in this package
// updates or deletes documents.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/verification-workflow-engine/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the audit collection in MongoDB
	AuditCollectionName = "audit_entries"
)

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Repository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores one audit entry. Callers treat a failed append as a failure
// of the operation being audited.
func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.InsertOne(ctx, entry)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			"session_id", entry.SessionID.String(),
			"event_type", string(entry.EventType),
			"error", err)
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// AppendAll stores a group of audit entries produced by a single operation,
// such as the per-transaction records of one sweep resolution
func (r *AuditRepository) AppendAll(ctx context.Context, entries []*audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	collection := r.db.Collection(AuditCollectionName)

	docs := make([]interface{}, len(entries))
	for i, entry := range entries {
		docs[i] = entry
	}

	_, err := collection.InsertMany(ctx, docs)
	if err != nil {
		r.logger.Error("Failed to append audit entries",
			"count", len(entries),
			"error", err)
		return fmt.Errorf("failed to append audit entries: %w", err)
	}

	return nil
}

// GetBySessionID retrieves paginated audit entries for a session.
// Results are sorted by timestamp in ascending order so the trail reads as
// the session's history.
func (r *AuditRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	filter := bson.M{"session_id": sessionID}
	return r.find(ctx, filter, limit, offset)
}

// GetByTransactionID retrieves paginated audit entries for one transaction
func (r *AuditRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	filter := bson.M{"transaction_id": transactionID}
	return r.find(ctx, filter, limit, offset)
}

// GetByTimeRange retrieves a session's audit entries within the specified
// time window
func (r *AuditRepository) GetByTimeRange(ctx context.Context, sessionID uuid.UUID, startTime, endTime time.Time, limit, offset int) ([]*audit.Entry, error) {
	filter := bson.M{
		"session_id": sessionID,
		"timestamp": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	return r.find(ctx, filter, limit, offset)
}

// CountBySessionID counts the total number of audit entries for a session
func (r *AuditRepository) CountBySessionID(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"session_id": sessionID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count audit entries",
			"session_id", sessionID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// find runs a paginated query sorted by timestamp ascending
func (r *AuditRepository) find(ctx context.Context, filter bson.M, limit, offset int) ([]*audit.Entry, error) {
	collection := r.db.Collection(AuditCollectionName)

	opts := options.Find().
		SetSort(bson.M{"timestamp": 1}). // Oldest first, matching event order
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit entries", "error", err)
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*audit.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode audit entries", "error", err)
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}
