// Package storage keeps the ledger of report runs in MongoDB.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/leeaandrob/weeklyreport/internal/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store provides access to the runs collection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	runs   *mongo.Collection
}

// NewStore creates a new storage connection.
func NewStore(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	log.Info().Str("db", dbName).Msg("Connected to MongoDB")

	store := &Store{
		client: client,
		db:     db,
		runs:   db.Collection("runs"),
	}

	if err := store.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create run indexes")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) createIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "run_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "week_key", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "started_at", Value: -1}}},
	}
	_, err := s.runs.Indexes().CreateMany(ctx, indexes)
	return err
}

// SaveRun inserts or replaces a run by its run ID.
func (s *Store) SaveRun(ctx context.Context, run *models.RunRecord) error {
	filter := bson.M{"run_id": run.RunID}
	update := bson.M{"$set": run}
	opts := options.Update().SetUpsert(true)

	if _, err := s.runs.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun returns a run by its run ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	var run models.RunRecord
	err := s.runs.FindOne(ctx, bson.M{"run_id": runID}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.runs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []models.RunRecord
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// HasDelivered reports whether a run for weekKey reached the sink completely.
func (s *Store) HasDelivered(ctx context.Context, weekKey string) (bool, error) {
	filter := bson.M{"week_key": weekKey, "status": models.RunStatusDelivered}
	n, err := s.runs.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
