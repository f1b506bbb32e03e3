package journalRepo

import (
	"context"
	"fmt"
	"time"

	"mitra/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Record inserts one journal entry for trx.
func (r *mongoJournalRepo) Record(ctx context.Context, op string, trx *models.Transaction) error {
	entry := models.NewJournalEntry(op, trx, time.Now().UTC())
	entry.ID = uuid.New().String()

	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to journal %s for %s: %w", op, trx.TrxCode, err)
	}
	return nil
}

// History returns the entries of one transaction, oldest first.
func (r *mongoJournalRepo) History(ctx context.Context, trxCode string) ([]models.JournalEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"trxCode": trxCode}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.JournalEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// EnsureIndexes creates the lookup index used by History.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("transaction_journal").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "trxCode", Value: 1}, {Key: "recordedAt", Value: 1}},
	})
	return err
}
