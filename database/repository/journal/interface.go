package journalRepo

import (
	"context"

	"mitra/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// TransactionJournalRepository stores every transaction snapshot the coordinator applies.
type TransactionJournalRepository interface {
	Record(ctx context.Context, op string, trx *models.Transaction) error
	History(ctx context.Context, trxCode string) ([]models.JournalEntry, error)
}

type mongoJournalRepo struct {
	coll *mongo.Collection
}

// NewMongoJournalRepo returns a new TransactionJournalRepository instance using MongoDB.
func NewMongoJournalRepo(db *mongo.Database) TransactionJournalRepository {
	return &mongoJournalRepo{
		coll: db.Collection("transaction_journal"),
	}
}
