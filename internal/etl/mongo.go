package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/pkg/database"
	"github.com/BartekS5/dailyetl/pkg/models"
)

// MongoIndex writes documents into a MongoDB collection named after the
// index, as one unordered BulkWrite of inserts. The driver assigns _id, so
// like ElasticIndex a repeated run duplicates documents.
type MongoIndex struct {
	Config config.IndexConfig
}

func NewMongoIndex(cfg config.IndexConfig) *MongoIndex {
	return &MongoIndex{Config: cfg}
}

func (m *MongoIndex) BulkIndex(ctx context.Context, index string, docs []models.Document) (int, error) {
	client, err := database.ConnectMongo(ctx, m.Config.Address(), m.Config.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIndexConnection, err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	coll := client.Database(m.Config.MongoDatabase).Collection(index)
	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		writes = append(writes, mongo.NewInsertOneModel().SetDocument(toBSON(doc)))
	}

	res, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) {
			return 0, mongoBulkFailure(len(docs), bwe)
		}
		return 0, fmt.Errorf("%w: %w", ErrIndexConnection, err)
	}
	return int(res.InsertedCount), nil
}

func toBSON(doc models.Document) bson.D {
	d := make(bson.D, 0, len(doc.Fields))
	for _, f := range doc.Fields {
		d = append(d, bson.E{Key: f.Key, Value: f.Value})
	}
	return d
}

func mongoBulkFailure(submitted int, bwe mongo.BulkWriteException) *BulkError {
	be := &BulkError{Submitted: submitted, Rejected: len(bwe.WriteErrors)}
	switch {
	case len(bwe.WriteErrors) > 0:
		be.Reason = bwe.WriteErrors[0].Message
	case bwe.WriteConcernError != nil:
		be.Rejected = submitted
		be.Reason = bwe.WriteConcernError.Message
	default:
		be.Rejected = submitted
		be.Reason = bwe.Error()
	}
	return be
}
