package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "terminated_orders"

var ErrNotConnected = errors.New("mongo terminated repo is not connected")

// terminatedDoc is a terminated record keyed by order id.
type terminatedDoc struct {
	ID               int64 `bson:"_id"`
	order.Terminated `bson:",inline"`
	ModelVersion     int `bson:"model_version"`
}

// TerminatedRepo records terminated orders in a MongoDB collection.
type TerminatedRepo struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	logger     aqm.Logger
	config     *aqm.Config
}

func NewTerminatedRepo(config *aqm.Config, logger aqm.Logger) *TerminatedRepo {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TerminatedRepo{
		logger: logger,
		config: config,
	}
}

func (r *TerminatedRepo) Start(ctx context.Context) error {
	mongoURL, _ := r.config.GetString("db.mongo.url")
	if mongoURL == "" {
		mongoURL = "mongodb://localhost:27017"
	}

	dbName, _ := r.config.GetString("db.mongo.name")
	if dbName == "" {
		dbName = "comanda_kitchen"
	}

	clientOptions := options.Client().ApplyURI(mongoURL).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.db = client.Database(dbName)
	r.collection = r.db.Collection(collectionName)

	dateIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}, {Key: "completed_at", Value: 1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, dateIndex); err != nil {
		return fmt.Errorf("cannot create date index: %w", err)
	}

	r.logger.Infof("Connected to MongoDB: %s, database: %s, collection: %s", mongoURL, dbName, collectionName)
	return nil
}

func (r *TerminatedRepo) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

// Record inserts the terminated record. Recording an order twice keeps the
// first record.
func (r *TerminatedRepo) Record(ctx context.Context, p order.Pending, completedAt time.Time) error {
	if r.collection == nil {
		return ErrNotConnected
	}

	doc := terminatedDoc{
		ID:           p.ID,
		Terminated:   order.NewTerminated(p, completedAt),
		ModelVersion: 1,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Info("terminated order already recorded", "order_id", p.ID)
			return nil
		}
		return fmt.Errorf("cannot insert terminated order: %w", err)
	}
	return nil
}

func (r *TerminatedRepo) ListByDate(ctx context.Context, date string) ([]order.Terminated, error) {
	if r.collection == nil {
		return nil, ErrNotConnected
	}

	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"date": date}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find terminated orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []terminatedDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cannot decode terminated orders: %w", err)
	}

	records := make([]order.Terminated, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.Terminated)
	}
	return records, nil
}
