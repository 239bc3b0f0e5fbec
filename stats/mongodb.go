package stats

import (
	"context"
	"errors"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"time"
)

type mongoDbStore struct {
	mongoDb    *mongo.Client
	collection *mongo.Collection
	log        log.Logger
}

type entry struct {
	Key   string `bson:"key"`
	Count int64  `bson:"count"`
}

func newMongoDb(ctx context.Context, conf *config.MongoDbConfig, telemetryReporter telemetry.Reporter, log log.Logger) (Store, error) {
	opts := options.Client().ApplyURI(conf.Url)
	telemetryReporter.InstrumentMongoDb(opts)
	if conf.Tls.Enabled {
		t, err := conf.Tls.LoadTlsOptions()
		if err != nil {
			log.Errorf("failed to configure TLS for MongoDB: %s", err)
			return nil, err
		}
		opts.SetTLSConfig(t)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		log.Errorf("couldn't connect to MongoDB: %s", err)
		return nil, err
	}
	collection := client.Database(conf.Database).Collection(conf.Collection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{keyName: 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Errorf("couldn't create the 'key' index in the '%s' MongoDB collection: %s", conf.Collection, err)
		return nil, err
	}
	log.Reportf("using MongoDB for visit counters")
	return &mongoDbStore{
		mongoDb:    client,
		collection: collection,
		log:        log,
	}, nil
}

func (m *mongoDbStore) Increment(ctx context.Context, key string) error {
	_, err := m.collection.UpdateOne(ctx, bson.M{keyName: key}, bson.M{"$inc": bson.M{countName: 1}}, options.UpdateOne().SetUpsert(true))
	return err
}

func (m *mongoDbStore) Get(ctx context.Context, key string) (int64, error) {
	var result entry
	err := m.collection.FindOne(ctx, bson.M{keyName: key}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	return result.Count, err
}

func (m *mongoDbStore) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.mongoDb.Disconnect(ctx)
	if err != nil {
		m.log.Errorf("shutdown error: %s", err)
	}
	m.log.Reportf("shutdown complete")
}
