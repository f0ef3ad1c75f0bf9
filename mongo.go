package main

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDatabase   = "MongoBenchmarks"
	mongoCollection = "BenchmarkCollection"
)

// Mongo MongoDB 写入目标
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongo 连接 MongoDB
//
//	uri: mongodb://localhost:27017
func NewMongo(ctx context.Context, uri string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb, %w", err)
	}

	return &Mongo{
		client:     client,
		collection: client.Database(mongoDatabase).Collection(mongoCollection),
	}, nil
}

func (m *Mongo) Name() string { return "mongo" }

func (m *Mongo) Setup(ctx context.Context, p Params, _ Op) error {
	if err := m.collection.Drop(ctx); err != nil {
		return fmt.Errorf("drop collection, %w", err)
	}

	n := p.IndexedValues()
	if n == 0 {
		return nil
	}

	models := make([]mongo.IndexModel, 0, n)
	for _, key := range fieldKeys(n) {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: key, Value: 1}}})
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes, %w", err)
	}
	return nil
}

func (m *Mongo) Insert(ctx context.Context, batch []Record) error {
	docs := make([]interface{}, len(batch))
	for i, r := range batch {
		docs[i] = mongoDocument(r)
	}

	_, err := m.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// Upsert 按全部索引字段匹配，整文档替换
func (m *Mongo) Upsert(ctx context.Context, batch []Record) error {
	models := make([]mongo.WriteModel, len(batch))
	for i, r := range batch {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(mongoFilter(r)).
			SetReplacement(mongoDocument(r)).
			SetUpsert(true)
	}

	_, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (m *Mongo) Teardown(ctx context.Context) error {
	return m.collection.Drop(ctx)
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func mongoDocument(r Record) bson.D {
	doc := make(bson.D, len(r.Fields))
	for i, f := range r.Fields {
		doc[i] = bson.E{Key: f.Key, Value: f.Value}
	}
	return doc
}

func mongoFilter(r Record) bson.D {
	and := bson.A{}
	for _, f := range r.Fields {
		if !f.Indexed {
			break
		}
		and = append(and, bson.D{{Key: f.Key, Value: f.Value}})
	}
	return bson.D{{Key: "$and", Value: and}}
}
